package ensemble

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"bloomwatch/internal/features"
	"bloomwatch/internal/types"
)

// Activation names the nonlinearity of a dense layer.
type Activation string

const (
	ActivationReLU   Activation = "relu"
	ActivationLinear Activation = "linear"
)

// DenseLayer is one fully connected layer. Weights are row-major
// [outputs][inputs], matching the export format of the training pipeline.
type DenseLayer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation Activation  `json:"activation"`
}

// forward computes activation(W*x + b).
func (l *DenseLayer) forward(x []float64) ([]float64, error) {
	rows := len(l.Weights)
	if rows == 0 || len(l.Bias) != rows {
		return nil, types.NewAppError(types.ErrCodeInternalModelCorruption,
			"dense layer has inconsistent shape", nil)
	}
	cols := len(l.Weights[0])
	if len(x) != cols {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeInternalModelCorruption,
			"dense layer input dimension mismatch", nil,
			map[string]any{"expected": cols, "got": len(x)})
	}

	flat := make([]float64, 0, rows*cols)
	for _, row := range l.Weights {
		if len(row) != cols {
			return nil, types.NewAppError(types.ErrCodeInternalModelCorruption,
				"dense layer has ragged weight rows", nil)
		}
		flat = append(flat, row...)
	}

	w := mat.NewDense(rows, cols, flat)
	var y mat.VecDense
	y.MulVec(w, mat.NewVecDense(cols, x))

	out := make([]float64, rows)
	for i := range out {
		out[i] = y.AtVec(i) + l.Bias[i]
		if l.Activation == ActivationReLU {
			out[i] = math.Max(out[i], 0)
		}
	}
	return out, nil
}

// MLP is a feedforward regressor: a standard scaler followed by a stack
// of dense layers ending in a single linear output.
type MLP struct {
	Scaler *StandardScaler `json:"scaler"`
	Layers []DenseLayer    `json:"layers"`
}

// Predict runs the network on a feature vector and returns the estimated
// days until bloom.
func (m *MLP) Predict(v features.Vector) (float64, error) {
	x := v.Ordered()
	if m.Scaler != nil {
		scaled, err := m.Scaler.Transform(x)
		if err != nil {
			return 0, err
		}
		x = scaled
	}
	for i := range m.Layers {
		out, err := m.Layers[i].forward(x)
		if err != nil {
			return 0, err
		}
		x = out
	}
	if len(x) != 1 {
		return 0, types.NewAppError(types.ErrCodeInternalModelCorruption,
			"feedforward network did not reduce to a scalar", nil)
	}
	return x[0], nil
}
