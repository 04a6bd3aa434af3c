package ensemble

import (
	"math"

	"bloomwatch/internal/types"
)

// LSTMLayer holds the gate weights for one recurrent layer. Gate rows are
// stacked input, forget, cell, output (the Keras export order), so each
// weight matrix has 4*hidden rows.
type LSTMLayer struct {
	// InputWeights is [4*hidden][inputs].
	InputWeights [][]float64 `json:"input_weights"`
	// RecurrentWeights is [4*hidden][hidden].
	RecurrentWeights [][]float64 `json:"recurrent_weights"`
	// Bias is [4*hidden].
	Bias []float64 `json:"bias"`
	// ReturnSequences controls whether the full hidden sequence feeds the
	// next layer or only the final state.
	ReturnSequences bool `json:"return_sequences"`
}

func (l *LSTMLayer) hiddenSize() int { return len(l.Bias) / 4 }

// forward runs the layer over a sequence of input vectors and returns
// either the hidden state sequence or just the final state.
func (l *LSTMLayer) forward(seq [][]float64) ([][]float64, error) {
	hidden := l.hiddenSize()
	if hidden == 0 || len(l.InputWeights) != 4*hidden || len(l.RecurrentWeights) != 4*hidden {
		return nil, types.NewAppError(types.ErrCodeInternalModelCorruption,
			"recurrent layer has inconsistent gate shapes", nil)
	}

	h := make([]float64, hidden)
	c := make([]float64, hidden)
	var outputs [][]float64

	for _, x := range seq {
		// gates = Wx*x + Wh*h + b, stacked i|f|g|o.
		gates := make([]float64, 4*hidden)
		for row := 0; row < 4*hidden; row++ {
			if len(l.InputWeights[row]) != len(x) {
				return nil, types.NewAppError(types.ErrCodeInternalModelCorruption,
					"recurrent layer input dimension mismatch", nil)
			}
			sum := l.Bias[row]
			for j, v := range x {
				sum += l.InputWeights[row][j] * v
			}
			for j, v := range h {
				sum += l.RecurrentWeights[row][j] * v
			}
			gates[row] = sum
		}

		newH := make([]float64, hidden)
		newC := make([]float64, hidden)
		for j := 0; j < hidden; j++ {
			i := sigmoid(gates[j])
			f := sigmoid(gates[hidden+j])
			g := math.Tanh(gates[2*hidden+j])
			o := sigmoid(gates[3*hidden+j])
			newC[j] = f*c[j] + i*g
			newH[j] = o * math.Tanh(newC[j])
		}
		h, c = newH, newC
		if l.ReturnSequences {
			outputs = append(outputs, h)
		}
	}

	if l.ReturnSequences {
		return outputs, nil
	}
	return [][]float64{h}, nil
}

// LSTM is the sequence regressor: a min-max scaler, stacked recurrent
// layers, and a small dense head producing days until bloom.
type LSTM struct {
	Scaler         *MinMaxScaler `json:"scaler"`
	Layers         []LSTMLayer   `json:"layers"`
	Head           []DenseLayer  `json:"head"`
	SequenceWindow int           `json:"sequence_window"`
}

// Window returns the number of trailing NDVI days the model consumes.
func (m *LSTM) Window() int { return m.SequenceWindow }

// PredictSequence runs the network over the last Window() NDVI values.
// The sequence must be at least Window() long; longer input is clipped
// from the front.
func (m *LSTM) PredictSequence(ndvi []float64) (float64, error) {
	if len(ndvi) < m.SequenceWindow {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeValidationDegenerateSeries,
			"sequence shorter than model window", nil,
			map[string]any{"len": len(ndvi), "window": m.SequenceWindow})
	}
	window := ndvi[len(ndvi)-m.SequenceWindow:]

	seq := make([][]float64, len(window))
	for i, v := range window {
		scaled := v
		if m.Scaler != nil {
			s, err := m.Scaler.TransformScalar(v, 0)
			if err != nil {
				return 0, err
			}
			scaled = s
		}
		seq[i] = []float64{scaled}
	}

	for i := range m.Layers {
		out, err := m.Layers[i].forward(seq)
		if err != nil {
			return 0, err
		}
		seq = out
	}

	// The last recurrent layer collapses to a single state vector.
	x := seq[len(seq)-1]
	for i := range m.Head {
		out, err := m.Head[i].forward(x)
		if err != nil {
			return 0, err
		}
		x = out
	}
	if len(x) != 1 {
		return 0, types.NewAppError(types.ErrCodeInternalModelCorruption,
			"sequence network did not reduce to a scalar", nil)
	}
	return x[0], nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
