package ensemble

import (
	"bloomwatch/internal/types"
)

// StandardScaler centers and scales a feature vector with the per-column
// mean and standard deviation recorded at training time.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Transform applies (x - mean) / std column-wise. Columns with zero
// recorded deviation pass through centered but unscaled.
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) || len(x) != len(s.Std) {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeInternalModelCorruption,
			"scaler dimensions do not match input", nil,
			map[string]any{"input": len(x), "mean": len(s.Mean), "std": len(s.Std)})
	}
	out := make([]float64, len(x))
	for i, v := range x {
		sd := s.Std[i]
		if sd == 0 {
			sd = 1
		}
		out[i] = (v - s.Mean[i]) / sd
	}
	return out, nil
}

// MinMaxScaler maps values into [0, 1] using the per-column range
// recorded at training time.
type MinMaxScaler struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

// TransformScalar scales a single value using column col.
func (s *MinMaxScaler) TransformScalar(v float64, col int) (float64, error) {
	if col >= len(s.Min) || col >= len(s.Max) {
		return 0, types.NewAppError(types.ErrCodeInternalModelCorruption,
			"minmax scaler column out of range", nil)
	}
	span := s.Max[col] - s.Min[col]
	if span == 0 {
		span = 1
	}
	return (v - s.Min[col]) / span, nil
}
