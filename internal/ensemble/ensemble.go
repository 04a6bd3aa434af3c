// Package ensemble combines three regressors into a single days-until-bloom
// estimate with a confidence interval: a sequence model over raw NDVI, a
// bagged tree model over engineered features, and a feedforward network
// over the same features. Members are trained offline and shipped as
// zstd-compressed JSON artifacts.
package ensemble

import (
	"math"

	"github.com/montanaflynn/stats"

	"bloomwatch/internal/features"
	"bloomwatch/internal/types"
)

// zNinetyFive is the z-score for a 95% confidence interval.
const zNinetyFive = 1.96

// FeatureModel predicts days until bloom from an engineered feature vector.
type FeatureModel interface {
	Predict(v features.Vector) (float64, error)
}

// SequenceModel predicts days until bloom from a trailing NDVI window.
type SequenceModel interface {
	PredictSequence(ndvi []float64) (float64, error)
	Window() int
}

// Weights are the blend coefficients for the ensemble members. They are
// calibrated per crop during training and recorded in the artifact; the
// tree model carries most of the weight because it has held the lowest
// validation error.
type Weights struct {
	Sequence    float64 `json:"sequence"`
	Tree        float64 `json:"tree"`
	Feedforward float64 `json:"feedforward"`
}

// DefaultWeights returns the blend used when an artifact does not record
// its own calibration.
func DefaultWeights() Weights {
	return Weights{Sequence: 0.20, Tree: 0.60, Feedforward: 0.20}
}

// Ensemble is a loaded, ready-to-serve model set for one crop.
type Ensemble struct {
	crop        types.CropType
	weights     Weights
	sequence    SequenceModel
	tree        FeatureModel
	feedforward FeatureModel
}

// New assembles an ensemble. The tree and feedforward members are
// mandatory; the sequence member may be nil, in which case every
// prediction blends only the feature models.
func New(crop types.CropType, weights Weights, sequence SequenceModel, tree, feedforward FeatureModel) (*Ensemble, error) {
	if tree == nil || feedforward == nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeConflictModelsNotLoaded,
			"ensemble requires tree and feedforward members", nil,
			map[string]any{"crop_type": crop})
	}
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	return &Ensemble{
		crop:        crop,
		weights:     weights,
		sequence:    sequence,
		tree:        tree,
		feedforward: feedforward,
	}, nil
}

// Crop returns the crop this ensemble was trained for.
func (e *Ensemble) Crop() types.CropType { return e.crop }

// Predict blends the member estimates for the most recent day of the
// series. The sequence member is skipped, with its weight redistributed
// over the remaining members, when the series is shorter than its window.
func (e *Ensemble) Predict(series types.ObservationSeries, cfg types.CropConfig) (*types.EnsembleResult, error) {
	vec, err := features.Latest(series, cfg)
	if err != nil {
		return nil, err
	}

	individual := make(map[types.ModelName]float64, 3)

	treePred, err := e.tree.Predict(vec)
	if err != nil {
		return nil, err
	}
	individual[types.ModelTree] = treePred

	ffnPred, err := e.feedforward.Predict(vec)
	if err != nil {
		return nil, err
	}
	individual[types.ModelFeedforward] = ffnPred

	activeWeight := e.weights.Tree + e.weights.Feedforward
	weighted := e.weights.Tree*treePred + e.weights.Feedforward*ffnPred

	if e.sequence != nil && series.Len() >= e.sequence.Window() {
		seqPred, err := e.sequence.PredictSequence(series.NDVIValues())
		if err != nil {
			return nil, err
		}
		individual[types.ModelSequence] = seqPred
		weighted += e.weights.Sequence * seqPred
		activeWeight += e.weights.Sequence
	}

	if activeWeight <= 0 {
		return nil, types.NewAppError(types.ErrCodeInternalModelCorruption,
			"ensemble weights sum to zero", nil)
	}
	predicted := weighted / activeWeight

	values := make([]float64, 0, len(individual))
	for _, v := range individual {
		values = append(values, v)
	}
	std, err := stats.StandardDeviation(values)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to compute member spread", err)
	}

	return &types.EnsembleResult{
		PredictedDays:  int(math.Round(predicted)),
		IntervalLow:    int(math.Round(predicted - zNinetyFive*std)),
		IntervalHigh:   int(math.Round(predicted + zNinetyFive*std)),
		Individual:     individual,
		AgreementScore: agreement(predicted, std),
	}, nil
}

// agreement scores member consensus as 1 minus the coefficient of
// variation, clamped to [0, 1]. Non-positive predictions carry no
// meaningful spread and score zero.
func agreement(predicted, std float64) float64 {
	if predicted <= 0 {
		return 0
	}
	score := 1 - std/predicted
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
