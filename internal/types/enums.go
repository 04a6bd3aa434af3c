package types

// CropType identifies a supported crop.
type CropType string

const (
	CropAlmond CropType = "almond"
	CropApple  CropType = "apple"
	CropCherry CropType = "cherry"
)

// AllCropTypes lists every supported crop in a stable order.
// Used by the crops endpoint and by validators.
var AllCropTypes = []CropType{CropAlmond, CropApple, CropCherry}

// Valid reports whether the crop type is one of the supported crops.
func (c CropType) Valid() bool {
	switch c {
	case CropAlmond, CropApple, CropCherry:
		return true
	}
	return false
}

// PhenologyStage represents the developmental stage of a crop inferred
// from its vegetation index history.
type PhenologyStage string

const (
	StageDormancy         PhenologyStage = "dormancy"
	StageBudBreak         PhenologyStage = "bud_break"
	StageVegetativeGrowth PhenologyStage = "vegetative_growth"
	StagePreBloom         PhenologyStage = "pre_bloom"
	StageBlooming         PhenologyStage = "blooming"
	StagePostBloom        PhenologyStage = "post_bloom"
	StageUnknown          PhenologyStage = "unknown"
)

// Predictable reports whether the regression ensemble is applicable at
// this stage. Outside these stages the models were not trained on the
// signal shape and their output is not meaningful.
func (s PhenologyStage) Predictable() bool {
	return s == StageVegetativeGrowth || s == StagePreBloom
}

// TrendDirection classifies the recent slope of the vegetation index.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// WindowConfidence qualifies a calendar-based bloom window estimate.
type WindowConfidence string

const (
	WindowConfidenceLow     WindowConfidence = "low"
	WindowConfidenceMedium  WindowConfidence = "medium"
	WindowConfidenceHigh    WindowConfidence = "high"
	WindowConfidenceUnknown WindowConfidence = "unknown"
)

// ModelName identifies a member of the regression ensemble.
type ModelName string

const (
	ModelSequence    ModelName = "sequence"
	ModelTree        ModelName = "tree"
	ModelFeedforward ModelName = "feedforward"
)

// PredictionSource records which path produced a bloom prediction.
type PredictionSource string

const (
	// SourceEnsemble means the regression ensemble produced a day count.
	SourceEnsemble PredictionSource = "ensemble"
	// SourcePhenology means the stage classifier produced a calendar window.
	SourcePhenology PredictionSource = "phenology"
	// SourceFallback means neither path applied and a fixed horizon was returned.
	SourceFallback PredictionSource = "fallback"
)
