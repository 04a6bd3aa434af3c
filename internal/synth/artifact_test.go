package synth

import (
	"math"
	"testing"
	"time"

	"bloomwatch/internal/features"
	"bloomwatch/internal/types"
)

func TestPlaceholderArtifactBuilds(t *testing.T) {
	artifact, err := PlaceholderArtifact(types.CropAlmond, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := artifact.Validate(); err != nil {
		t.Fatalf("placeholder artifact failed validation: %v", err)
	}

	ens, err := artifact.Build()
	if err != nil {
		t.Fatalf("placeholder artifact failed to build: %v", err)
	}

	// The constant members ignore their input.
	vec := features.Vector{}
	for _, name := range features.Names {
		vec[name] = 0.5
	}
	if got, err := artifact.Tree.Predict(vec); err != nil || math.Abs(got-21) > 1e-9 {
		t.Errorf("tree member: got %f, %v", got, err)
	}
	if got, err := artifact.Feedforward.Predict(vec); err != nil || math.Abs(got-23) > 1e-9 {
		t.Errorf("feedforward member: got %f, %v", got, err)
	}

	// End to end through a synthetic series. No sequence member, so the
	// blend renormalizes: (0.60*21 + 0.20*23) / 0.80 = 21.5, rounded up.
	g, err := NewGenerator(types.CropAlmond, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	series := g.Window(2025, 40, 90)
	cfg, err := types.ConfigFor(types.CropAlmond, 36.7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := ens.Predict(series, cfg)
	if err != nil {
		t.Fatalf("placeholder ensemble failed to predict: %v", err)
	}
	if result.PredictedDays != 22 {
		t.Errorf("expected 22 days, got %d", result.PredictedDays)
	}
	if result.AgreementScore <= 0 || result.AgreementScore > 1 {
		t.Errorf("agreement out of range: %f", result.AgreementScore)
	}
	if _, ok := result.Individual[types.ModelSequence]; ok {
		t.Error("placeholder artifact must not report a sequence member")
	}
}

func TestPlaceholderArtifactUnknownCrop(t *testing.T) {
	if _, err := PlaceholderArtifact(types.CropType("banana"), time.Time{}); err == nil {
		t.Error("expected error for unknown crop")
	}
}
