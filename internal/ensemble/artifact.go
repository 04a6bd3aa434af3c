package ensemble

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"bloomwatch/internal/features"
	"bloomwatch/internal/types"
)

// artifactExt is the on-disk suffix for a trained model artifact.
const artifactExt = ".json.zst"

// Artifact is the serialized form of one crop's trained ensemble:
// member weights, scalers, and network parameters, exported by the
// training pipeline as zstd-compressed JSON.
type Artifact struct {
	Crop           types.CropType `json:"crop_type"`
	Version        string         `json:"version"`
	TrainedAt      time.Time      `json:"trained_at"`
	FeatureNames   []string       `json:"feature_names"`
	Weights        Weights        `json:"weights"`
	SequenceWindow int            `json:"sequence_window"`

	Sequence    *LSTM   `json:"sequence,omitempty"`
	Tree        *Forest `json:"tree"`
	Feedforward *MLP    `json:"feedforward"`
}

// Validate checks structural integrity, in particular that the artifact
// was trained on exactly the feature columns this binary computes.
func (a *Artifact) Validate() error {
	if !a.Crop.Valid() {
		return types.NewAppError(types.ErrCodeInternalModelCorruption,
			fmt.Sprintf("artifact carries unknown crop type %q", a.Crop), nil)
	}
	if a.Tree == nil || a.Feedforward == nil {
		return types.NewAppError(types.ErrCodeInternalModelCorruption,
			"artifact is missing a mandatory member", nil)
	}
	if len(a.FeatureNames) != len(features.Names) {
		return types.NewAppErrorWithDetails(types.ErrCodeInternalModelCorruption,
			"artifact feature columns do not match this build", nil,
			map[string]any{"artifact": len(a.FeatureNames), "build": len(features.Names)})
	}
	for i, name := range a.FeatureNames {
		if name != features.Names[i] {
			return types.NewAppErrorWithDetails(types.ErrCodeInternalModelCorruption,
				"artifact feature columns do not match this build", nil,
				map[string]any{"column": i, "artifact": name, "build": features.Names[i]})
		}
	}
	if a.Sequence != nil && a.Sequence.SequenceWindow != a.SequenceWindow {
		return types.NewAppError(types.ErrCodeInternalModelCorruption,
			"artifact sequence window disagrees with its sequence member", nil)
	}
	return nil
}

// Build assembles a servable ensemble from the artifact.
func (a *Artifact) Build() (*Ensemble, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	var sequence SequenceModel
	if a.Sequence != nil {
		sequence = a.Sequence
	}
	return New(a.Crop, a.Weights, sequence, a.Tree, a.Feedforward)
}

// Store loads trained artifacts by crop.
type Store interface {
	Load(ctx context.Context, crop types.CropType) (*Artifact, error)
}

// DirStore reads artifacts from a local directory laid out as
// <root>/<crop>.json.zst.
type DirStore struct {
	root string
}

// NewDirStore creates a store rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{root: dir}
}

// Load reads and decodes the artifact for the crop.
func (s *DirStore) Load(_ context.Context, crop types.CropType) (*Artifact, error) {
	path := filepath.Join(s.root, string(crop)+artifactExt)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundModelArtifact,
				fmt.Sprintf("no trained artifact for crop %q", crop), err,
				map[string]any{"path": path})
		}
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to open model artifact", err)
	}
	defer f.Close()

	return DecodeArtifact(f)
}

// DecodeArtifact reads a zstd-compressed JSON artifact from r.
func DecodeArtifact(r io.Reader) (*Artifact, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalModelCorruption,
			"failed to open zstd stream", err)
	}
	defer zr.Close()

	var artifact Artifact
	if err := json.NewDecoder(zr).Decode(&artifact); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalModelCorruption,
			"failed to decode model artifact", err)
	}
	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	return &artifact, nil
}

// WriteArtifact encodes the artifact as zstd-compressed JSON at the
// conventional path under dir. Used by the training export tooling.
func WriteArtifact(dir string, artifact *Artifact) error {
	if err := artifact.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to create artifact directory", err)
	}

	path := filepath.Join(dir, string(artifact.Crop)+artifactExt)
	f, err := os.Create(path)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to create artifact file", err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to open zstd writer", err)
	}
	if err := json.NewEncoder(zw).Encode(artifact); err != nil {
		zw.Close()
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to encode model artifact", err)
	}
	if err := zw.Close(); err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to flush model artifact", err)
	}
	return f.Sync()
}
