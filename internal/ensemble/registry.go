package ensemble

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"bloomwatch/internal/types"
)

// Registry lazily loads and caches one ensemble per crop. Concurrent
// first requests for the same crop share a single load via singleflight,
// so a burst of traffic at startup decompresses each artifact once.
type Registry struct {
	store  Store
	logger *slog.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	loaded map[types.CropType]*Ensemble
}

// NewRegistry creates a registry backed by the given artifact store.
func NewRegistry(store Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:  store,
		logger: logger,
		loaded: make(map[types.CropType]*Ensemble),
	}
}

// Get returns the ensemble for a crop, loading it on first use. Load
// failures are not cached; the next request retries.
func (r *Registry) Get(ctx context.Context, crop types.CropType) (*Ensemble, error) {
	if !crop.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidCrop,
			"unsupported crop type", nil)
	}

	r.mu.RLock()
	e, ok := r.loaded[crop]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}

	v, err, _ := r.group.Do(string(crop), func() (any, error) {
		// Re-check under the flight: a previous flight may have landed
		// between the read lock and Do.
		r.mu.RLock()
		cached, ok := r.loaded[crop]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		artifact, err := r.store.Load(ctx, crop)
		if err != nil {
			return nil, err
		}
		built, err := artifact.Build()
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.loaded[crop] = built
		r.mu.Unlock()

		r.logger.Info("model artifact loaded",
			"crop_type", crop,
			"version", artifact.Version,
			"sequence_member", artifact.Sequence != nil)
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Ensemble), nil
}

// Preload loads every supported crop's artifact up front. Used at
// startup so the first request does not pay the decompression cost;
// missing artifacts are reported but do not fail the others.
func (r *Registry) Preload(ctx context.Context) error {
	var firstErr error
	for _, crop := range types.AllCropTypes {
		if _, err := r.Get(ctx, crop); err != nil {
			r.logger.Warn("model preload failed", "crop_type", crop, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Loaded reports which crops currently have a servable ensemble.
func (r *Registry) Loaded() map[types.CropType]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[types.CropType]bool, len(types.AllCropTypes))
	for _, crop := range types.AllCropTypes {
		_, ok := r.loaded[crop]
		out[crop] = ok
	}
	return out
}
