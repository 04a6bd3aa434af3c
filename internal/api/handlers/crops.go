package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bloomwatch/internal/core"
	"bloomwatch/internal/types"
)

// CropHandler serves the static crop catalog.
type CropHandler struct{}

// NewCropHandler creates a new CropHandler.
func NewCropHandler() *CropHandler {
	return &CropHandler{}
}

// RegisterRoutes mounts the crop endpoints onto the mux.
func (h *CropHandler) RegisterRoutes(r chi.Router) {
	r.Get("/crops", h.HandleList)
}

// CropInfo describes one supported crop for clients building pickers and
// comparison views. Bloom months are the northern-hemisphere calendar;
// predictions adjust for hemisphere per request.
type CropInfo struct {
	ID                 types.CropType `json:"id"`
	Name               string         `json:"name"`
	BloomStart         string         `json:"bloom_start"`
	BloomEnd           string         `json:"bloom_end"`
	ChillHoursRequired float64        `json:"chill_hours_required"`
	HistoricalPeakDOY  int            `json:"historical_peak_doy"`
	Regions            []string       `json:"regions"`
}

// cropDisplay holds the catalog fields that are not part of the phenology
// configuration.
var cropDisplay = map[types.CropType]struct {
	name    string
	regions []string
}{
	types.CropAlmond: {"Almond", []string{"Central Valley, CA"}},
	types.CropApple:  {"Apple", []string{"Yakima Valley, WA", "Michigan"}},
	types.CropCherry: {"Cherry", []string{"Traverse City, MI", "Oregon"}},
}

// HandleList handles GET /v1/crops. Returns the supported crops with
// their calibrated phenology parameters.
func (h *CropHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	crops := make([]CropInfo, 0, len(types.AllCropTypes))
	for _, crop := range types.AllCropTypes {
		// Northern-hemisphere reference calendar for the catalog.
		cfg, err := types.ConfigFor(crop, 1.0)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		display := cropDisplay[crop]
		crops = append(crops, CropInfo{
			ID:                 crop,
			Name:               display.name,
			BloomStart:         cfg.Bloom.Start.String(),
			BloomEnd:           cfg.Bloom.End.String(),
			ChillHoursRequired: cfg.ChillHoursRequired,
			HistoricalPeakDOY:  cfg.HistoricalPeakDOY,
			Regions:            display.regions,
		})
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: crops})
}
