package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"bloomwatch/internal/types"
)

func TestHandleListCrops(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/v1", NewCropHandler().RegisterRoutes)

	req := httptest.NewRequest(http.MethodGet, "/v1/crops", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	crops := decodeData[[]CropInfo](t, w)
	if len(crops) != len(types.AllCropTypes) {
		t.Fatalf("expected %d crops, got %d", len(types.AllCropTypes), len(crops))
	}

	byID := make(map[types.CropType]CropInfo, len(crops))
	for _, c := range crops {
		byID[c.ID] = c
	}

	almond, ok := byID[types.CropAlmond]
	if !ok {
		t.Fatal("expected almond in crop catalog")
	}
	if almond.BloomStart != "February" || almond.BloomEnd != "April" {
		t.Errorf("unexpected almond bloom window %s-%s", almond.BloomStart, almond.BloomEnd)
	}
	if almond.ChillHoursRequired != 200 {
		t.Errorf("unexpected almond chill hours %f", almond.ChillHoursRequired)
	}
	if almond.HistoricalPeakDOY != 50 {
		t.Errorf("unexpected almond peak DOY %d", almond.HistoricalPeakDOY)
	}

	cherry := byID[types.CropCherry]
	if len(cherry.Regions) == 0 {
		t.Error("expected regions for cherry")
	}
}
