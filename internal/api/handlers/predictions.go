// Package handlers contains the HTTP handler implementations for the
// BloomWatch API. Handlers translate between the JSON surface and the
// domain services; all business logic lives in the service packages.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bloomwatch/internal/core"
	"bloomwatch/internal/predict"
	"bloomwatch/internal/types"
)

// fetchConcurrencyLimit bounds parallel upstream fetches during batch
// prediction. Matches the prediction service's own fan-out limit so one
// batch cannot monopolize the upstream clients.
const fetchConcurrencyLimit = 8

// ndviTrendDays is how much recent NDVI history is echoed back with a
// prediction for charting.
const ndviTrendDays = 30

// PredictionServiceInterface defines the service contract for the
// prediction handler. Matches the Service interface from the predict
// package but is defined locally to avoid tight coupling per the handler
// injection pattern.
type PredictionServiceInterface interface {
	Predict(ctx context.Context, req predict.Request) (*types.BloomPrediction, error)
	PredictBatch(ctx context.Context, reqs []predict.Request) (*predict.BatchResult, error)
}

// ReportStore is the persistence contract for served predictions. It is
// optional; when nil the handler runs stateless and the report routes are
// not mounted.
type ReportStore interface {
	Record(ctx context.Context, report *types.PredictionReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*types.PredictionReport, error)
	ListRecent(ctx context.Context, crop types.CropType, limit int) ([]types.PredictionReport, error)
}

// PredictionHandler maps HTTP requests to the prediction service.
type PredictionHandler struct {
	service     PredictionServiceInterface
	source      types.ObservationSource
	reports     ReportStore
	validator   *core.Validator
	logger      *slog.Logger
	clock       types.Clock
	historyDays int
}

// NewPredictionHandler creates a new PredictionHandler with the provided
// dependencies. reports may be nil for stateless deployments.
func NewPredictionHandler(
	svc PredictionServiceInterface,
	source types.ObservationSource,
	reports ReportStore,
	val *core.Validator,
	logger *slog.Logger,
	clock types.Clock,
	historyDays int,
) *PredictionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &PredictionHandler{
		service:     svc,
		source:      source,
		reports:     reports,
		validator:   val,
		logger:      logger,
		clock:       clock,
		historyDays: historyDays,
	}
}

// RegisterRoutes mounts the prediction endpoints onto the mux. Report
// routes are mounted only when a report store is configured, so stateless
// deployments 404 on them naturally.
func (h *PredictionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/predictions", h.HandleCreate)
	r.Post("/predictions/batch", h.HandleCreateBatch)
	if h.reports != nil {
		r.Get("/predictions/reports", h.HandleListReports)
		r.Get("/predictions/reports/{id}", h.HandleGetReport)
	}
}

// PredictionRequest is the JSON body for a single prediction.
type PredictionRequest struct {
	FarmName  string  `json:"farm_name"`
	Crop      string  `json:"crop_type" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

// BatchPredictionRequest is the JSON body for a batch of predictions.
type BatchPredictionRequest struct {
	Items []BatchPredictionItem `json:"items"`
}

// BatchPredictionItem is one location inside a batch request. ID keys the
// item in the result maps; when empty the item index is used.
type BatchPredictionItem struct {
	ID string `json:"id"`
	PredictionRequest
}

// NDVIPoint is one dated NDVI sample in the trend echo.
type NDVIPoint struct {
	Date string  `json:"date"`
	NDVI float64 `json:"ndvi"`
}

// PredictionResponse is the JSON body returned for a single prediction.
type PredictionResponse struct {
	FarmName          string                 `json:"farm_name"`
	Prediction        *types.BloomPrediction `json:"prediction"`
	Recommendations   []string               `json:"recommendations"`
	NDVITrend         []NDVIPoint            `json:"ndvi_trend,omitempty"`
	HistoricalAverage string                 `json:"historical_average,omitempty"`
	ReportID          *uuid.UUID             `json:"report_id,omitempty"`
}

// HandleCreate handles POST /v1/predictions.
//
//  1. Decode and validate the request body.
//  2. Fetch the observation history for the location.
//  3. Run the prediction service.
//  4. Attach recommendations, the recent NDVI trend, and the historical
//     average; record a report when persistence is configured.
func (h *PredictionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req PredictionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	crop, loc, err := h.resolveRequest(req)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	series, err := h.source.FetchSeries(r.Context(), loc, h.historyDays)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	prediction, err := h.service.Predict(r.Context(), predict.Request{
		FarmName: req.FarmName,
		Crop:     crop,
		Location: loc,
		Series:   series,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := h.composeResponse(r.Context(), req.FarmName, prediction, series)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}

// HandleCreateBatch handles POST /v1/predictions/batch. Observation
// histories are fetched concurrently; a fetch failure for one location is
// reported per-item and does not fail the batch.
func (h *PredictionHandler) HandleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchPredictionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if len(req.Items) == 0 {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"items must contain at least one location",
			nil,
		))
		return
	}
	if len(req.Items) > predict.MaxBatchSize {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationBatchSize,
			"batch size exceeds the maximum",
			nil,
			map[string]any{"max": predict.MaxBatchSize, "got": len(req.Items)},
		))
		return
	}

	type fetched struct {
		req predict.Request
		err error
	}
	results := make([]fetched, len(req.Items))

	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(fetchConcurrencyLimit)
	for i, item := range req.Items {
		g.Go(func() error {
			id := item.ID
			if id == "" {
				id = strconv.Itoa(i)
			}

			crop, loc, err := h.resolveRequest(item.PredictionRequest)
			if err != nil {
				results[i] = fetched{req: predict.Request{ID: id}, err: err}
				return nil
			}

			series, err := h.source.FetchSeries(ctx, loc, h.historyDays)
			results[i] = fetched{
				req: predict.Request{
					ID:       id,
					FarmName: item.FarmName,
					Crop:     crop,
					Location: loc,
					Series:   series,
				},
				err: err,
			}
			return nil
		})
	}
	// Worker closures never return errors; failures are carried per item.
	_ = g.Wait()

	requests := make([]predict.Request, 0, len(results))
	preErrors := make(map[string]predict.ErrorDetail)
	for _, res := range results {
		if res.err != nil {
			preErrors[res.req.ID] = batchErrorDetail(res.err)
			continue
		}
		requests = append(requests, res.req)
	}

	batch := &predict.BatchResult{
		Predictions: map[string]*types.BloomPrediction{},
		Errors:      preErrors,
	}
	if len(requests) > 0 {
		result, err := h.service.PredictBatch(r.Context(), requests)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		batch.Predictions = result.Predictions
		for id, detail := range result.Errors {
			batch.Errors[id] = detail
		}
	}

	if h.reports != nil {
		for _, fr := range results {
			if prediction, ok := batch.Predictions[fr.req.ID]; ok {
				h.recordReport(r.Context(), fr.req.FarmName, prediction)
			}
		}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: batch})
}

// HandleListReports handles GET /v1/predictions/reports.
// Query params: crop (optional filter), limit (optional, default 50).
func (h *PredictionHandler) HandleListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var crop types.CropType
	if cropStr := q.Get("crop"); cropStr != "" {
		crop = types.CropType(cropStr)
		if !crop.Valid() {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidCrop,
				"crop must be one of: almond, apple, cherry",
				nil,
			))
			return
		}
	}

	limit := 0
	if limitStr := q.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationMissingField,
				"limit must be a positive integer",
				nil,
			))
			return
		}
		limit = parsed
	}

	reports, err := h.reports.ListRecent(r.Context(), crop, limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: reports})
}

// HandleGetReport handles GET /v1/predictions/reports/{id}.
func (h *PredictionHandler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"id must be a valid UUID",
			nil,
		))
		return
	}

	report, err := h.reports.GetByID(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: report})
}

// resolveRequest validates the request body and converts it to domain types.
func (h *PredictionHandler) resolveRequest(req PredictionRequest) (types.CropType, types.Location, error) {
	if err := h.validator.ValidateStruct(req); err != nil {
		return "", types.Location{}, err
	}
	crop := types.CropType(req.Crop)
	if !crop.Valid() {
		return "", types.Location{}, types.NewAppError(
			types.ErrCodeValidationInvalidCrop,
			"crop_type must be one of: almond, apple, cherry",
			nil,
		)
	}
	return crop, types.Location{Latitude: req.Latitude, Longitude: req.Longitude}, nil
}

// composeResponse assembles the serving-layer extras around a prediction:
// recommendations, the recent NDVI trend, the historical bloom average,
// and a best-effort report record.
func (h *PredictionHandler) composeResponse(
	ctx context.Context,
	farmName string,
	prediction *types.BloomPrediction,
	series types.ObservationSeries,
) PredictionResponse {
	resp := PredictionResponse{
		FarmName:        farmName,
		Prediction:      prediction,
		Recommendations: predict.Recommendations(prediction.DaysUntilBloom, prediction.Crop),
	}

	for _, obs := range series.Tail(ndviTrendDays) {
		resp.NDVITrend = append(resp.NDVITrend, NDVIPoint{
			Date: obs.Date.Format(time.DateOnly),
			NDVI: obs.NDVI,
		})
	}

	if cfg, err := types.ConfigFor(prediction.Crop, prediction.Location.Latitude); err == nil {
		avg := predict.HistoricalAverage(cfg, h.clock.Now().Year())
		resp.HistoricalAverage = avg.Format(time.DateOnly)
	}

	if h.reports != nil {
		if id := h.recordReport(ctx, farmName, prediction); id != nil {
			resp.ReportID = id
		}
	}
	return resp
}

// recordReport persists a served prediction. Persistence failures are
// logged and swallowed; the prediction was already computed and the
// client should still receive it.
func (h *PredictionHandler) recordReport(
	ctx context.Context,
	farmName string,
	prediction *types.BloomPrediction,
) *uuid.UUID {
	report := &types.PredictionReport{
		ID:                 uuid.New(),
		FarmName:           farmName,
		Crop:               prediction.Crop,
		Latitude:           prediction.Location.Latitude,
		Longitude:          prediction.Location.Longitude,
		Stage:              prediction.Stage,
		CanPredict:         prediction.CanPredict,
		PredictedBloomDate: prediction.PredictedBloomDate,
		IntervalStart:      prediction.IntervalStart,
		IntervalEnd:        prediction.IntervalEnd,
		DaysUntilBloom:     prediction.DaysUntilBloom,
		AgreementScore:     prediction.AgreementScore,
		Source:             prediction.Source,
		CreatedAt:          h.clock.Now(),
	}
	if err := h.reports.Record(ctx, report); err != nil {
		h.log(ctx).Warn("failed to record prediction report",
			"crop_type", prediction.Crop,
			"error", err)
		return nil
	}
	return &report.ID
}

// log returns the request-scoped logger stored by middleware, falling back to
// the handler's own logger outside a request context.
func (h *PredictionHandler) log(ctx context.Context) *slog.Logger {
	if l := types.LoggerFromContext(ctx); l != nil {
		return l
	}
	return h.logger
}

// batchErrorDetail converts a handler-side failure into the per-item
// error shape used by the prediction service.
func batchErrorDetail(err error) predict.ErrorDetail {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return predict.ErrorDetail{Code: string(appErr.Code), Message: appErr.Message}
	}
	return predict.ErrorDetail{
		Code:    string(types.ErrCodeInternalUnexpected),
		Message: "internal error",
	}
}
