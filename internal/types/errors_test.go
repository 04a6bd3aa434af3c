package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

// TestAppErrorImplementsError verifies that *AppError satisfies the error interface.
func TestAppErrorImplementsError(t *testing.T) {
	var _ error = (*AppError)(nil)
}

// TestAppErrorErrorFormat verifies the Error() method produces the format "code: message".
func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeValidationInvalidCrop,
		Message: "unsupported crop type \"banana\"",
	}

	expected := "validation_invalid_crop_type: unsupported crop type \"banana\""
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

// TestAppErrorUnwrap verifies the error chain support via Unwrap.
func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("database connection failed")
	appErr := &AppError{
		Code:    ErrCodeInternalDB,
		Message: "failed to insert report",
		Err:     underlying,
	}

	if appErr.Unwrap() != underlying {
		t.Errorf("Unwrap() returned unexpected error: got %v, want %v", appErr.Unwrap(), underlying)
	}
}

// TestAppErrorUnwrapNil verifies Unwrap returns nil when no underlying error exists.
func TestAppErrorUnwrapNil(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeNotFoundModelArtifact,
		Message: "model artifact not found",
	}

	if appErr.Unwrap() != nil {
		t.Errorf("Unwrap() should return nil when Err is nil, got %v", appErr.Unwrap())
	}
}

// TestAppErrorErrorsAs verifies that errors.As can extract AppError from an error chain.
func TestAppErrorErrorsAs(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeValidationDegenerateSeries,
		Message: "series carries no vegetation signal",
	}
	wrappedErr := fmt.Errorf("handler failed: %w", appErr)

	var target *AppError
	if !errors.As(wrappedErr, &target) {
		t.Fatal("errors.As should find AppError in the chain")
	}
	if target.Code != ErrCodeValidationDegenerateSeries {
		t.Errorf("extracted Code = %q, want %q", target.Code, ErrCodeValidationDegenerateSeries)
	}
}

// TestAppErrorErrorsIs verifies that errors.Is works through the AppError chain.
func TestAppErrorErrorsIs(t *testing.T) {
	sentinel := errors.New("sentinel")
	appErr := &AppError{
		Code:    ErrCodeInternalUnexpected,
		Message: "unexpected failure",
		Err:     sentinel,
	}

	if !errors.Is(appErr, sentinel) {
		t.Error("errors.Is should find the sentinel error through Unwrap")
	}
}

// TestNewAppError verifies the basic constructor.
func TestNewAppError(t *testing.T) {
	underlying := errors.New("connection refused")
	appErr := NewAppError(ErrCodeUpstreamClimate, "climate upstream unavailable", underlying)

	if appErr.Code != ErrCodeUpstreamClimate {
		t.Errorf("Code = %q, want %q", appErr.Code, ErrCodeUpstreamClimate)
	}
	if appErr.Message != "climate upstream unavailable" {
		t.Errorf("Message = %q, want %q", appErr.Message, "climate upstream unavailable")
	}
	if appErr.Err != underlying {
		t.Errorf("Err = %v, want %v", appErr.Err, underlying)
	}
	if appErr.Details != nil {
		t.Errorf("Details should be nil, got %v", appErr.Details)
	}
}

// TestAppErrorWithDetails verifies the WithDetails method creates a copy with merged details.
func TestAppErrorWithDetails(t *testing.T) {
	original := NewAppErrorWithDetails(
		ErrCodeValidationMissingField,
		"field is required",
		nil,
		map[string]any{"field": "crop_type"},
	)

	enhanced := original.WithDetails(map[string]any{
		"supported": []string{"almond", "apple", "cherry"},
	})

	// Original should be unchanged.
	if _, ok := original.Details["supported"]; ok {
		t.Error("WithDetails should not mutate the original error")
	}

	// Enhanced should have both details.
	if enhanced.Details["field"] != "crop_type" {
		t.Errorf("enhanced should retain original detail: field = %v", enhanced.Details["field"])
	}
	if _, ok := enhanced.Details["supported"]; !ok {
		t.Error("enhanced should have the new detail key")
	}

	if enhanced.Code != original.Code {
		t.Errorf("Code should carry over: got %q, want %q", enhanced.Code, original.Code)
	}
	if enhanced.Message != original.Message {
		t.Errorf("Message should carry over: got %q, want %q", enhanced.Message, original.Message)
	}
}

// TestErrorCodeHTTPStatusMapping verifies the mapping from error codes to HTTP statuses.
func TestErrorCodeHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		// Validation (400)
		{ErrCodeValidationInvalidCrop, http.StatusBadRequest},
		{ErrCodeValidationInvalidLat, http.StatusBadRequest},
		{ErrCodeValidationInvalidLon, http.StatusBadRequest},
		{ErrCodeValidationDegenerateSeries, http.StatusBadRequest},
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationBatchSize, http.StatusBadRequest},

		// Not Found (404)
		{ErrCodeNotFoundModelArtifact, http.StatusNotFound},
		{ErrCodeNotFoundReport, http.StatusNotFound},

		// Conflict (409)
		{ErrCodeConflictModelsNotLoaded, http.StatusConflict},

		// Internal (500)
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{ErrCodeInternalModelCorruption, http.StatusInternalServerError},

		// Upstream (502/429)
		{ErrCodeUpstreamClimate, http.StatusBadGateway},
		{ErrCodeUpstreamVegetation, http.StatusBadGateway},
		{ErrCodeUpstreamRateLimited, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			got := tt.code.HTTPStatus()
			if got != tt.wantStatus {
				t.Errorf("ErrorCode(%q).HTTPStatus() = %d, want %d", tt.code, got, tt.wantStatus)
			}
		})
	}
}

// TestErrorCodeHTTPStatusUnknown verifies that unrecognized codes default to 500.
func TestErrorCodeHTTPStatusUnknown(t *testing.T) {
	unknown := ErrorCode("totally_unknown_error")
	if unknown.HTTPStatus() != http.StatusInternalServerError {
		t.Errorf("unknown ErrorCode.HTTPStatus() = %d, want %d", unknown.HTTPStatus(), http.StatusInternalServerError)
	}
}
