package core

import (
	"log/slog"

	"github.com/go-playground/validator/v10"

	"bloomwatch/internal/types"
)

// Validator wraps go-playground/validator to translate struct validation
// failures into structured AppErrors with per-field details.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		validate: validator.New(),
		logger:   logger,
	}
}

// ValidateStruct validates the given struct against its `validate` tags.
// On failure it returns a *types.AppError with code
// "validation_missing_field" and a details map of field name to the failed
// rule. A nil return means the struct is valid.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// InvalidValidationError: the input was not a struct.
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"validation target must be a struct",
			err,
		)
	}

	details := make(map[string]any, len(validationErrs))
	for _, fe := range validationErrs {
		details[fe.Field()] = fe.Tag()
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingField,
		"request validation failed",
		err,
		details,
	)
}
