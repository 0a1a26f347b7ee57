package common

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

var structValidator = validator.New()

// ValidateStruct applies `validate` struct tags and flattens failures into one ErrInvalidInput.
func ValidateStruct(s interface{}) error {
	err := structValidator.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewAppError("VALIDATION_ERROR", err.Error(), ErrInvalidInput)
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ve := ValidationError{Field: fe.Field(), Value: fe.Value(), Message: "failed '" + fe.Tag() + "'"}
		if fe.Tag() == "required" {
			ve.Message = "is required"
			ve.Value = ""
		}
		messages = append(messages, ve.Error())
	}
	return NewAppError("VALIDATION_ERROR", strings.Join(messages, "; "), ErrInvalidInput)
}

// ValidateAndReturnError validates s and returns InvalidArgumentError if validation fails
func ValidateAndReturnError(s interface{}) error {
	if err := ValidateStruct(s); err != nil {
		var app *AppError
		if errors.As(err, &app) {
			return InvalidArgumentError(app.Message)
		}
		return InvalidArgumentError(err.Error())
	}
	return nil
}
