package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/chamados-service/pkg/util/errorutil"
)

// RequestValidator wraps go-playground/validator for request DTOs.
type RequestValidator struct {
	validator *validator.Validate
}

// NewRequestValidator creates a validator that reports fields by the name the
// client sent them under.
func NewRequestValidator() *RequestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(wireName)
	return &RequestValidator{validator: v}
}

// wireName prefers the json tag, then the query tag, then the Go field name.
func wireName(field reflect.StructField) string {
	for _, key := range []string{"json", "query"} {
		name, _, _ := strings.Cut(field.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return field.Name
}

// Validate checks struct tags and reports the first failing field.
func (v *RequestValidator) Validate(i any) error {
	err := v.validator.Struct(i)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		return apperrors.NewValidationError(
			fmt.Sprintf("%s failed on '%s' validation", fe.Field(), fe.Tag()),
			map[string]any{"field": fe.Field(), "rule": fe.Tag()},
		)
	}
	return apperrors.NewValidationError(err.Error(), nil)
}
