package utils

import (
	"fmt"
	"strings"

	ierr "go-firestore-ratings/internal/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates a struct using go-playground/validator tags.
// A failed validation unwraps to errors.InvalidInput.
func Validate(s any) error {
	if err := validate.Struct(s); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return &ValidationError{Errors: validationErrors}
		}
		return err
	}
	return nil
}

// ValidateVar validates a single value against tag, e.g. "gte=1,lte=100".
func ValidateVar(name string, v any, tag string) error {
	if err := validate.Var(v, tag); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return &ValidationError{Errors: validationErrors, name: name}
		}
		return err
	}
	return nil
}

// ValidationError wraps validator.ValidationErrors with a user-friendly message.
type ValidationError struct {
	Errors validator.ValidationErrors
	name   string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, err := range e.Errors {
		field := err.Field()
		if field == "" {
			field = e.name
		}
		msgs = append(msgs, fmt.Sprintf("field '%s' %s", field, msgForTag(err)))
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ierr.InvalidInput
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return fmt.Sprintf("is required when %s is empty", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "url":
		return "must be a valid URL"
	case "datetime":
		return fmt.Sprintf("must be a date formatted as %s", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}
