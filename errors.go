package livehydrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrClosed is returned by every operation on a closed engine.
	ErrClosed = errors.New("livehydrate: engine closed")

	// ErrSlotNotMounted is returned when a gesture addresses a slot identity
	// with no live widget instance.
	ErrSlotNotMounted = errors.New("livehydrate: slot not mounted")

	// ErrNoInteraction is returned when a gesture reached a widget but did
	// not produce an interaction, either because the slot declares no
	// interaction mode or because the gesture addressed nothing.
	ErrNoInteraction = errors.New("livehydrate: gesture produced no interaction")
)

// FieldError represents a validation error for a specific config field
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiError is a collection of field errors (implements error interface)
type MultiError []FieldError

func (m MultiError) Error() string {
	if len(m) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range m {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidationToMultiError converts go-playground/validator errors to MultiError
func ValidationToMultiError(err error) MultiError {
	var fieldErrors MultiError

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fieldErrors
	}

	for _, e := range validationErrs {
		var message string
		switch e.Tag() {
		case "required":
			message = "is required"
		case "gte":
			message = fmt.Sprintf("must be at least %s", e.Param())
		case "lowercase":
			message = "must be lower case"
		case "excludesall":
			message = "contains characters not allowed in a tag or attribute name"
		case "ne":
			message = fmt.Sprintf("must not be %q", e.Param())
		case "nefield":
			message = fmt.Sprintf("must differ from %s", e.Param())
		default:
			message = "is invalid"
		}

		fieldErrors = append(fieldErrors, FieldError{
			Field:   e.Namespace(),
			Message: message,
		})
	}

	return fieldErrors
}
