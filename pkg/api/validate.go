package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/mmynk/splitcore/internal/models"
)

var (
	// ErrValidationFailed wraps every request validation error.
	ErrValidationFailed = errors.New("validation failed")

	// ErrValidatorInit is returned when custom rules cannot be registered.
	ErrValidatorInit = errors.New("validator initialization failed")
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
	errValidate  error
)

func initValidator() (*validator.Validate, error) {
	vld := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names instead of Go names.
	vld.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := vld.RegisterValidation("participant", func(fl validator.FieldLevel) bool {
		_, err := models.ParseParticipantID(fl.Field().String())
		return err == nil
	}); err != nil {
		return nil, fmt.Errorf("%w: failed to register 'participant': %w", ErrValidatorInit, err)
	}

	return vld, nil
}

// Validate checks a request against its struct tags and reports the first
// failing field.
func Validate(msg any) error {
	validateOnce.Do(func() {
		validate, errValidate = initValidator()
	})
	if errValidate != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailed, errValidate)
	}

	if err := validate.Struct(msg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return formatFieldError(fieldErrs[0])
		}
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	return nil
}

func formatFieldError(fe validator.FieldError) error {
	field := strings.TrimPrefix(fe.Namespace(), rootName(fe))
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: '%s' is required", ErrValidationFailed, field)
	case "min":
		return fmt.Errorf("%w: '%s' must be at least %s", ErrValidationFailed, field, fe.Param())
	case "max":
		return fmt.Errorf("%w: '%s' must be at most %s", ErrValidationFailed, field, fe.Param())
	case "iso4217":
		return fmt.Errorf("%w: '%s' must be an ISO 4217 currency code", ErrValidationFailed, field)
	case "participant":
		return fmt.Errorf("%w: '%s' is not a participant id: %v", ErrValidationFailed, field, fe.Value())
	default:
		return fmt.Errorf("%w: '%s' failed on '%s'", ErrValidationFailed, field, fe.Tag())
	}
}

// rootName is the struct name prefix of a namespace ("CreateGroupRequest.").
func rootName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[:i+1]
	}
	return ""
}
