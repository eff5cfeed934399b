package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator checks request payloads and reports failures keyed by JSON field
// name.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return &Validator{validate: v}
}

func (v *Validator) Struct(value any) error {
	return v.validate.Struct(value)
}

// Var validates a single value against tag, e.g. "required,uuid".
func (v *Validator) Var(value any, tag string) error {
	return v.validate.Var(value, tag)
}

// FormatValidationErrors turns validator failures into field messages.
// Errors of any other kind yield an empty map.
func FormatValidationErrors(err error) map[string]string {
	fields := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fields
	}

	for _, e := range validationErrors {
		fields[e.Field()] = message(e.Field(), e.Tag(), e.Param())
	}
	return fields
}

// FormatVarError reports a Var failure under field. A nil err yields nil.
func FormatVarError(field string, err error) map[string]string {
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return map[string]string{field: field + " is invalid"}
	}
	e := validationErrors[0]
	return map[string]string{field: message(field, e.Tag(), e.Param())}
}

func message(field, tag, param string) string {
	switch tag {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + param + " characters"
	case "max":
		return field + " must be at most " + param + " characters"
	case "oneof":
		return field + " must be one of: " + param
	case "uuid":
		return field + " must be a valid uuid"
	case "url":
		return field + " must be a valid url"
	case "datetime":
		return field + " must be a date in " + param + " format"
	case "gte":
		return field + " must be greater than or equal to " + param
	case "lte":
		return field + " must be less than or equal to " + param
	default:
		return field + " is invalid"
	}
}
