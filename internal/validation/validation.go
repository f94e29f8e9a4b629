// Package validation wraps go-playground/validator with JSON field names and
// client-facing messages shared by the flow services and the HTTP binder.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the process-wide validator. It reports JSON field names.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(JSONFieldName)
		instance = v
	})

	return instance
}

// JSONFieldName names a struct field the way clients see it.
func JSONFieldName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return sf.Name
	}
	return name
}

// Struct validates v and returns nil or validator.ValidationErrors.
func Struct(v interface{}) error {
	return Validator().Struct(v)
}

// Describe turns a validation error into a one-line message and per-field details.
// ok is false when err is not a validator error.
func Describe(err error) (message string, fields []FieldError, ok bool) {
	var validationErrors validator.ValidationErrors

	if !errors.As(err, &validationErrors) {
		return "", nil, false
	}

	fields = make([]FieldError, 0, len(validationErrors))
	parts := make([]string, 0, len(validationErrors))

	for _, fe := range validationErrors {
		rule := fe.Tag()
		param := fe.Param()
		msg := Message(rule, param)

		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Rule:    rule,
			Param:   param,
			Message: msg,
		})
		parts = append(parts, fe.Field()+" "+msg)
	}

	return strings.Join(parts, "; "), fields, true
}

// Message renders a human message for a validator rule.
func Message(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param + " characters"
	case "max":
		return "must be at most " + param + " characters"
	case "len":
		return "must be exactly " + param
	case "eqfield":
		return "must match " + lowerFirst(param)
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	case "uuid", "uuid4":
		return "must be a valid id"
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
