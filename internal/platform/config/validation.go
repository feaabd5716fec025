package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate reports fields by their koanf keys so messages match the YAML.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return field.Name
		}

		return name
	})
	v.RegisterStructValidation(validateRetryWindow, RetryConfig{})

	return v
}

// validateRetryWindow rejects a backoff cap below the first interval.
func validateRetryWindow(sl validator.StructLevel) {
	rc, ok := sl.Current().Interface().(RetryConfig)
	if !ok || rc.MaxInterval == 0 || rc.InitialInterval == 0 {
		return
	}

	if rc.MaxInterval < rc.InitialInterval {
		sl.ReportError(rc.MaxInterval, "max_interval", "MaxInterval", "retry_window", "initial_interval")
	}
}

// FieldError is one invalid setting.
type FieldError struct {
	// Path is the dotted koanf key, e.g. "sync.max_items".
	Path    string
	Message string
}

func (e FieldError) Error() string {
	return e.Path + " " + e.Message
}

// ValidationError lists every invalid setting found in one pass.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	lines := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		lines[i] = f.Error()
	}

	return "invalid configuration:\n  " + strings.Join(lines, "\n  ")
}

// Validate checks the whole configuration. The service refuses to start on
// a *ValidationError.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{
			Path:    fieldPath(fe.Namespace()),
			Message: describe(fe),
		})
	}

	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		if fe.Param() == "Enabled true" {
			return "is required when enabled"
		}

		return "is required when " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid URL"
	case "file":
		return "must be an existing file"
	case "retry_window":
		return "must not be shorter than " + fe.Param()
	default:
		return fmt.Sprintf("failed the %q rule", fe.Tag())
	}
}

// fieldPath drops the root struct name: "Config.sync.max_items" → "sync.max_items".
func fieldPath(namespace string) string {
	_, path, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}

	return path
}
