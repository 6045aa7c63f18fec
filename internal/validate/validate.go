// Package validate provides input validation for billing requests: struct
// tags through go-playground/validator plus a few field helpers.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiError collects multiple validation errors for a single request.
type MultiError struct {
	Errors []ValidationError
}

// Add appends a validation error. If err is nil, Add is a no-op.
func (m *MultiError) Add(err error) {
	if err == nil {
		return
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		m.Errors = append(m.Errors, *ve)
	} else {
		m.Errors = append(m.Errors, ValidationError{Field: "request", Message: err.Error()})
	}
}

// HasErrors reports whether any errors have been collected.
func (m *MultiError) HasErrors() bool { return len(m.Errors) > 0 }

// Error returns a pipe-delimited summary of all errors.
func (m *MultiError) Error() string {
	parts := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		parts[i] = e.Error()
	}
	return strings.Join(parts, " | ")
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct validates v against its `validate` tags and returns a *MultiError
// listing every failing field, or nil.
func Struct(v any) error {
	err := structValidator.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	me := &MultiError{}
	for _, fe := range fieldErrs {
		me.Add(&ValidationError{Field: fieldPath(fe), Message: tagMessage(fe)})
	}
	return me
}

// fieldPath drops the top-level struct name: "req.destination.email" -> "destination.email".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	}
	return "is invalid"
}

// NonEmptyString validates that value is not empty or whitespace-only.
func NonEmptyString(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "must not be empty"}
	}
	return nil
}

// MaxLength validates that value does not exceed max rune count.
func MaxLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must not exceed %d characters", max)}
	}
	return nil
}

var uuidRE = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// IsUUID validates that value is a valid UUID.
func IsUUID(field, value string) error {
	if !uuidRE.MatchString(strings.TrimSpace(value)) {
		return &ValidationError{Field: field, Message: "must be a valid UUID"}
	}
	return nil
}

var emailRE = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// IsEmail validates that value looks like an email address.
func IsEmail(field, value string) error {
	v := strings.TrimSpace(value)
	if len(v) > 254 || !emailRE.MatchString(v) {
		return &ValidationError{Field: field, Message: "must be a valid email address"}
	}
	return nil
}

// NoPathTraversal validates that value contains no path traversal sequences or null bytes.
func NoPathTraversal(field, value string) error {
	if strings.Contains(value, "..") || strings.ContainsRune(value, 0) {
		return &ValidationError{Field: field, Message: "must not contain path traversal sequences or null bytes"}
	}
	return nil
}
