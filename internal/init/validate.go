package init

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is one field-level validation failure in an init document.
type FieldError struct {
	Field   string
	Message string
}

// FieldErrors collects every FieldError from one Validate call.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	msgs := make([]string, 0, len(fe))
	for _, e := range fe {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(msgs, "; ")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := fld.Tag.Get("yaml")
		if tag == "" {
			return ""
		}
		return strings.Split(tag, ",")[0]
	})
	return v
}

// Validate checks spec against the struct tags on QueueSpec/TopicSpec/
// BucketSpec/SubscriptionSpec (required names, oneof protocols),
// returning a FieldErrors describing every violation.
func Validate(spec *Spec) error {
	v := newValidator()
	err := v.Struct(spec)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	out := make(FieldErrors, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, FieldError{Field: fieldName(e), Message: message(e)})
	}
	return out
}

func fieldName(e validator.FieldError) string {
	namespace := e.Namespace()
	parts := strings.SplitN(namespace, ".", 2)
	if len(parts) > 1 {
		return parts[1]
	}
	return e.Field()
}

func message(e validator.FieldError) string {
	field := fieldName(e)
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
