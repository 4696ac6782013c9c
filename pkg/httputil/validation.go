package httputil

import (
	"context"
	"reflect"
	"strings"

	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/i18n"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// Quantities are validated as numbers, so gt=0 works on decimal fields.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	return v
}

// Validate validates a struct using go-playground/validator, with messages in the
// default locale.
func Validate(v any) error {
	return ValidateCtx(context.Background(), v)
}

// ValidateCtx is Validate with messages in the request locale.
func ValidateCtx(ctx context.Context, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errors.BadRequest(err.Error())
	}

	details := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		details[e.Field()] = formatValidationError(ctx, e)
	}
	return errors.Validation(details)
}

func formatValidationError(ctx context.Context, e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return i18n.TFromContext(ctx, "validation.required")
	case "email":
		return i18n.TFromContext(ctx, "validation.email")
	case "min", "gte":
		return i18n.TFromContext(ctx, "validation.min", map[string]string{"param": e.Param()})
	case "max", "lte":
		return i18n.TFromContext(ctx, "validation.max", map[string]string{"param": e.Param()})
	case "gt":
		return i18n.TFromContext(ctx, "validation.positive")
	case "oneof":
		return i18n.TFromContext(ctx, "validation.oneof", map[string]string{"values": e.Param()})
	default:
		return i18n.TFromContext(ctx, "validation.invalid")
	}
}

// RegisterCustomValidation registers a custom validation function
func RegisterCustomValidation(tag string, fn validator.Func) error {
	return validate.RegisterValidation(tag, fn)
}
