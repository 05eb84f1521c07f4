package httpx

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/chema/chema_ledger/internal/ledger"
)

// Validator validates request DTOs and reports the first failing field.
type Validator struct {
	v *validator.Validate
}

// NewValidator builds a validator that knows the money rule: a positive
// decimal string with at most two fraction digits.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		_, err := ledger.ParseAmount(fl.FieldName(), fl.Field().String())
		return err == nil
	})
	return &Validator{v: v}
}

// Validate checks i against its struct tags.
func (v *Validator) Validate(i any) error {
	err := v.v.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ledger.ValidationError{Field: fe.Field(), Reason: reason(fe)}
	}
	return &ledger.ValidationError{Field: "body", Reason: err.Error()}
}

// Bind parses the JSON body into dst and validates it.
func (v *Validator) Bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return &ledger.ValidationError{Field: "body", Reason: "malformed request body"}
	}
	return v.Validate(dst)
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "money":
		return "must be a positive amount with at most 2 decimal places"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
