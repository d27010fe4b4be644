package handler

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/gabpaderog/maxicoffee-server/internal/apperr"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/pricing"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Decimals validate as their float value so numeric tags apply. Amounts
	// outside pricing.InRange become NaN, which fails every numeric tag.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			if !pricing.InRange(d) {
				return math.NaN()
			}
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		return f.Kind() == reflect.Float64 && !math.IsNaN(f.Float())
	})
	return v
}

func validationError(err error) error {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return apperr.Wrap(apperr.Validation, err, "Invalid input")
	}
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, fieldMessage(f))
	}
	return apperr.New(apperr.Validation, strings.Join(msgs, ", "))
}

func fieldMessage(f validator.FieldError) string {
	name := f.Namespace()
	if _, rest, ok := strings.Cut(name, "."); ok {
		name = rest
	}
	switch f.Tag() {
	case "required":
		return name + " is required"
	case "min":
		if f.Kind() == reflect.Slice {
			return name + " must contain at least " + f.Param() + " entries"
		}
		return name + " must be at least " + f.Param()
	case "amount":
		return name + " must have at most " + strconv.Itoa(pricing.MaxScale) +
			" decimal places and " + strconv.Itoa(pricing.MaxIntegerDigits) + " integer digits"
	case "gte":
		return name + " must not be negative"
	case "gt":
		return name + " must be greater than " + f.Param()
	case "lte":
		return name + " must be at most " + f.Param()
	case "oneof":
		return name + " must be one of: " + f.Param()
	case "email":
		return name + " must be a valid email"
	default:
		return name + " is invalid"
	}
}
