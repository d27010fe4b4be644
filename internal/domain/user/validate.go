package user

import (
	"strings"
	"unicode"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/gabpaderog/maxicoffee-server/internal/apperr"
)

// RegisterRequest holds the input for creating an account.
type RegisterRequest struct {
	Name     string `validate:"required,min=3,max=100"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=30,password"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return strongPassword(fl.Field().String())
	})
	return v
}

// strongPassword requires a lower-case letter, an upper-case letter and a
// digit.
func strongPassword(s string) bool {
	var lower, upper, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return lower && upper && digit
}

// validationError joins field errors into one Validation error.
func validationError(err error) error {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return apperr.Wrap(apperr.Validation, err, "Invalid input")
	}

	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, fieldMessage(f))
	}
	return apperr.New(apperr.Validation, strings.Join(msgs, ","))
}

func fieldMessage(f validator.FieldError) string {
	name := strings.ToLower(f.Field())
	switch f.Tag() {
	case "required":
		return `"` + name + `" is required`
	case "email":
		return `"` + name + `" must be a valid email`
	case "min":
		return `"` + name + `" length must be at least ` + f.Param() + ` characters long`
	case "max":
		return `"` + name + `" length must be less than or equal to ` + f.Param() + ` characters long`
	case "password":
		return "Password must contain at least one uppercase letter, one lowercase letter, and one digit"
	default:
		return `"` + name + `" is invalid`
	}
}
