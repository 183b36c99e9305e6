package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Hashtags are single words; the leading '#' is stripped before validation.
	if err := v.RegisterValidation("hashtag", validHashtag); err != nil {
		panic(fmt.Sprintf("register hashtag validation: %v", err))
	}
	return v
}

func validHashtag(fl validator.FieldLevel) bool {
	return !strings.ContainsAny(fl.Field().String(), " \t\r\n#,")
}

// validateStruct runs the struct tags of s and turns the first failure into
// a readable ErrInvalidInput.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	case "max":
		return fmt.Errorf("%w: %s must be at most %s characters", ErrInvalidInput, field, fe.Param())
	case "hashtag":
		return fmt.Errorf("%w: %s must be a single word", ErrInvalidInput, field)
	case "gtfield":
		return fmt.Errorf("%w: %s must be after %s", ErrInvalidInput, field, strings.ToLower(fe.Param()))
	default:
		return fmt.Errorf("%w: %s failed %q", ErrInvalidInput, field, fe.Tag())
	}
}

// NormalizeHashtag trims whitespace and a leading '#', and lowercases the tag.
func NormalizeHashtag(raw string) string {
	tag := strings.TrimSpace(raw)
	tag = strings.TrimLeft(tag, "#")
	return strings.ToLower(strings.TrimSpace(tag))
}
