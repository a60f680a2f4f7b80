// Package validate wraps go-playground/validator for request DTOs.
//
// Models declare their rules in `validate:"..."` tags; handlers call Struct
// after decoding. The first failing field is reported as a pkg.ErrBadRequest
// so the response layer maps it to 400.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/glimsocial/glim/pkg"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var (
	instance *validator.Validate
	once     sync.Once
)

// FieldError describes the first failing field of a request.
type FieldError struct {
	Field string
	Tag   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: failed on '%s' validation", e.Field, e.Tag)
}

// Unwrap lets errors.Is(err, pkg.ErrBadRequest) match.
func (e *FieldError) Unwrap() error { return pkg.ErrBadRequest }

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Report JSON field names rather than Go field names.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})

		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})

		instance = v
	})
	return instance
}

// Struct validates s against its tags.
func Struct(s any) error {
	err := get().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &FieldError{Field: fe.Field(), Tag: fe.Tag()}
	}
	return fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
}
