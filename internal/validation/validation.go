// Package validation checks request structs against their validate tags.
// Field names in messages are the json names clients send.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Struct validates v and describes the first field that failed.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err
	}
	f := fields[0]
	switch f.Tag() {
	case "required":
		return fmt.Errorf("%s is required", f.Field())
	case "email":
		return fmt.Errorf("%s is not a valid email", f.Field())
	case "min":
		return fmt.Errorf("%s must be at least %s characters", f.Field(), f.Param())
	case "max":
		return fmt.Errorf("%s must be at most %s characters", f.Field(), f.Param())
	}
	return fmt.Errorf("%s failed %s", f.Field(), f.Tag())
}
