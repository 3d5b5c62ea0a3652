// Package validate runs go-playground/validator rules on request structs and
// flattens the result into a field → message map keyed by JSON names.
//
//	type Input struct {
//	    Email    string `json:"email"    validate:"required,email"`
//	    Password string `json:"password" validate:"required,min=8"`
//	    Role     string `json:"role"     validate:"omitempty,oneof=ADMIN USER"`
//	}
//
// Besides the built-in tags, "otp" checks for exactly six ASCII digits.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonName)
		_ = v.RegisterValidation("otp", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if len(s) != 6 {
				return false
			}
			for _, c := range s {
				if c < '0' || c > '9' {
					return false
				}
			}
			return true
		})
	})
	return v
}

// Struct validates s. The returned map is empty when s is valid.
func Struct(s any) map[string]string {
	errs := make(map[string]string)

	err := instance().Struct(s)
	if err == nil {
		return errs
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// Non-struct input: nothing to validate.
		return errs
	}

	for _, fe := range verrs {
		name := fieldPath(fe)
		if _, seen := errs[name]; !seen {
			errs[name] = message(name, fe)
		}
	}
	return errs
}

// HasErrors returns true when the errs map is non-empty.
func HasErrors(errs map[string]string) bool { return len(errs) > 0 }

// fieldPath drops the top-level struct name: "Input.items[0].qty" → "items[0].qty".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(field string, fe validator.FieldError) string {
	param := fe.Param()
	numeric := isNumeric(fe.Kind())

	switch fe.Tag() {
	case "required", "required_without", "required_if":
		return fmt.Sprintf("The %s field is required.", field)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", field)
	case "url", "http_url":
		return fmt.Sprintf("The %s must be a valid URL.", field)
	case "uuid", "uuid4":
		return fmt.Sprintf("The %s must be a valid UUID.", field)
	case "oneof":
		return fmt.Sprintf("The %s must be one of: %s.", field, strings.ReplaceAll(param, " ", ", "))
	case "otp":
		return fmt.Sprintf("The %s must be a 6-digit code.", field)
	case "datetime":
		return fmt.Sprintf("The %s is not a valid date.", field)
	case "eqfield":
		return fmt.Sprintf("The %s confirmation does not match.", field)
	case "min":
		if numeric {
			return fmt.Sprintf("The %s must be at least %s.", field, param)
		}
		return fmt.Sprintf("The %s must be at least %s characters.", field, param)
	case "max":
		if numeric {
			return fmt.Sprintf("The %s must not be greater than %s.", field, param)
		}
		return fmt.Sprintf("The %s must not exceed %s characters.", field, param)
	case "len":
		return fmt.Sprintf("The %s must be exactly %s characters.", field, param)
	case "gt":
		return fmt.Sprintf("The %s must be greater than %s.", field, param)
	case "gte":
		return fmt.Sprintf("The %s must be greater than or equal to %s.", field, param)
	case "lt":
		return fmt.Sprintf("The %s must be less than %s.", field, param)
	case "lte":
		return fmt.Sprintf("The %s must be less than or equal to %s.", field, param)
	case "numeric":
		return fmt.Sprintf("The %s field must be a number.", field)
	}
	return fmt.Sprintf("The %s field is invalid (%s).", field, fe.Tag())
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return strings.ToLower(f.Name)
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return strings.ToLower(f.Name)
	}
	return name
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
