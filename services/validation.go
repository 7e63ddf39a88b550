package services

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// requestValidator turns validator/v10 failures into VALIDATION_ERRORs
// named after the JSON field.
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{validate: v}
}

func (rv *requestValidator) check(req interface{}) *ServiceError {
	err := rv.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return NewInvalidFieldError("", err.Error())
	}

	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return NewMissingFieldError(field)
		}
	case "email":
		return NewInvalidFieldError(field, fmt.Sprintf("%s must be a valid email address", field))
	case "gt":
		return NewInvalidFieldError(field, fmt.Sprintf("%s must be greater than %s", field, fe.Param()))
	case "gte":
		return NewInvalidFieldError(field, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
	}
	return NewInvalidFieldError(field, fmt.Sprintf("Invalid value for %s", field))
}

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowercases s and collapses every run of other characters into a
// single hyphen.
func slugify(s string) string {
	return strings.Trim(slugInvalidChars.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// uniqueSlug suffixes base with a base36 timestamp.
func uniqueSlug(base string, now time.Time) string {
	suffix := strconv.FormatInt(now.UnixMilli(), 36)
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}
