package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/researchportal/pubportal/pkg/policy"
	"github.com/researchportal/pubportal/pkg/scope"
)

var authorIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-_.:/]*$`)

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
)

// Validator wraps a configured validator.Validate
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the portal's custom tags registered
func New() (*Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	custom := map[string]validator.Func{
		"role":      validateRole,
		"notna":     validateNotNA,
		"author_id": validateAuthorID,
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return nil, fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}

	return &Validator{v: v}, nil
}

// Default returns a shared validator
func Default() *Validator {
	defaultOnce.Do(func() {
		v, err := New()
		if err != nil {
			panic(err)
		}
		defaultValidator = v
	})
	return defaultValidator
}

// Struct validates s and returns a *policy.ValidationError on failure
func (val *Validator) Struct(s interface{}) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate request: %w", err)
	}

	verr := policy.NewValidationError()
	for _, fe := range fieldErrs {
		verr.Add(fieldPath(fe), message(fe))
	}
	return verr
}

// Struct validates s with the shared validator
func Struct(s interface{}) error {
	return Default().Struct(s)
}

// fieldPath drops the top-level struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notna":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "role":
		return "must be a valid role"
	case "author_id":
		return "must not contain spaces or symbols"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "numeric":
		return "must contain only digits"
	case "url":
		return "must be a valid URL"
	case "gte", "lte", "gt", "lt":
		return fmt.Sprintf("is out of range (%s %s)", fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func validateRole(fl validator.FieldLevel) bool {
	return policy.Role(fl.Field().String()).Valid()
}

func validateNotNA(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	return s != "" && s != scope.NA
}

func validateAuthorID(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == "" || authorIDPattern.MatchString(s)
}
