package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse represents the structure of the error response.
type ErrorResponse struct {
	Errors []CError `json:"errors"`
}

// CError represents a single validation error.
type CError struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

// AsError flattens the validation errors into a 400 CustomError.
func (r *ErrorResponse) AsError() *CustomError {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Msg)
	}
	return NewError(ErrBadRequest.Code, "Validation failed", strings.Join(msgs, "; "))
}

// Validator is a struct that holds the validator instance from the go-playground/validator package
type Validator struct {
	validator *validator.Validate
}

// NewValidator is a function that returns a new instance of the Validator struct
func NewValidator() *Validator {
	v := validator.New()

	CustomValidation(v)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validator: v}
}

// Validate validates the input struct and returns JSON-friendly errors, or nil.
func (v *Validator) Validate(str interface{}) *ErrorResponse {
	err := v.validator.Struct(str)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return &ErrorResponse{Errors: []CError{{Field: "", Msg: err.Error()}}}
	}
	response := ErrorResponse{Errors: make([]CError, 0, len(validationErrors))}
	for _, fe := range validationErrors {
		field := fe.Field()
		message := getErrorMessage(field, fe.Tag(), fe.Param())
		response.Errors = append(response.Errors, CError{Field: field, Msg: message})
	}
	return &response
}

func getErrorMessage(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, param)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of the following values: %s", field, param)
	case "eqfield":
		return fmt.Sprintf("%s must be equal to %s", field, param)
	case "slug":
		return fmt.Sprintf("%s must contain only lowercase letters, numbers, and hyphens, and cannot start or end with a hyphen", field)
	case "tagname":
		return fmt.Sprintf("%s may only contain letters, numbers, spaces, '.', '#', '+' and '-'", field)
	default:
		return fmt.Sprintf("something wrong on %s; %s", field, tag)
	}
}

var (
	slugPattern    = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	tagNamePattern = regexp.MustCompile(`^[\p{L}\p{N} .#+-]+$`)
)

func CustomValidation(v *validator.Validate) {
	v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("tagname", func(fl validator.FieldLevel) bool {
		return tagNamePattern.MatchString(fl.Field().String())
	})
}
