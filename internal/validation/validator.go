// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

// Package validation checks request bodies and device records against their
// `validate` struct tags using go-playground/validator v10.
//
// Two tags are added to the built-in set:
//   - identifier: organization, device and user ids. Letters, digits, '_' and
//     '-', starting with a letter or digit, at most 128 characters. Such ids
//     are safe as NATS subject tokens and badger key segments.
//   - eventkind: one of the models.EventKind values.
//
// Failed fields are reported by their JSON name so API clients can map them
// back to the request body.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/fleetpulse/internal/models"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// IsIdentifier reports whether s is a well-formed organization, device or user id.
func IsIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

var eventKinds = []models.EventKind{
	models.EventHeartbeat,
	models.EventStatusChange,
	models.EventError,
	models.EventBulkUpdate,
	models.EventCustom,
}

var customTags = map[string]validator.Func{
	"identifier": func(fl validator.FieldLevel) bool {
		return IsIdentifier(fl.Field().String())
	},
	"eventkind": func(fl validator.FieldLevel) bool {
		return models.EventKind(fl.Field().String()).Valid()
	},
}

// validate is built at package init. A failed tag registration panics there
// instead of turning every later use of the tag into a validator panic.
var validate = mustNewValidator(customTags)

func mustNewValidator(tags map[string]validator.Func) *validator.Validate {
	v, err := newValidator(tags)
	if err != nil {
		panic(fmt.Sprintf("validation: %v", err))
	}
	return v
}

func newValidator(tags map[string]validator.Func) (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return nil, fmt.Errorf("register %q: %w", tag, err)
		}
	}
	return v, nil
}

// jsonFieldName names a field after its json tag, falling back to the Go name.
func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// FieldError describes one failed field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// Error is returned by Struct when one or more fields fail.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether field failed on tag.
func (e *Error) Has(field, tag string) bool {
	for _, f := range e.Fields {
		if f.Field == field && f.Tag == tag {
			return true
		}
	}
	return false
}

// Struct validates v and returns nil or an *Error listing every failed field.
func Struct(v any) *Error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &Error{Fields: []FieldError{{Tag: "invalid", Message: err.Error()}}}
	}

	out := &Error{Fields: make([]FieldError, len(fieldErrs))}
	for i, fe := range fieldErrs {
		out.Fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: describe(fe),
		}
	}
	return out
}

func describe(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "identifier":
		return field + " must be 1-128 letters, digits, '_' or '-' starting with a letter or digit"
	case "eventkind":
		return fmt.Sprintf("%s must be one of: %s", field, joinKinds())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		if u := unit(fe.Kind()); u != "" {
			return fmt.Sprintf("%s must have %s %s %s", field, bound, param, u)
		}
		return fmt.Sprintf("%s must be %s %s", field, bound, param)
	}
	return fmt.Sprintf("%s failed %s check", field, fe.Tag())
}

func unit(k reflect.Kind) string {
	switch k {
	case reflect.String:
		return "characters"
	case reflect.Slice, reflect.Array:
		return "items"
	case reflect.Map:
		return "entries"
	}
	return ""
}

func joinKinds() string {
	names := make([]string, len(eventKinds))
	for i, k := range eventKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
