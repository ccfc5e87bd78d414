// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the launch, research and catalog documents
// exchanged over the API and persisted per launch.
//
// Request bodies and model outputs are validated with struct tags through
// one shared go-playground validator. Validation failures are reported as
// *ValidationError naming the offending JSON fields.
package datatypes

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names rather than Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	_ = validate.RegisterValidation("notblank", validators.NotBlank)
	_ = validate.RegisterValidation("channel", validateChannel)
}

// validateChannel accepts only current channel ids.
func validateChannel(fl validator.FieldLevel) bool {
	return ChannelID(fl.Field().String()).Valid()
}

// ValidationError reports which fields of a document failed validation.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s", strings.Join(e.Fields, ", "))
}

// NewValidationError builds a ValidationError for a single reason.
func NewValidationError(reason string, fields ...string) *ValidationError {
	return &ValidationError{Fields: fields, Reason: reason}
}

// validateStruct runs struct-tag validation and converts the result.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Reason: err.Error()}
	}
	out := &ValidationError{Reason: fieldErrs.Error()}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, fmt.Sprintf("%s (%s)", trimNamespace(fe.Namespace()), fe.Tag()))
	}
	return out
}

// trimNamespace drops the root type name: "ResearchRequest.pmc.tagline"
// becomes "pmc.tagline".
func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
