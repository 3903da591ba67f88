// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package settings

import (
	"fmt"
	"net/url"
)

// FieldError describes one problem found by Validate.
type FieldError struct {
	Field   string
	Value   any
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// Validate reports configuration values that parse but make little sense:
// thresholds outside 0..100, yellow above green, malformed URLs. The store
// accepts such values as they are; administrative callers decide what to do
// with the findings.
func Validate(cfg Configuration) []*FieldError {
	var errs []*FieldError

	for _, t := range []struct {
		field string
		value int
	}{
		{FieldYellowThreshold, cfg.YellowThreshold},
		{FieldGreenThreshold, cfg.GreenThreshold},
	} {
		if t.value < 0 || t.value > 100 {
			errs = append(errs, &FieldError{Field: t.field, Value: t.value, Message: "must be between 0 and 100"})
		}
	}
	if cfg.YellowThreshold > cfg.GreenThreshold {
		errs = append(errs, &FieldError{
			Field:   FieldYellowThreshold,
			Value:   cfg.YellowThreshold,
			Message: fmt.Sprintf("must not exceed %s (%d)", FieldGreenThreshold, cfg.GreenThreshold),
		})
	}

	for _, u := range []struct {
		field string
		value string
	}{
		{FieldAPIBaseURL, cfg.APIBaseURL},
		{FieldJenkinsURL, cfg.JenkinsURL},
		{FieldSecondaryURL, cfg.SecondaryURL},
	} {
		if u.value == "" {
			continue
		}
		if err := checkURL(u.value); err != "" {
			errs = append(errs, &FieldError{Field: u.field, Value: u.value, Message: err})
		}
	}

	if cfg.UseSecondaryForBaseline && cfg.SecondaryURL == "" {
		errs = append(errs, &FieldError{
			Field:   FieldSecondaryURL,
			Value:   "",
			Message: "required when " + FieldUseSecondaryForBaseline + " is set",
		})
	}
	return errs
}

func checkURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "not a valid URL"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "scheme must be http or https"
	}
	if u.Host == "" {
		return "host is missing"
	}
	return ""
}
