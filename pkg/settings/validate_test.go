// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fields(errs []*FieldError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Field
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Configuration)
		want   []string
	}{
		{"defaults", func(c *Configuration) {}, []string{}},
		{"good urls", func(c *Configuration) {
			c.APIBaseURL = "https://api.example.com"
			c.JenkinsURL = "http://ci.local:8080/jenkins"
		}, []string{}},
		{"threshold range", func(c *Configuration) {
			c.YellowThreshold = -1
			c.GreenThreshold = 101
		}, []string{FieldYellowThreshold, FieldGreenThreshold}},
		{"yellow above green", func(c *Configuration) {
			c.YellowThreshold = 95
		}, []string{FieldYellowThreshold}},
		{"bad scheme", func(c *Configuration) {
			c.JenkinsURL = "ftp://ci.example.com"
		}, []string{FieldJenkinsURL}},
		{"missing host", func(c *Configuration) {
			c.APIBaseURL = "https://"
		}, []string{FieldAPIBaseURL}},
		{"secondary baseline without url", func(c *Configuration) {
			c.UseSecondaryForBaseline = true
		}, []string{FieldSecondaryURL}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfiguration()
			tt.mutate(&cfg)
			assert.Equal(t, tt.want, append([]string{}, fields(Validate(cfg))...))
		})
	}
}

func TestFieldError_Message(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.GreenThreshold = 150
	errs := Validate(cfg)
	require.Len(t, errs, 1)
	assert.Equal(t, "greenThreshold: must be between 0 and 100 (got 150)", errs[0].Error())
}
