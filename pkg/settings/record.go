// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package settings

import (
	"github.com/cicd-ai-toolkit/coverage-status/pkg/secret"
)

// Threshold defaults, used when a threshold is absent or not an integer.
const (
	DefaultYellowThreshold = 80
	DefaultGreenThreshold  = 90
)

// Configuration is the administrative part of the settings record. Every
// credential is a *secret.Box; a nil box or an empty string means absent.
type Configuration struct {
	APIBaseURL     string      `yaml:"api_base_url,omitempty"`
	AccessToken    *secret.Box `yaml:"access_token,omitempty"`
	JenkinsURL     string      `yaml:"jenkins_url,omitempty"`
	ProxiedJenkins bool        `yaml:"proxied_jenkins"`

	YellowThreshold int `yaml:"yellow_threshold"`
	GreenThreshold  int `yaml:"green_threshold"`

	UseSecondaryForBaseline bool        `yaml:"use_secondary_for_baseline"`
	SecondaryURL            string      `yaml:"secondary_url,omitempty"`
	SecondaryToken          *secret.Box `yaml:"secondary_token,omitempty"`
	SecondaryUser           string      `yaml:"secondary_user,omitempty"`
	SecondaryPassword       *secret.Box `yaml:"secondary_password,omitempty"`

	DisableSimpleCov bool `yaml:"disable_simplecov"`
}

// DefaultConfiguration returns the configuration used when nothing is persisted.
func DefaultConfiguration() Configuration {
	return Configuration{
		YellowThreshold: DefaultYellowThreshold,
		GreenThreshold:  DefaultGreenThreshold,
	}
}

// credential names a box field for normalization and logging.
type credential struct {
	name string
	box  **secret.Box
}

func (c *Configuration) credentials() []credential {
	return []credential{
		{FieldAccessToken, &c.AccessToken},
		{FieldSecondaryToken, &c.SecondaryToken},
		{FieldSecondaryPassword, &c.SecondaryPassword},
	}
}

// Record is the single logical record handed to a Backend.
type Record struct {
	Configuration `yaml:",inline"`
	Coverage      map[string]float64 `yaml:"coverage_by_project,omitempty"`
}

// NewRecord returns a record holding defaults and an empty coverage map.
// Backends decode into it so absent fields keep their defaults.
func NewRecord() *Record {
	return &Record{
		Configuration: DefaultConfiguration(),
		Coverage:      make(map[string]float64),
	}
}
