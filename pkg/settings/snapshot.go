// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package settings

import (
	"github.com/cicd-ai-toolkit/coverage-status/pkg/observability"
	"github.com/cicd-ai-toolkit/coverage-status/pkg/secret"
)

// Reader is the read-only view handed to collaborators such as the coverage
// fetcher or a badge renderer. Credential accessors return plaintext.
type Reader interface {
	APIBaseURL() string
	AccessToken() string
	JenkinsURL() string
	ProxiedJenkins() bool
	YellowThreshold() int
	GreenThreshold() int
	UseSecondaryForBaseline() bool
	SecondaryURL() string
	SecondaryToken() string
	SecondaryUser() string
	SecondaryPassword() string
	DisableSimpleCov() bool
}

// CoverageRecorder is the write side used by the coverage computation step.
type CoverageRecorder interface {
	SetCoverage(project string, coverage float64) error
}

// CoverageLookup reads the last recorded coverage of a project.
type CoverageLookup interface {
	Coverage(project string) (float64, bool)
}

// Snapshot is an immutable view of the configuration at the time Get was
// called. Credentials stay sealed inside it and are opened per call.
type Snapshot struct {
	cfg  *Configuration
	keys *secret.Keyring
	log  observability.Logger
}

func (s Snapshot) APIBaseURL() string            { return s.cfg.APIBaseURL }
func (s Snapshot) JenkinsURL() string            { return s.cfg.JenkinsURL }
func (s Snapshot) ProxiedJenkins() bool          { return s.cfg.ProxiedJenkins }
func (s Snapshot) YellowThreshold() int          { return s.cfg.YellowThreshold }
func (s Snapshot) GreenThreshold() int           { return s.cfg.GreenThreshold }
func (s Snapshot) UseSecondaryForBaseline() bool { return s.cfg.UseSecondaryForBaseline }
func (s Snapshot) SecondaryURL() string          { return s.cfg.SecondaryURL }
func (s Snapshot) SecondaryUser() string         { return s.cfg.SecondaryUser }
func (s Snapshot) DisableSimpleCov() bool        { return s.cfg.DisableSimpleCov }

func (s Snapshot) AccessToken() string {
	return s.reveal(FieldAccessToken, s.cfg.AccessToken)
}

func (s Snapshot) SecondaryToken() string {
	return s.reveal(FieldSecondaryToken, s.cfg.SecondaryToken)
}

func (s Snapshot) SecondaryPassword() string {
	return s.reveal(FieldSecondaryPassword, s.cfg.SecondaryPassword)
}

// Configuration returns a copy of the sealed configuration.
func (s Snapshot) Configuration() Configuration {
	return *s.cfg
}

// HasCredential reports whether the named credential field is set.
func (s Snapshot) HasCredential(field string) bool {
	c := *s.cfg
	for _, cred := range c.credentials() {
		if cred.name == field {
			return *cred.box != nil
		}
	}
	return false
}

// Form renders the configuration back into form input, credentials revealed,
// so that ParseForm(keys, s.Form()) reproduces it. Administrative tools use it
// to change single fields on top of the current values.
func (s Snapshot) Form() Form {
	return Form{
		FieldAPIBaseURL:              s.cfg.APIBaseURL,
		FieldAccessToken:             s.AccessToken(),
		FieldYellowThreshold:         s.cfg.YellowThreshold,
		FieldGreenThreshold:          s.cfg.GreenThreshold,
		FieldJenkinsURL:              s.cfg.JenkinsURL,
		FieldProxiedJenkins:          s.cfg.ProxiedJenkins,
		FieldUseSecondaryForBaseline: s.cfg.UseSecondaryForBaseline,
		FieldSecondaryURL:            s.cfg.SecondaryURL,
		FieldSecondaryToken:          s.SecondaryToken(),
		FieldSecondaryUser:           s.cfg.SecondaryUser,
		FieldSecondaryPassword:       s.SecondaryPassword(),
		FieldDisableSimpleCov:        s.cfg.DisableSimpleCov,
	}
}

// reveal opens a box. Boxes are normalized on load, so failure here means the
// keyring changed underneath the store; the credential reads as absent.
func (s Snapshot) reveal(field string, b *secret.Box) string {
	pt, err := s.keys.Reveal(b)
	if err != nil {
		s.log.Warn("credential could not be opened", observability.String("field", field), observability.Err(err))
		return ""
	}
	return pt
}

var _ Reader = Snapshot{}
