// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package settings

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	cerrors "github.com/cicd-ai-toolkit/coverage-status/pkg/errors"
	"github.com/cicd-ai-toolkit/coverage-status/pkg/secret"
)

// Form keys recognized by ParseForm.
const (
	FieldAPIBaseURL              = "apiBaseUrl"
	FieldAccessToken             = "accessToken"
	FieldYellowThreshold         = "yellowThreshold"
	FieldGreenThreshold          = "greenThreshold"
	FieldJenkinsURL              = "jenkinsUrl"
	FieldProxiedJenkins          = "proxiedJenkins"
	FieldUseSecondaryForBaseline = "useSecondaryAnalysisForBaseline"
	FieldSecondaryURL            = "secondaryServiceUrl"
	FieldSecondaryToken          = "secondaryServiceToken"
	FieldSecondaryUser           = "secondaryServiceUser"
	FieldSecondaryPassword       = "secondaryServicePassword"
	FieldDisableSimpleCov        = "disableSimpleCov"
)

// formField is one row of the parsing table: the form key and how its raw
// string lands in the configuration. Parsers never fail; they fall back to
// the field default.
type formField struct {
	key    string
	secret bool
	apply  func(c *Configuration, raw string, keys *secret.Keyring)
}

var formFields = []formField{
	{key: FieldAPIBaseURL, apply: func(c *Configuration, raw string, _ *secret.Keyring) {
		c.APIBaseURL = trimToEmpty(raw)
	}},
	{key: FieldAccessToken, secret: true, apply: func(c *Configuration, raw string, keys *secret.Keyring) {
		c.AccessToken = keys.Wrap(trimToEmpty(raw))
	}},
	{key: FieldYellowThreshold, apply: func(c *Configuration, raw string, _ *secret.Keyring) {
		c.YellowThreshold = toInt(raw, DefaultYellowThreshold)
	}},
	{key: FieldGreenThreshold, apply: func(c *Configuration, raw string, _ *secret.Keyring) {
		c.GreenThreshold = toInt(raw, DefaultGreenThreshold)
	}},
	{key: FieldJenkinsURL, apply: func(c *Configuration, raw string, _ *secret.Keyring) {
		c.JenkinsURL = trimToEmpty(raw)
	}},
	{key: FieldProxiedJenkins, apply: func(c *Configuration, raw string, _ *secret.Keyring) {
		c.ProxiedJenkins = toBool(raw)
	}},
	{key: FieldUseSecondaryForBaseline, apply: func(c *Configuration, raw string, _ *secret.Keyring) {
		c.UseSecondaryForBaseline = toBool(raw)
	}},
	{key: FieldDisableSimpleCov, apply: func(c *Configuration, raw string, _ *secret.Keyring) {
		c.DisableSimpleCov = toBool(raw)
	}},
	{key: FieldSecondaryURL, apply: func(c *Configuration, raw string, _ *secret.Keyring) {
		c.SecondaryURL = trimToEmpty(raw)
	}},
	{key: FieldSecondaryToken, secret: true, apply: func(c *Configuration, raw string, keys *secret.Keyring) {
		c.SecondaryToken = keys.Wrap(trimToEmpty(raw))
	}},
	{key: FieldSecondaryUser, apply: func(c *Configuration, raw string, _ *secret.Keyring) {
		c.SecondaryUser = trimToEmpty(raw)
	}},
	{key: FieldSecondaryPassword, secret: true, apply: func(c *Configuration, raw string, keys *secret.Keyring) {
		c.SecondaryPassword = keys.Wrap(trimToEmpty(raw))
	}},
}

// Form is raw, untyped administrative input keyed by form field name.
type Form map[string]any

// ParseForm turns raw form input into a Configuration. Absent strings become
// empty, booleans default to false, thresholds default to 80/90 and every
// credential is sealed with keys. Unknown keys are ignored. The only error is
// a structurally invalid value (a list or object where a scalar belongs),
// reported as a validation error.
func ParseForm(keys *secret.Keyring, form Form) (Configuration, error) {
	cfg := DefaultConfiguration()
	for _, f := range formFields {
		raw, err := scalarString(form[f.key])
		if err != nil {
			return Configuration{}, cerrors.ValidationError(
				fmt.Sprintf("form field %q", f.key), err).WithContext("field", f.key)
		}
		f.apply(&cfg, raw, keys)
	}
	return cfg, nil
}

// UnknownKeys lists form keys ParseForm would ignore, sorted.
func UnknownKeys(form Form) []string {
	known := make(map[string]struct{}, len(formFields))
	for _, f := range formFields {
		known[f.key] = struct{}{}
	}
	var out []string
	for k := range form {
		if _, ok := known[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// IsSecretField reports whether the form key carries a credential.
func IsSecretField(key string) bool {
	for _, f := range formFields {
		if f.key == key {
			return f.secret
		}
	}
	return false
}

// FieldKeys returns every recognized form key in table order.
func FieldKeys() []string {
	out := make([]string, len(formFields))
	for i, f := range formFields {
		out[i] = f.key
	}
	return out
}

// scalarString renders a form value the way a form post would carry it.
// Types that only print a String() form are rejected; a sealed credential
// would otherwise be stored as its redaction marker.
func scalarString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case json.Number:
		return t.String(), nil
	case []byte:
		return string(t), nil
	case secret.Box, *secret.Box:
		return "", fmt.Errorf("sealed credential given where the plain value is expected")
	default:
		return "", fmt.Errorf("expected a scalar value, got %T", v)
	}
}

func trimToEmpty(s string) string {
	return strings.TrimSpace(s)
}

// toInt parses a whole number, returning def for anything else.
func toInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

// toBool accepts true/on/yes/y/t in any case; everything else is false.
func toBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "on", "yes", "y", "t":
		return true
	default:
		return false
	}
}
