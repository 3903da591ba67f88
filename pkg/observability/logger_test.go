// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_FieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf, "info")

	log.Debug("hidden")
	log.With(String("component", "store")).Info("saved",
		String("backend", "yaml"),
		Int("projects", 2),
		Float64("coverage", 81.5),
		Bool("ok", true),
		Err(errors.New("none")),
	)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "saved", lines[0]["message"])
	assert.Equal(t, "store", lines[0]["component"])
	assert.Equal(t, "yaml", lines[0]["backend"])
	assert.Equal(t, float64(2), lines[0]["projects"])
	assert.Equal(t, 81.5, lines[0]["coverage"])
	assert.Equal(t, true, lines[0]["ok"])
	assert.Equal(t, "none", lines[0]["error"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestAuditor_Record(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditor(NewLoggerTo(&buf, "debug"))
	a.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	a.Record(&AuditEvent{
		Action:  ActionCoverageRecorded,
		Success: true,
		Details: map[string]string{"project": "org/repo"},
	})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "audit", lines[0]["component"])
	assert.Equal(t, ActionCoverageRecorded, lines[0]["action"])
	assert.Equal(t, "2026-01-02T03:04:05Z", lines[0]["ts"])
	assert.Equal(t, "org/repo", lines[0]["project"])
	assert.Len(t, lines[0]["event_id"], 36)
}

func TestAuditor_KeepsGivenID(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditor(NewLoggerTo(&buf, "info"))
	ev := &AuditEvent{ID: "fixed-id", Action: ActionConfigured, Success: true}
	a.Record(ev)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "fixed-id", lines[0]["event_id"])
	assert.NotEmpty(t, ev.Timestamp)
}

func TestNop_DoesNotPanic(t *testing.T) {
	l := Nop()
	l.Info("x", String("a", "b"))
	l.With(Err(errors.New("e"))).Error("y")
	NewAuditor(nil).Record(&AuditEvent{Action: ActionConfigured})
}
