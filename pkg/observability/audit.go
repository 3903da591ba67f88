// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package observability

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Audit actions.
const (
	ActionConfigured       = "settings.configured"
	ActionCoverageRecorded = "coverage.recorded"
	ActionSecretsRewrap    = "secrets.rewrapped"
)

// Auditor writes audit events through a Logger.
type Auditor struct {
	log Logger
	now func() time.Time
}

// NewAuditor creates a new auditor. A nil logger discards events.
func NewAuditor(log Logger) *Auditor {
	if log == nil {
		log = Nop()
	}
	return &Auditor{log: log.With(String("component", "audit")), now: time.Now}
}

// Record logs an audit event. Details must never carry credential values.
func (a *Auditor) Record(event *AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp == "" {
		event.Timestamp = a.now().UTC().Format(time.RFC3339)
	}
	fields := []Field{
		String("event_id", event.ID),
		String("ts", event.Timestamp),
		String("action", event.Action),
		Bool("success", event.Success),
	}
	if event.Actor != "" {
		fields = append(fields, String("actor", event.Actor))
	}
	keys := make([]string, 0, len(event.Details))
	for k := range event.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, String(k, event.Details[k]))
	}
	a.log.Info("audit", fields...)
}

// AuditEvent represents an audit event.
type AuditEvent struct {
	ID        string
	Timestamp string
	Actor     string
	Action    string
	Success   bool
	Details   map[string]string
}
