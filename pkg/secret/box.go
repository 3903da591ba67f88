// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package secret keeps credentials encrypted at rest and in memory.
//
// A Box holds only the sealed envelope of a credential. The plaintext is
// recovered on demand through a Keyring, and every encoding path (fmt, YAML,
// JSON, text, SQL) either redacts or emits the envelope, never the clear text.
package secret

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Redacted is printed in place of a credential.
const Redacted = "[SECRET]"

// Box is an immutable sealed credential. A nil *Box means "no credential".
type Box struct {
	sealed string
}

// Sealed wraps an already sealed envelope read from storage. An empty
// envelope yields nil. The envelope is not checked here; Keyring.Rewrap
// normalizes it on load.
func Sealed(envelope string) *Box {
	if envelope == "" {
		return nil
	}
	return &Box{sealed: envelope}
}

// Envelope returns the sealed form, or "" for a nil box.
func (b *Box) Envelope() string {
	if b == nil {
		return ""
	}
	return b.sealed
}

// Equal reports whether both boxes carry the same envelope.
func (b *Box) Equal(other *Box) bool {
	return b.Envelope() == other.Envelope()
}

// String redacts the box for fmt.Print* convenience.
func (b Box) String() string { return Redacted }

// GoString redacts %#v.
func (b Box) GoString() string { return Redacted }

// Format implements fmt.Formatter so every verb is redacted.
func (b Box) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, Redacted)
}

// MarshalYAML emits the envelope only.
func (b Box) MarshalYAML() (interface{}, error) { return b.sealed, nil }

// UnmarshalYAML reads an envelope (or a legacy clear-text value).
func (b *Box) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("secret: expected scalar, got yaml kind %d", node.Kind)
	}
	b.sealed = node.Value
	return nil
}

// MarshalJSON emits the envelope only.
func (b Box) MarshalJSON() ([]byte, error) { return json.Marshal(b.sealed) }

// UnmarshalJSON reads an envelope.
func (b *Box) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &b.sealed)
}

// MarshalText emits the envelope only.
func (b Box) MarshalText() ([]byte, error) { return []byte(b.sealed), nil }

// UnmarshalText reads an envelope.
func (b *Box) UnmarshalText(data []byte) error {
	b.sealed = string(data)
	return nil
}

// Value implements driver.Valuer; the database only ever sees the envelope.
func (b Box) Value() (driver.Value, error) { return b.sealed, nil }

// Scan implements sql.Scanner.
func (b *Box) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		b.sealed = ""
	case string:
		b.sealed = v
	case []byte:
		b.sealed = string(v)
	default:
		return fmt.Errorf("secret: unsupported scan type %T", src)
	}
	return nil
}
