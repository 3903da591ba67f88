// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package secret

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	envelopeVersion byte = 1
	keyIDLength          = 8
	nonceLength          = 12
	aesKeyLength         = 32
)

var (
	// ErrUnknownKey is returned when an envelope was sealed by a key that is
	// not on the keyring.
	ErrUnknownKey = errors.New("secret: envelope sealed with unknown key")
	// ErrCorrupt is returned when an envelope fails authentication.
	ErrCorrupt = errors.New("secret: envelope is corrupt")
)

// Key is a derived AES-256-GCM key with a short identifier.
type Key struct {
	id   [keyIDLength]byte
	aead cipher.AEAD
}

// DeriveKey turns key material and salt into a Key using argon2id.
func DeriveKey(material, salt []byte) (*Key, error) {
	if len(material) == 0 {
		return nil, errors.New("secret: empty key material")
	}
	raw := argon2.IDKey(material, salt, 1, 64*1024, 4, aesKeyLength)
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	k := &Key{aead: aead}
	sum := sha256.Sum256(raw)
	copy(k.id[:], sum[:keyIDLength])
	return k, nil
}

// ID returns the key identifier embedded in every envelope it seals.
func (k *Key) ID() []byte {
	return k.id[:]
}

// Keyring seals with the current key and opens with the current key or any
// retired one. It is safe for concurrent use.
type Keyring struct {
	current  *Key
	previous []*Key
}

// NewKeyring builds a keyring. Previous keys are only used to open.
func NewKeyring(current *Key, previous ...*Key) *Keyring {
	return &Keyring{current: current, previous: previous}
}

// Current returns the sealing key.
func (k *Keyring) Current() *Key {
	return k.current
}

// Wrap seals plaintext. Empty plaintext means "no credential" and yields nil.
func (k *Keyring) Wrap(plaintext string) *Box {
	if plaintext == "" {
		return nil
	}
	nonce := make([]byte, nonceLength)
	// crypto/rand.Read never fails.
	_, _ = rand.Read(nonce)

	buf := make([]byte, 0, 1+keyIDLength+nonceLength+len(plaintext)+k.current.aead.Overhead())
	buf = append(buf, envelopeVersion)
	buf = append(buf, k.current.id[:]...)
	buf = append(buf, nonce...)
	buf = k.current.aead.Seal(buf, nonce, []byte(plaintext), buf[:1+keyIDLength])
	return &Box{sealed: "{" + base64.StdEncoding.EncodeToString(buf) + "}"}
}

// Reveal opens a box. A nil box reveals "". A value that is not an envelope
// is a clear-text credential persisted by an older release and is returned
// as is.
func (k *Keyring) Reveal(b *Box) (string, error) {
	if b == nil {
		return "", nil
	}
	raw, ok := decodeEnvelope(b.sealed)
	if !ok {
		return b.sealed, nil
	}
	key := k.lookup(raw[1 : 1+keyIDLength])
	if key == nil {
		return "", ErrUnknownKey
	}
	nonce := raw[1+keyIDLength : 1+keyIDLength+nonceLength]
	ct := raw[1+keyIDLength+nonceLength:]
	pt, err := key.aead.Open(nil, nonce, ct, raw[:1+keyIDLength])
	if err != nil {
		return "", ErrCorrupt
	}
	return string(pt), nil
}

// Rewrap moves a box onto the current key: wrap(reveal(b)). A box already
// sealed by the current key is returned unchanged. The second result reports
// whether a new envelope was produced.
func (k *Keyring) Rewrap(b *Box) (*Box, bool, error) {
	if b == nil {
		return nil, false, nil
	}
	if k.IsCurrent(b) {
		return b, false, nil
	}
	pt, err := k.Reveal(b)
	if err != nil {
		return nil, false, err
	}
	return k.Wrap(pt), true, nil
}

// IsCurrent reports whether b is an envelope sealed by the current key.
func (k *Keyring) IsCurrent(b *Box) bool {
	if b == nil {
		return false
	}
	raw, ok := decodeEnvelope(b.sealed)
	return ok && bytes.Equal(raw[1:1+keyIDLength], k.current.id[:])
}

func (k *Keyring) lookup(id []byte) *Key {
	if bytes.Equal(id, k.current.id[:]) {
		return k.current
	}
	for _, p := range k.previous {
		if bytes.Equal(id, p.id[:]) {
			return p
		}
	}
	return nil
}

// decodeEnvelope returns the raw envelope bytes when s looks like one.
func decodeEnvelope(s string) ([]byte, bool) {
	if len(s) < 2 || !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(s[1 : len(s)-1])
	if err != nil {
		return nil, false
	}
	// version + key id + nonce + GCM tag at minimum
	if len(raw) < 1+keyIDLength+nonceLength+16 || raw[0] != envelopeVersion {
		return nil, false
	}
	return raw, true
}
