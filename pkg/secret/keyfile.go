// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package secret

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	materialLength = 32
	saltLength     = 16
	keyFileLength  = materialLength + saltLength
)

// LoadOrCreateKeyFile reads the key file at path, creating it with fresh
// random material when it does not exist. Layout: material || salt.
func LoadOrCreateKeyFile(path string) (*Key, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		data, err = writeKeyFile(path)
	}
	if err != nil {
		return nil, err
	}
	return keyFromFileBytes(path, data)
}

// LoadKeyFile reads an existing key file.
func LoadKeyFile(path string) (*Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return keyFromFileBytes(path, data)
}

// RotateKeyFile retires the key file at path to the next free
// path+".prev.N" and writes a new key in its place. Retired files are never
// overwritten, so every key that may still seal a persisted credential stays
// on disk. It returns the new key and the retired one.
func RotateKeyFile(path string) (current, retired *Key, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if retired, err = keyFromFileBytes(path, data); err != nil {
		return nil, nil, err
	}
	if _, err := retireKeyData(path, data); err != nil {
		return nil, nil, err
	}
	if err := os.Remove(path); err != nil {
		return nil, nil, fmt.Errorf("remove retired key file: %w", err)
	}
	data, err = writeKeyFile(path)
	if err != nil {
		return nil, nil, err
	}
	current, err = keyFromFileBytes(path, data)
	if err != nil {
		return nil, nil, err
	}
	return current, retired, nil
}

// RetiredKeyFiles lists the files RotateKeyFile left for path, newest first.
// A plain path+".prev" from older rotations comes last.
func RetiredKeyFiles(path string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	type numbered struct {
		path string
		n    int
	}
	var found []numbered
	for _, e := range entries {
		candidate := filepath.Join(filepath.Dir(path), e.Name())
		if n, ok := retiredIndex(path, candidate); ok && !e.IsDir() {
			found = append(found, numbered{candidate, n})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n > found[j].n })

	out := make([]string, 0, len(found)+1)
	for _, f := range found {
		out = append(out, f.path)
	}
	if _, err := os.Stat(path + ".prev"); err == nil {
		out = append(out, path+".prev")
	}
	return out, nil
}

func retiredIndex(path, candidate string) (int, bool) {
	prefix := filepath.Clean(path) + ".prev."
	if !strings.HasPrefix(candidate, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(candidate, prefix))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// retireKeyData writes data to the first path+".prev.N" past the highest one
// present. Creation is exclusive, so two rotations never share a slot.
func retireKeyData(path string, data []byte) (string, error) {
	existing, err := RetiredKeyFiles(path)
	if err != nil {
		return "", fmt.Errorf("list retired key files: %w", err)
	}
	next := 1
	for _, p := range existing {
		if n, ok := retiredIndex(path, p); ok && n >= next {
			next = n + 1
		}
	}
	for n := next; ; n++ {
		target := path + ".prev." + strconv.Itoa(n)
		err := createExclusive(target, data)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("retire key file: %w", err)
		}
		return target, nil
	}
}

func writeKeyFile(path string) ([]byte, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	data := make([]byte, keyFileLength)
	_, _ = rand.Read(data)
	// A concurrent first start may win the create; its key is used instead.
	err := createExclusive(path, data)
	if errors.Is(err, os.ErrExist) {
		return os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("create key file: %w", err)
	}
	return data, nil
}

func createExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func keyFromFileBytes(path string, data []byte) (*Key, error) {
	if len(data) != keyFileLength {
		return nil, fmt.Errorf("key file %s: expected %d bytes, got %d", path, keyFileLength, len(data))
	}
	return DeriveKey(data[:materialLength], data[materialLength:])
}
