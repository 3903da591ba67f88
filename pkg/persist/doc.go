// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package persist provides settings.Backend implementations: a YAML file, a
// SQLite database and an in-memory backend for tests.
//
// Credentials reach every backend as sealed envelopes; no backend ever sees
// clear text.
package persist
