// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cicd-ai-toolkit/coverage-status/pkg/secret"
	"github.com/cicd-ai-toolkit/coverage-status/pkg/settings"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"
)

// settingsID is the primary key of the only settings row.
const settingsID = 1

// SettingsModel is the single row of the settings table. Credentials are
// stored as envelopes through secret.Box's driver.Valuer.
type SettingsModel struct {
	bun.BaseModel `bun:"table:settings"`

	ID                      int         `bun:"id,pk"`
	APIBaseURL              string      `bun:"api_base_url,notnull,default:''"`
	AccessToken             *secret.Box `bun:"access_token,type:text"`
	JenkinsURL              string      `bun:"jenkins_url,notnull,default:''"`
	ProxiedJenkins          bool        `bun:"proxied_jenkins,notnull,default:false"`
	YellowThreshold         int         `bun:"yellow_threshold,notnull"`
	GreenThreshold          int         `bun:"green_threshold,notnull"`
	UseSecondaryForBaseline bool        `bun:"use_secondary_for_baseline,notnull,default:false"`
	SecondaryURL            string      `bun:"secondary_url,notnull,default:''"`
	SecondaryToken          *secret.Box `bun:"secondary_token,type:text"`
	SecondaryUser           string      `bun:"secondary_user,notnull,default:''"`
	SecondaryPassword       *secret.Box `bun:"secondary_password,type:text"`
	DisableSimpleCov        bool        `bun:"disable_simplecov,notnull,default:false"`
}

// CoverageModel is one row of the coverage table.
type CoverageModel struct {
	bun.BaseModel `bun:"table:coverage"`

	Project  string  `bun:"project,pk"`
	Coverage float64 `bun:"coverage,notnull"`
}

// SQLite stores the record in a SQLite database through bun.
type SQLite struct {
	db   *bun.DB
	path string
}

// OpenSQLite opens (creating when needed) the database at path and ensures
// the schema exists. ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: SQLite has a single writer and ":memory:" is
	// per-connection.
	sqldb.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	if path == ":memory:" {
		pragmas = pragmas[1:]
	}
	for _, pragma := range pragmas {
		if _, err := sqldb.ExecContext(ctx, pragma); err != nil {
			_ = sqldb.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &SQLite{db: bun.NewDB(sqldb, sqlitedialect.New()), path: path}
	if err := s.createSchema(ctx); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) createSchema(ctx context.Context) error {
	models := []interface{}{(*SettingsModel)(nil), (*CoverageModel)(nil)}
	for _, m := range models {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// Path returns the database path.
func (s *SQLite) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Load reads the settings row and every coverage row. No settings row means
// settings.ErrNoRecord.
func (s *SQLite) Load(ctx context.Context) (*settings.Record, error) {
	row := new(SettingsModel)
	err := s.db.NewSelect().Model(row).Where("id = ?", settingsID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, settings.ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("select settings: %w", err)
	}

	var rows []CoverageModel
	if err := s.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, fmt.Errorf("select coverage: %w", err)
	}

	rec := &settings.Record{
		Configuration: row.configuration(),
		Coverage:      make(map[string]float64, len(rows)),
	}
	for _, r := range rows {
		rec.Coverage[r.Project] = r.Coverage
	}
	return rec, nil
}

// Save replaces both tables in one transaction.
func (s *SQLite) Save(ctx context.Context, rec *settings.Record) error {
	rows := make([]CoverageModel, 0, len(rec.Coverage))
	for project, cov := range rec.Coverage {
		rows = append(rows, CoverageModel{Project: project, Coverage: cov})
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := upsertSettings(ctx, tx, settingsModelFrom(rec.Configuration)); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*CoverageModel)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return fmt.Errorf("clear coverage: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert coverage: %w", err)
		}
		return nil
	})
}

// SaveCoverage upserts a single coverage row. A settings row holding the
// defaults is created when none exists yet, so Load finds the record.
func (s *SQLite) SaveCoverage(ctx context.Context, project string, coverage float64) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(settingsModelFrom(settings.DefaultConfiguration())).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("insert default settings: %w", err)
		}
		if _, err := tx.NewInsert().Model(&CoverageModel{Project: project, Coverage: coverage}).
			On("CONFLICT (project) DO UPDATE").
			Set("coverage = EXCLUDED.coverage").
			Exec(ctx); err != nil {
			return fmt.Errorf("upsert coverage: %w", err)
		}
		return nil
	})
}

// SaveConfiguration upserts the settings row only.
func (s *SQLite) SaveConfiguration(ctx context.Context, cfg settings.Configuration) error {
	return upsertSettings(ctx, s.db, settingsModelFrom(cfg))
}

func upsertSettings(ctx context.Context, db bun.IDB, row *SettingsModel) error {
	if _, err := db.NewInsert().Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("api_base_url = EXCLUDED.api_base_url").
		Set("access_token = EXCLUDED.access_token").
		Set("jenkins_url = EXCLUDED.jenkins_url").
		Set("proxied_jenkins = EXCLUDED.proxied_jenkins").
		Set("yellow_threshold = EXCLUDED.yellow_threshold").
		Set("green_threshold = EXCLUDED.green_threshold").
		Set("use_secondary_for_baseline = EXCLUDED.use_secondary_for_baseline").
		Set("secondary_url = EXCLUDED.secondary_url").
		Set("secondary_token = EXCLUDED.secondary_token").
		Set("secondary_user = EXCLUDED.secondary_user").
		Set("secondary_password = EXCLUDED.secondary_password").
		Set("disable_simplecov = EXCLUDED.disable_simplecov").
		Exec(ctx); err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

func settingsModelFrom(c settings.Configuration) *SettingsModel {
	return &SettingsModel{
		ID:                      settingsID,
		APIBaseURL:              c.APIBaseURL,
		AccessToken:             c.AccessToken,
		JenkinsURL:              c.JenkinsURL,
		ProxiedJenkins:          c.ProxiedJenkins,
		YellowThreshold:         c.YellowThreshold,
		GreenThreshold:          c.GreenThreshold,
		UseSecondaryForBaseline: c.UseSecondaryForBaseline,
		SecondaryURL:            c.SecondaryURL,
		SecondaryToken:          c.SecondaryToken,
		SecondaryUser:           c.SecondaryUser,
		SecondaryPassword:       c.SecondaryPassword,
		DisableSimpleCov:        c.DisableSimpleCov,
	}
}

func (m *SettingsModel) configuration() settings.Configuration {
	return settings.Configuration{
		APIBaseURL:              m.APIBaseURL,
		AccessToken:             nonEmpty(m.AccessToken),
		JenkinsURL:              m.JenkinsURL,
		ProxiedJenkins:          m.ProxiedJenkins,
		YellowThreshold:         m.YellowThreshold,
		GreenThreshold:          m.GreenThreshold,
		UseSecondaryForBaseline: m.UseSecondaryForBaseline,
		SecondaryURL:            m.SecondaryURL,
		SecondaryToken:          nonEmpty(m.SecondaryToken),
		SecondaryUser:           m.SecondaryUser,
		SecondaryPassword:       nonEmpty(m.SecondaryPassword),
		DisableSimpleCov:        m.DisableSimpleCov,
	}
}

// nonEmpty maps an empty scanned envelope back to "no credential".
func nonEmpty(b *secret.Box) *secret.Box {
	return secret.Sealed(b.Envelope())
}

var _ settings.PartialBackend = (*SQLite)(nil)
