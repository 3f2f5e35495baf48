// Package store persists secrets, OAuth tokens and cached analyses in a
// local SQLite database. It is the single external state of the bot: the
// Oura token slot, runtime config overrides, the last-delivery-error slot
// and the per-day analysis cache all live here.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	keyTokens   = "oura:tokens"
	keyPassword = "internal:password"
)

// Store is a SQLite-backed key-value store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS secrets (
		key         TEXT PRIMARY KEY,
		value       TEXT NOT NULL,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS analyses (
		day         TEXT PRIMARY KEY,
		content     TEXT NOT NULL,
		model       TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

// Get returns the stored value for key, or "" when unset.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM secrets WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set writes key unconditionally (last writer wins).
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO secrets (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// --- OAuth token slot ---

// TokenRecord is the persisted Oura OAuth token pair.
type TokenRecord struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (s *Store) SaveTokens(ctx context.Context, tok TokenRecord) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}
	return s.Set(ctx, keyTokens, string(data))
}

// Tokens returns the stored token pair, or nil when none is saved.
func (s *Store) Tokens(ctx context.Context) (*TokenRecord, error) {
	raw, err := s.Get(ctx, keyTokens)
	if err != nil || raw == "" {
		return nil, err
	}
	var tok TokenRecord
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		// A corrupt slot reads as "not authorized" rather than a hard error.
		s.logger.Warn("corrupt token slot, ignoring", "err", err)
		return nil, nil
	}
	return &tok, nil
}

// --- Config API password ---

func (s *Store) Password(ctx context.Context) (string, error) {
	return s.Get(ctx, keyPassword)
}

func (s *Store) SetPassword(ctx context.Context, password string) error {
	return s.Set(ctx, keyPassword, password)
}

// --- Analysis cache ---

// SaveAnalysis records the generated summary for a day, overwriting any
// previous one.
func (s *Store) SaveAnalysis(ctx context.Context, day, content, model string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analyses (day, content, model, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(day) DO UPDATE SET content = excluded.content, model = excluded.model, created_at = excluded.created_at`,
		day, content, model, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", day, err)
	}
	return nil
}

// Analysis returns the cached summary for a day, or ("", "") when absent.
func (s *Store) Analysis(ctx context.Context, day string) (content, model string, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT content, COALESCE(model, '') FROM analyses WHERE day = ?`, day,
	).Scan(&content, &model)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("get analysis %s: %w", day, err)
	}
	return content, model, nil
}
