package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_GetUnsetKey(t *testing.T) {
	s := testStore(t)
	v, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Fatalf("got %q", v)
	}
}

func TestStore_SetGetOverwrite(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "AI_MODEL", "gpt-4o"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "AI_MODEL", "claude-sonnet-4"); err != nil {
		t.Fatal(err)
	}

	v, err := s.Get(ctx, "AI_MODEL")
	if err != nil {
		t.Fatal(err)
	}
	if v != "claude-sonnet-4" {
		t.Fatalf("last write should win, got %q", v)
	}
}

func TestStore_TokenRoundtrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if tok, err := s.Tokens(ctx); err != nil || tok != nil {
		t.Fatalf("fresh store: tok=%v err=%v", tok, err)
	}

	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	err := s.SaveTokens(ctx, TokenRecord{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    expiry,
	})
	if err != nil {
		t.Fatal(err)
	}

	tok, err := s.Tokens(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if tok == nil || tok.AccessToken != "at" || tok.RefreshToken != "rt" {
		t.Fatalf("got %+v", tok)
	}
	if !tok.ExpiresAt.Equal(expiry) {
		t.Errorf("expiry %v, want %v", tok.ExpiresAt, expiry)
	}
}

func TestStore_CorruptTokenSlotReadsAsUnauthorized(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, keyTokens, "{not json"); err != nil {
		t.Fatal(err)
	}
	tok, err := s.Tokens(ctx)
	if err != nil {
		t.Fatalf("corrupt slot must not error: %v", err)
	}
	if tok != nil {
		t.Fatalf("got %+v", tok)
	}
}

func TestStore_Password(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p, err := s.Password(ctx)
	if err != nil || p != "" {
		t.Fatalf("fresh store: p=%q err=%v", p, err)
	}
	if err := s.SetPassword(ctx, "hunter2"); err != nil {
		t.Fatal(err)
	}
	p, err = s.Password(ctx)
	if err != nil || p != "hunter2" {
		t.Fatalf("got %q, %v", p, err)
	}
}

func TestStore_AnalysisRoundtrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	content, model, err := s.Analysis(ctx, "2026-02-14")
	if err != nil || content != "" || model != "" {
		t.Fatalf("fresh store: %q %q %v", content, model, err)
	}

	if err := s.SaveAnalysis(ctx, "2026-02-14", "first", "gpt-4o"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveAnalysis(ctx, "2026-02-14", "second", "claude-sonnet-4"); err != nil {
		t.Fatal(err)
	}

	content, model, err = s.Analysis(ctx, "2026-02-14")
	if err != nil {
		t.Fatal(err)
	}
	if content != "second" || model != "claude-sonnet-4" {
		t.Fatalf("got %q %q", content, model)
	}
}

func TestStore_OpenCreatesDirectory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	s, err := Open(path, logger)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
}
