package oura

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ouramate/internal/config"
	"ouramate/internal/store"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *store.Store) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Defaults()
	cfg.Oura.ClientID = "cid"
	cfg.Oura.ClientSecret = "csecret"

	c := New(ClientConfig{
		Resolver: config.NewResolver(cfg, st),
		Tokens:   st,
		APIBase:  srv.URL,
		TokenURL: srv.URL + "/oauth/token",
		Logger:   logger,
	})
	return c, st
}

func saveLiveToken(t *testing.T, st *store.Store) {
	t.Helper()
	err := st.SaveTokens(context.Background(), store.TokenRecord{
		AccessToken:  "tok-123",
		RefreshToken: "ref-123",
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func ouraHandler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	writeData := func(w http.ResponseWriter, body string) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
	checkAuth := func(r *http.Request) bool {
		return r.Header.Get("Authorization") == "Bearer tok-123"
	}
	guard := func(h func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !checkAuth(r) {
				t.Errorf("missing bearer token on %s", r.URL.Path)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			h(w, r)
		}
	}

	mux.HandleFunc("/v2/usercollection/daily_sleep", guard(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, `{"data":[{"score":85,"contributors":{"efficiency":92}}]}`)
	}))
	mux.HandleFunc("/v2/usercollection/sleep", guard(func(w http.ResponseWriter, r *http.Request) {
		// Two sessions: a nap and the main night. The last one wins.
		writeData(w, `{"data":[
			{"total_sleep_duration":1800},
			{"total_sleep_duration":27050,"deep_sleep_duration":5400,"average_hrv":42,"average_heart_rate":58.4}
		]}`)
	}))
	mux.HandleFunc("/v2/usercollection/daily_activity", guard(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, `{"data":[{"score":77,"steps":9000,"active_calories":450}]}`)
	}))
	mux.HandleFunc("/v2/usercollection/daily_readiness", guard(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, `{"data":[{"score":90,"temperature_deviation":-0.3,"contributors":{"hrv_balance":80}}]}`)
	}))
	return mux
}

func TestClient_FetchDay(t *testing.T) {
	c, st := testClient(t, ouraHandler(t))
	saveLiveToken(t, st)

	rec, err := c.FetchDay(context.Background(), "2026-02-14")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Day != "2026-02-14" {
		t.Errorf("day = %q", rec.Day)
	}
	if rec.Sleep == nil || rec.Sleep.Score == nil || *rec.Sleep.Score != 85 {
		t.Fatalf("sleep score not mapped: %+v", rec.Sleep)
	}
	if rec.Sleep.TotalSleep == nil || *rec.Sleep.TotalSleep != 27050 {
		t.Errorf("detail must come from the last session: %+v", rec.Sleep.TotalSleep)
	}
	if rec.Sleep.Efficiency == nil || *rec.Sleep.Efficiency != 92 {
		t.Errorf("contributors not mapped")
	}
	if rec.Activity == nil || *rec.Activity.Steps != 9000 {
		t.Errorf("activity not mapped: %+v", rec.Activity)
	}
	if rec.Readiness == nil || *rec.Readiness.HRVBalance != 80 {
		t.Errorf("readiness contributors not mapped: %+v", rec.Readiness)
	}
}

func TestClient_FetchDayEmptySections(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	})
	c, st := testClient(t, mux)
	saveLiveToken(t, st)

	rec, err := c.FetchDay(context.Background(), "2026-02-14")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Sleep != nil || rec.Activity != nil || rec.Readiness != nil {
		t.Errorf("empty responses must leave sections nil: %+v", rec)
	}
}

func TestClient_FetchDayNotAuthorized(t *testing.T) {
	c, _ := testClient(t, ouraHandler(t))
	if _, err := c.FetchDay(context.Background(), "2026-02-14"); err == nil {
		t.Fatal("expected not-authorized error without stored tokens")
	}
}

func TestClient_Authorized(t *testing.T) {
	c, st := testClient(t, ouraHandler(t))
	if c.Authorized(context.Background()) {
		t.Fatal("fresh store should not be authorized")
	}
	saveLiveToken(t, st)
	if !c.Authorized(context.Background()) {
		t.Fatal("expected authorized after token save")
	}
}

func TestClient_FetchRangeDropsFailedDays(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		calls++
		// The oldest day fails on its first endpoint call and is dropped.
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"data":[]}`)
	})
	c, st := testClient(t, mux)
	saveLiveToken(t, st)

	records, err := c.FetchRange(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected the failed day to be dropped, got %d records", len(records))
	}
}

func TestClient_AuthCodeURL(t *testing.T) {
	c, _ := testClient(t, ouraHandler(t))
	u := c.AuthCodeURL(context.Background(), "https://example.com/cb", "state-1")
	for _, want := range []string{"client_id=cid", "state=state-1", "response_type=code"} {
		if !strings.Contains(u, want) {
			t.Errorf("auth URL missing %q: %s", want, u)
		}
	}
}
