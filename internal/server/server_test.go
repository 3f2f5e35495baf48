package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ouramate/internal/config"
	"ouramate/internal/domain"
)

// --- fakes ---

type fakeDispatcher struct {
	handled []domain.InboundMessage
	reports []string
	err     error
}

func (f *fakeDispatcher) Handle(ctx context.Context, msg domain.InboundMessage) {
	f.handled = append(f.handled, msg)
}

func (f *fakeDispatcher) DailyReport(ctx context.Context, chatID string) error {
	f.reports = append(f.reports, chatID)
	return f.err
}

type fakeStore struct {
	values   map[string]string
	password string
}

func newFakeStore() *fakeStore { return &fakeStore{values: make(map[string]string)} }

func (f *fakeStore) Get(ctx context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeStore) Set(ctx context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

func (f *fakeStore) Password(ctx context.Context) (string, error) { return f.password, nil }

func (f *fakeStore) SetPassword(ctx context.Context, password string) error {
	f.password = password
	return nil
}

type fakeOura struct {
	authorized  bool
	exchanged   []string
	exchangeErr error
}

func (f *fakeOura) AuthCodeURL(ctx context.Context, redirectURL, state string) string {
	return "https://cloud.example.com/oauth/authorize?state=" + state
}

func (f *fakeOura) Exchange(ctx context.Context, redirectURL, code string) error {
	if f.exchangeErr != nil {
		return f.exchangeErr
	}
	f.exchanged = append(f.exchanged, code)
	return nil
}

func (f *fakeOura) Authorized(ctx context.Context) bool { return f.authorized }

type serverFixture struct {
	srv        *Server
	dispatcher *fakeDispatcher
	store      *fakeStore
	oura       *fakeOura
}

func newServerFixture(t *testing.T, mutate func(*Config)) *serverFixture {
	t.Helper()

	cfg := config.Defaults()
	cfg.Telegram.ChatID = "42"
	cfg.Report.Hour = 8
	cfg.Report.Timezone = "UTC"

	dispatcher := &fakeDispatcher{}
	st := newFakeStore()
	ouraClient := &fakeOura{}

	sc := Config{
		CronSecret: "cron-secret",
		PublicURL:  "https://bot.example.com",
		Resolver:   config.NewResolver(cfg, st),
		Store:      st,
		Dispatcher: dispatcher,
		Oura:       ouraClient,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&sc)
	}

	srv := New(sc)
	// Pin the clock inside the report window.
	srv.now = func() time.Time { return time.Date(2026, 2, 14, 8, 30, 0, 0, time.UTC) }
	return &serverFixture{srv: srv, dispatcher: dispatcher, store: st, oura: ouraClient}
}

func (f *serverFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.srv.Routes().ServeHTTP(rec, req)
	return rec
}

// --- webhook ---

func TestWebhook_TextMessageDispatched(t *testing.T) {
	f := newServerFixture(t, nil)

	body := `{"update_id":1,"message":{"message_id":2,"text":"/today","chat":{"id":42},"from":{"id":7,"username":"alice"}}}`
	rec := f.do(httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if len(f.dispatcher.handled) != 1 {
		t.Fatalf("handled %d messages", len(f.dispatcher.handled))
	}
	msg := f.dispatcher.handled[0]
	if msg.ChatID != "42" || msg.Text != "/today" || msg.Sender != "alice" {
		t.Fatalf("got %+v", msg)
	}
}

func TestWebhook_NonTextUpdateAcknowledgedAndIgnored(t *testing.T) {
	f := newServerFixture(t, nil)

	for _, body := range []string{
		`{"update_id":1}`,
		`{"update_id":2,"message":{"message_id":3,"chat":{"id":42}}}`, // photo, sticker, etc.
	} {
		rec := f.do(httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body)))
		if rec.Code != http.StatusOK {
			t.Errorf("ignored update must still return 200, got %d", rec.Code)
		}
	}
	if len(f.dispatcher.handled) != 0 {
		t.Fatalf("non-text updates must not reach the dispatcher, got %d", len(f.dispatcher.handled))
	}
}

func TestWebhook_RejectsBadJSON(t *testing.T) {
	f := newServerFixture(t, nil)
	rec := f.do(httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("{nope")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestWebhook_RejectsGET(t *testing.T) {
	f := newServerFixture(t, nil)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/telegram/webhook", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status %d", rec.Code)
	}
}

// --- cron ---

func cronRequest(secret string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/cron/daily", nil)
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}
	return req
}

func TestCronDaily_RunsInsideWindow(t *testing.T) {
	f := newServerFixture(t, nil)
	rec := f.do(cronRequest("cron-secret"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.dispatcher.reports) != 1 || f.dispatcher.reports[0] != "42" {
		t.Fatalf("reports = %v", f.dispatcher.reports)
	}
}

func TestCronDaily_SkipsOutsideWindow(t *testing.T) {
	f := newServerFixture(t, nil)
	f.srv.now = func() time.Time { return time.Date(2026, 2, 14, 13, 0, 0, 0, time.UTC) }

	rec := f.do(cronRequest("cron-secret"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["skipped"] != true {
		t.Fatalf("expected skip marker: %v", resp)
	}
	if len(f.dispatcher.reports) != 0 {
		t.Fatal("report must not run outside the window")
	}
}

func TestCronDaily_RejectsBadSecret(t *testing.T) {
	f := newServerFixture(t, nil)

	if rec := f.do(cronRequest("")); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing secret: status %d", rec.Code)
	}
	if rec := f.do(cronRequest("wrong")); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: status %d", rec.Code)
	}
	if len(f.dispatcher.reports) != 0 {
		t.Fatal("unauthorized calls must not trigger a report")
	}
}

func TestCronDaily_HonorsStoreOverrides(t *testing.T) {
	f := newServerFixture(t, nil)
	// Runtime override moves the window to 21:00 Shanghai (= 13:00 UTC).
	f.store.values[config.KeyReportHour] = "21"
	f.store.values[config.KeyReportTimezone] = "Asia/Shanghai"
	f.srv.now = func() time.Time { return time.Date(2026, 2, 14, 13, 0, 0, 0, time.UTC) }

	rec := f.do(cronRequest("cron-secret"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.dispatcher.reports) != 1 {
		t.Fatalf("reports = %v", f.dispatcher.reports)
	}
}

func TestCronDaily_ReportFailure(t *testing.T) {
	f := newServerFixture(t, nil)
	f.dispatcher.err = errors.New("telegram down")

	rec := f.do(cronRequest("cron-secret"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
}

// --- OAuth ---

func TestOuraConnect_RedirectsWithState(t *testing.T) {
	f := newServerFixture(t, nil)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/oura/connect", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status %d", rec.Code)
	}
	state := f.store.values[oauthStateKey]
	if state == "" {
		t.Fatal("state not persisted")
	}
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "state="+state) {
		t.Fatalf("redirect %q does not carry the state", loc)
	}
}

func TestOuraCallback_ExchangesCode(t *testing.T) {
	f := newServerFixture(t, nil)
	f.store.values[oauthStateKey] = "state-1"

	rec := f.do(httptest.NewRequest(http.MethodGet, "/oura/callback?state=state-1&code=auth-code", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.oura.exchanged) != 1 || f.oura.exchanged[0] != "auth-code" {
		t.Fatalf("exchanged = %v", f.oura.exchanged)
	}
	if f.store.values[oauthStateKey] != "" {
		t.Error("state nonce must be burned after use")
	}
}

func TestOuraCallback_RejectsBadState(t *testing.T) {
	f := newServerFixture(t, nil)
	f.store.values[oauthStateKey] = "state-1"

	rec := f.do(httptest.NewRequest(http.MethodGet, "/oura/callback?state=evil&code=auth-code", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d", rec.Code)
	}
	if len(f.oura.exchanged) != 0 {
		t.Fatal("code must not be exchanged with a bad state")
	}
}

// --- config API ---

func TestConfigAPI_Uninitialized(t *testing.T) {
	f := newServerFixture(t, nil)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/config", nil))

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["initialized"] != false {
		t.Fatalf("got %v", resp)
	}
}

func TestConfigAPI_FirstWriteSetsPassword(t *testing.T) {
	f := newServerFixture(t, nil)

	body := `{"password":"hunter2","values":{"AI_MODEL":"claude-sonnet-4"}}`
	rec := f.do(httptest.NewRequest(http.MethodPost, "/config", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if f.store.password != "hunter2" {
		t.Fatal("first write must establish the password")
	}
	if f.store.values["AI_MODEL"] != "claude-sonnet-4" {
		t.Fatal("value not saved")
	}
}

func TestConfigAPI_WrongPasswordRejected(t *testing.T) {
	f := newServerFixture(t, nil)
	f.store.password = "hunter2"

	body := `{"password":"wrong","values":{"AI_MODEL":"x"}}`
	rec := f.do(httptest.NewRequest(http.MethodPost, "/config", strings.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
	if f.store.values["AI_MODEL"] != "" {
		t.Fatal("value must not be saved")
	}
}

func TestConfigAPI_UnknownKeyRejected(t *testing.T) {
	f := newServerFixture(t, nil)

	body := `{"password":"hunter2","values":{"NOT_A_KEY":"x"}}`
	rec := f.do(httptest.NewRequest(http.MethodPost, "/config", strings.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestConfigAPI_GetMasksSecrets(t *testing.T) {
	f := newServerFixture(t, nil)
	f.store.password = "hunter2"
	f.store.values[config.KeyAIAPIKey] = "sk-proj-abcdefabcdef"
	f.store.values[config.KeyAIModel] = "claude-sonnet-4"

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	req.Header.Set("Authorization", "Bearer hunter2")
	rec := f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var resp struct {
		Config map[string]configEntry `json:"config"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Config[config.KeyAIModel].Value != "claude-sonnet-4" {
		t.Errorf("non-secret value should show plain: %+v", resp.Config[config.KeyAIModel])
	}
	if strings.Contains(resp.Config[config.KeyAIAPIKey].Value, "abcdefabc") {
		t.Errorf("secret not masked: %+v", resp.Config[config.KeyAIAPIKey])
	}
	if !resp.Config[config.KeyAIAPIKey].Set {
		t.Error("set flag missing")
	}
}

// --- healthz ---

func TestHealthz(t *testing.T) {
	f := newServerFixture(t, nil)
	f.oura.authorized = true

	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["ok"] != true || resp["ouraAuthorized"] != true {
		t.Fatalf("got %v", resp)
	}
}
