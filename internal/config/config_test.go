package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative port")
	}

	cfg.Server.Port = 70000
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for port > 65535")
	}
}

func TestValidate_HistoryDaysBounds(t *testing.T) {
	cfg := Defaults()
	cfg.Chat.HistoryDays = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for historyDays=0")
	}

	cfg = Defaults()
	cfg.Chat.HistoryDays = 31
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for historyDays=31")
	}

	cfg = Defaults()
	cfg.Chat.HistoryDays = 30
	if err := Validate(cfg); err != nil {
		t.Fatalf("historyDays=30 should be valid: %v", err)
	}
}

func TestValidate_ReportHour(t *testing.T) {
	cfg := Defaults()
	cfg.Report.Hour = 24
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for hour=24")
	}

	cfg = Defaults()
	cfg.Report.Hour = 0
	if err := Validate(cfg); err != nil {
		t.Fatalf("hour=0 should be valid: %v", err)
	}
}

func TestValidate_InvalidTimezone(t *testing.T) {
	cfg := Defaults()
	cfg.Report.Timezone = "Mars/Olympus_Mons"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}

func TestValidate_ParseMode(t *testing.T) {
	for _, mode := range []string{"", "HTML"} {
		cfg := Defaults()
		cfg.Telegram.ParseMode = mode
		if err := Validate(cfg); err != nil {
			t.Fatalf("parseMode %q should be valid: %v", mode, err)
		}
	}

	cfg := Defaults()
	cfg.Telegram.ParseMode = "MarkdownV2"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unsupported parse mode")
	}
}

// --- env expansion ---

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("OURAMATE_TEST_VAR", "hello")

	if got := ExpandEnvVars("${OURAMATE_TEST_VAR}"); got != "hello" {
		t.Errorf("got %q", got)
	}
	if got := ExpandEnvVars("${OURAMATE_UNSET_VAR:-fallback}"); got != "fallback" {
		t.Errorf("got %q", got)
	}
	// No env var, no default: the literal stays for debuggability.
	if got := ExpandEnvVars("${OURAMATE_UNSET_VAR}"); got != "${OURAMATE_UNSET_VAR}" {
		t.Errorf("got %q", got)
	}
	if got := ExpandEnvVars("prefix ${OURAMATE_TEST_VAR} suffix"); got != "prefix hello suffix" {
		t.Errorf("got %q", got)
	}
}

func TestExpandEnvVars_EmptyValueUsesDefault(t *testing.T) {
	t.Setenv("OURAMATE_EMPTY_VAR", "")
	if got := ExpandEnvVars("${OURAMATE_EMPTY_VAR:-fb}"); got != "fb" {
		t.Errorf("got %q", got)
	}
}

// --- load/save ---

func TestLoadSaveRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Defaults()
	cfg.AI.Model = "claude-sonnet-4"
	cfg.Telegram.ChatID = "42"

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.AI.Model != "claude-sonnet-4" || loaded.Telegram.ChatID != "42" {
		t.Fatalf("roundtrip lost values: %+v", loaded)
	}
}

func TestLoad_ExpandsEnvInFile(t *testing.T) {
	t.Setenv("OURAMATE_TEST_TOKEN", "tok-from-env")

	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"telegram": {"token": "${OURAMATE_TEST_TOKEN}"}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "tok-from-env" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// --- masking ---

func TestMaskSecret(t *testing.T) {
	if got := MaskSecret(""); got != "" {
		t.Errorf("empty = %q", got)
	}
	if got := MaskSecret("short"); got != "***" {
		t.Errorf("short = %q", got)
	}
	got := MaskSecret("sk-abcdefghijklmnop")
	if !strings.HasPrefix(got, "sk-a") || !strings.HasSuffix(got, "mnop") || strings.Contains(got, "efgh") {
		t.Errorf("long = %q", got)
	}
}

func TestSanitize_MasksAllSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Token = "123456789:telegram-bot-token"
	cfg.Oura.ClientSecret = "oura-secret-value-long"
	cfg.AI.APIKey = "sk-proj-abcdefabcdef"
	cfg.Server.CronSecret = "cron-secret-value-long"

	out := Sanitize(cfg)
	if strings.Contains(out.Telegram.Token, "telegram-bot") {
		t.Error("telegram token not masked")
	}
	if strings.Contains(out.AI.APIKey, "abcdefabc") {
		t.Error("api key not masked")
	}
	// Original untouched.
	if cfg.Telegram.Token != "123456789:telegram-bot-token" {
		t.Error("Sanitize mutated its input")
	}
}
