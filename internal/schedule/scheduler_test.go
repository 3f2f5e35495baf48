package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"ouramate/internal/config"
)

type fakeReporter struct {
	calls []string
	err   error
}

func (f *fakeReporter) DailyReport(ctx context.Context, chatID string) error {
	f.calls = append(f.calls, chatID)
	return f.err
}

func testScheduler(t *testing.T, hour int, tz string) (*Scheduler, *fakeReporter) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Telegram.ChatID = "42"
	cfg.Report.Hour = hour
	cfg.Report.Timezone = tz

	rep := &fakeReporter{}
	s := New(Config{
		Resolver: config.NewResolver(cfg, nil),
		Reporter: rep,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return s, rep
}

func TestTick_FiresInWindow(t *testing.T) {
	s, rep := testScheduler(t, 8, "UTC")
	s.now = func() time.Time { return time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC) }

	s.tick(context.Background())
	if len(rep.calls) != 1 || rep.calls[0] != "42" {
		t.Fatalf("calls = %v", rep.calls)
	}
}

func TestTick_SkipsOutsideWindow(t *testing.T) {
	s, rep := testScheduler(t, 8, "UTC")
	s.now = func() time.Time { return time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC) }

	s.tick(context.Background())
	if len(rep.calls) != 0 {
		t.Fatalf("calls = %v", rep.calls)
	}
}

func TestTick_OncePerDay(t *testing.T) {
	s, rep := testScheduler(t, 8, "UTC")

	// Two ticks inside the same window, e.g. a retried cron expression.
	s.now = func() time.Time { return time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC) }
	s.tick(context.Background())
	s.now = func() time.Time { return time.Date(2026, 2, 14, 8, 30, 0, 0, time.UTC) }
	s.tick(context.Background())

	if len(rep.calls) != 1 {
		t.Fatalf("report must fire once per day, got %d", len(rep.calls))
	}

	// Next day fires again.
	s.now = func() time.Time { return time.Date(2026, 2, 15, 8, 0, 0, 0, time.UTC) }
	s.tick(context.Background())
	if len(rep.calls) != 2 {
		t.Fatalf("calls = %v", rep.calls)
	}
}

func TestTick_FailureRetriesNextTick(t *testing.T) {
	s, rep := testScheduler(t, 8, "UTC")
	s.now = func() time.Time { return time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC) }

	rep.err = errors.New("telegram down")
	s.tick(context.Background())

	// The failed day is not marked done, so the next tick retries.
	rep.err = nil
	s.tick(context.Background())
	if len(rep.calls) != 2 {
		t.Fatalf("calls = %v", rep.calls)
	}
}

func TestTick_TimezoneConversion(t *testing.T) {
	s, rep := testScheduler(t, 21, "Asia/Shanghai")
	// 13:00 UTC is 21:00 in Shanghai.
	s.now = func() time.Time { return time.Date(2026, 2, 14, 13, 0, 0, 0, time.UTC) }

	s.tick(context.Background())
	if len(rep.calls) != 1 {
		t.Fatalf("calls = %v", rep.calls)
	}
}
