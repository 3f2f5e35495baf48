// Package oura talks to the Oura cloud API v2: OAuth2 authorization with
// refresh-token rotation, and per-day record fetching with field mapping
// into domain.HealthRecord.
package oura

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"ouramate/internal/config"
	"ouramate/internal/domain"
	"ouramate/internal/store"
)

const (
	defaultAPIBase = "https://api.ouraring.com"
	authURL        = "https://cloud.ouraring.com/oauth/authorize"
	tokenURL       = "https://api.ouraring.com/oauth/token"

	defaultHTTPTimeout = 30 * time.Second

	// Refresh this long before the recorded expiry so a token never goes
	// stale mid-request.
	expirySkew = 5 * time.Minute
)

var scopes = []string{"daily", "email", "personal", "session", "heartrate", "workout", "spo2"}

// Client implements domain.HealthSource against the Oura cloud API.
type Client struct {
	resolver *config.Resolver
	tokens   *store.Store
	apiBase  string
	tokenURL string
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

type ClientConfig struct {
	Resolver *config.Resolver
	Tokens   *store.Store
	APIBase  string // override for tests
	TokenURL string // override for tests
	Logger   *slog.Logger
}

func New(cfg ClientConfig) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = tokenURL
	}
	return &Client{
		resolver: cfg.Resolver,
		tokens:   cfg.Tokens,
		apiBase:  cfg.APIBase,
		tokenURL: cfg.TokenURL,
		client:   &http.Client{Timeout: defaultHTTPTimeout},
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

func (c *Client) oauthConfig(ctx context.Context, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.resolver.Get(ctx, config.KeyOuraClientID),
		ClientSecret: c.resolver.Get(ctx, config.KeyOuraSecret),
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: c.tokenURL,
		},
	}
}

// AuthCodeURL builds the user-facing authorization URL.
func (c *Client) AuthCodeURL(ctx context.Context, redirectURL, state string) string {
	return c.oauthConfig(ctx, redirectURL).AuthCodeURL(state)
}

// Exchange trades an authorization code for a token pair and persists it.
func (c *Client) Exchange(ctx context.Context, redirectURL, code string) error {
	tok, err := c.oauthConfig(ctx, redirectURL).Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	return c.saveToken(ctx, tok)
}

func (c *Client) saveToken(ctx context.Context, tok *oauth2.Token) error {
	rec := store.TokenRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if err := c.tokens.SaveTokens(ctx, rec); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}
	return nil
}

// accessToken returns a live access token, refreshing and persisting the
// rotated pair when the stored one is near expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	rec, err := c.tokens.Tokens(ctx)
	if err != nil {
		return "", err
	}
	if rec == nil || rec.AccessToken == "" {
		return "", fmt.Errorf("not authorized: connect Oura first")
	}

	tok := &oauth2.Token{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		Expiry:       rec.ExpiresAt.Add(-expirySkew),
	}
	fresh, err := c.oauthConfig(ctx, "").TokenSource(ctx, tok).Token()
	if err != nil {
		return "", fmt.Errorf("token refresh: %w", err)
	}
	if fresh.AccessToken != rec.AccessToken {
		if err := c.saveToken(ctx, fresh); err != nil {
			return "", err
		}
		c.logger.Info("oura token refreshed", "expires", fresh.Expiry)
	}
	return fresh.AccessToken, nil
}

// Authorized reports whether a token pair is on file.
func (c *Client) Authorized(ctx context.Context) bool {
	rec, err := c.tokens.Tokens(ctx)
	return err == nil && rec != nil && rec.AccessToken != ""
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	u := c.apiBase + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("oura request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("oura %s returned %d: %s", endpoint, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

// --- Wire types (Oura API v2) ---

type dailySleepResponse struct {
	Data []struct {
		Score        *int `json:"score"`
		Contributors struct {
			Efficiency  *int `json:"efficiency"`
			Restfulness *int `json:"restfulness"`
			Latency     *int `json:"latency"`
		} `json:"contributors"`
	} `json:"data"`
}

type sleepDetailResponse struct {
	Data []struct {
		TotalSleep *int     `json:"total_sleep_duration"`
		DeepSleep  *int     `json:"deep_sleep_duration"`
		RemSleep   *int     `json:"rem_sleep_duration"`
		LightSleep *int     `json:"light_sleep_duration"`
		AwakeTime  *int     `json:"awake_time"`
		AvgHR      *float64 `json:"average_heart_rate"`
		LowestHR   *float64 `json:"lowest_heart_rate"`
		AvgHRV     *int     `json:"average_hrv"`
	} `json:"data"`
}

type dailyActivityResponse struct {
	Data []struct {
		Score          *int `json:"score"`
		ActiveCalories *int `json:"active_calories"`
		TotalCalories  *int `json:"total_calories"`
		Steps          *int `json:"steps"`
		Distance       *int `json:"equivalent_walking_distance"`
		HighActivity   *int `json:"high_activity_time"`
		MediumActivity *int `json:"medium_activity_time"`
		LowActivity    *int `json:"low_activity_time"`
		SedentaryTime  *int `json:"sedentary_time"`
	} `json:"data"`
}

type dailyReadinessResponse struct {
	Data []struct {
		Score         *int     `json:"score"`
		TempDeviation *float64 `json:"temperature_deviation"`
		Contributors  struct {
			ActivityBalance *int `json:"activity_balance"`
			BodyTemperature *int `json:"body_temperature"`
			HRVBalance      *int `json:"hrv_balance"`
			PreviousDay     *int `json:"previous_day_activity"`
			PreviousNight   *int `json:"previous_night"`
			RecoveryIndex   *int `json:"recovery_index"`
			RestingHR       *int `json:"resting_heart_rate"`
			SleepBalance    *int `json:"sleep_balance"`
		} `json:"contributors"`
	} `json:"data"`
}

// FetchDay returns the record for one calendar day. Sections without data
// stay nil; a day with no data at all is still a valid (empty) record.
func (c *Client) FetchDay(ctx context.Context, day string) (*domain.HealthRecord, error) {
	params := url.Values{"start_date": {day}, "end_date": {day}}

	var sleepDaily dailySleepResponse
	if err := c.get(ctx, "/v2/usercollection/daily_sleep", params, &sleepDaily); err != nil {
		return nil, err
	}
	var sleepDetail sleepDetailResponse
	if err := c.get(ctx, "/v2/usercollection/sleep", params, &sleepDetail); err != nil {
		return nil, err
	}
	var activity dailyActivityResponse
	if err := c.get(ctx, "/v2/usercollection/daily_activity", params, &activity); err != nil {
		return nil, err
	}
	var readiness dailyReadinessResponse
	if err := c.get(ctx, "/v2/usercollection/daily_readiness", params, &readiness); err != nil {
		return nil, err
	}

	rec := &domain.HealthRecord{Day: day}

	if len(sleepDaily.Data) > 0 {
		sd := sleepDaily.Data[0]
		sleep := &domain.SleepMetrics{
			Score:       sd.Score,
			Efficiency:  sd.Contributors.Efficiency,
			Restfulness: sd.Contributors.Restfulness,
			Latency:     sd.Contributors.Latency,
		}
		// The detail endpoint may report several sessions; the last one is
		// the main night.
		if len(sleepDetail.Data) > 0 {
			d := sleepDetail.Data[len(sleepDetail.Data)-1]
			sleep.TotalSleep = d.TotalSleep
			sleep.DeepSleep = d.DeepSleep
			sleep.RemSleep = d.RemSleep
			sleep.LightSleep = d.LightSleep
			sleep.AwakeTime = d.AwakeTime
			sleep.AvgHR = d.AvgHR
			sleep.LowestHR = d.LowestHR
			sleep.AvgHRV = d.AvgHRV
		}
		rec.Sleep = sleep
	}

	if len(activity.Data) > 0 {
		a := activity.Data[0]
		rec.Activity = &domain.ActivityMetrics{
			Score:          a.Score,
			ActiveCalories: a.ActiveCalories,
			TotalCalories:  a.TotalCalories,
			Steps:          a.Steps,
			Distance:       a.Distance,
			HighActivity:   a.HighActivity,
			MediumActivity: a.MediumActivity,
			LowActivity:    a.LowActivity,
			SedentaryTime:  a.SedentaryTime,
		}
	}

	if len(readiness.Data) > 0 {
		r := readiness.Data[0]
		rec.Readiness = &domain.ReadinessMetrics{
			Score:           r.Score,
			TempDeviation:   r.TempDeviation,
			ActivityBalance: r.Contributors.ActivityBalance,
			BodyTemperature: r.Contributors.BodyTemperature,
			HRVBalance:      r.Contributors.HRVBalance,
			PreviousDay:     r.Contributors.PreviousDay,
			PreviousNight:   r.Contributors.PreviousNight,
			RecoveryIndex:   r.Contributors.RecoveryIndex,
			RestingHR:       r.Contributors.RestingHR,
			SleepBalance:    r.Contributors.SleepBalance,
		}
	}

	return rec, nil
}

// FetchRange returns up to days trailing records ending today, oldest
// first. A day that fails to fetch is logged and dropped; the rest of the
// range is still returned.
func (c *Client) FetchRange(ctx context.Context, days int) ([]domain.HealthRecord, error) {
	today := c.now()
	records := make([]domain.HealthRecord, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i).Format("2006-01-02")
		rec, err := c.FetchDay(ctx, day)
		if err != nil {
			c.logger.Warn("day fetch failed, dropping from range", "day", day, "err", err)
			continue
		}
		records = append(records, *rec)
	}
	return records, nil
}
