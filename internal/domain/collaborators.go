package domain

import "context"

// HealthSource fetches daily wearable records.
type HealthSource interface {
	// FetchDay returns the record for one calendar day (YYYY-MM-DD).
	// The record may have nil sections when the ring reported nothing.
	FetchDay(ctx context.Context, day string) (*HealthRecord, error)

	// FetchRange returns up to days trailing records ending today,
	// oldest first. Days that fail to fetch are dropped, not fatal.
	FetchRange(ctx context.Context, days int) ([]HealthRecord, error)

	// Authorized reports whether an access token is on file.
	Authorized(ctx context.Context) bool
}

// Analyzer turns health records into natural-language text.
type Analyzer interface {
	Summarize(ctx context.Context, today *HealthRecord, history []HealthRecord) (string, error)
	Answer(ctx context.Context, question string, today *HealthRecord, history []HealthRecord) (string, error)
}

// SecretStore is a password-gated key-value store for credentials,
// runtime config overrides and operator-visible debug slots.
type SecretStore interface {
	// Get returns the stored value, or "" when the key is unset.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Messenger delivers text to a chat conversation. Implementations own
// chunking and markup handling; callers hand over arbitrarily long text.
type Messenger interface {
	// Send delivers text to chatID. parseMode is the transport markup
	// mode ("HTML") or "" for plain text.
	Send(ctx context.Context, chatID, text, parseMode string) error
}
