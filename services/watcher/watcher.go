// Package watcher implements the restock detection core: probing a
// target's order pages, classifying the result as in stock, out of
// stock or inconclusive, and running the per-target state machine that
// decides when a confirmed restock (or a persistent error condition)
// becomes an operator alert.
package watcher

import (
	"regexp"

	"restockd/lib/telemetry"
)

var tracer = telemetry.Tracer("restockd.services.watcher")

// Target describes one watched product. Descriptors are validated by
// the config layer and immutable afterwards.
type Target struct {
	// Name is the unique key for this target, state is tracked per name.
	Name string
	// Urls are candidate order pages, tried in order until one yields
	// a conclusive result.
	Urls []string
	// MustContainAny are sanity markers: a fetched page must contain at
	// least one (case-insensitive) to count as a real order page rather
	// than a block page, login wall or WAF challenge.
	MustContainAny []string
	// OutOfStockPatterns are conclusive evidence of OUT wherever they
	// match.
	OutOfStockPatterns []*regexp.Regexp
}

// Status is the last confirmed stock state of a target. A single
// unconfirmed probe never sets it, except the immediate IN -> OUT flip.
type Status string

const (
	StatusOut Status = "OUT"
	StatusIn  Status = "IN"
)

// OutcomeKind tags a probe result. ERROR means inconclusive, it is
// never treated as evidence of OUT.
type OutcomeKind string

const (
	OutcomeOut   OutcomeKind = "OUT"
	OutcomeIn    OutcomeKind = "IN"
	OutcomeError OutcomeKind = "ERROR"
)

// Outcome is the ephemeral result of probing one target once.
// Reason is a machine-readable diagnostic code and plays no role in
// control flow.
type Outcome struct {
	Kind   OutcomeKind
	Url    string
	Reason string
}

// TargetState is the persisted per-target record. Timestamps are unix
// seconds; zero means never.
type TargetState struct {
	Status Status `json:"status"`
	// InSinceTs is when Status last became IN, 0 while OUT.
	InSinceTs int64 `json:"in_since_ts"`
	// InStreak counts consecutive IN-leaning probes while Status is
	// still OUT. Meaningless once confirmed IN (clamped to the
	// confirmation threshold there).
	InStreak int `json:"in_streak"`
	// ErrStreak counts consecutive ERROR outcomes, any non-error
	// outcome resets it.
	ErrStreak             int   `json:"err_streak"`
	LastErrNotifyTs       int64 `json:"last_err_notify_ts"`
	LastInNotifyAttemptTs int64 `json:"last_in_notify_attempt_ts"`
	LastInNotifyOkTs      int64 `json:"last_in_notify_ok_ts"`

	// diagnostics only
	LastUsedUrl string `json:"last_used_url"`
	LastReason  string `json:"last_reason"`
	Ts          int64  `json:"ts"`
}

func defaultState() TargetState {
	return TargetState{Status: StatusOut}
}

// Config holds the numeric tunables. The config layer clamps them via
// Clamped before they reach the core.
type Config struct {
	TimeoutMs                  int64 `json:"timeout_ms"`
	ConfirmDelayMs             int64 `json:"confirm_delay_ms"`
	InConfirmationsRequired    int   `json:"in_confirmations_required"`
	ErrorStreakNotifyThreshold int   `json:"error_streak_notify_threshold"`
	ErrorNotifyCooldownSec     int64 `json:"error_notify_cooldown_sec"`
}

func clampInt64(v, lo, hi, def int64) int64 {
	if v == 0 {
		return def
	}
	return min(max(v, lo), hi)
}

func clampInt(v, lo, hi, def int) int {
	if v == 0 {
		return def
	}
	return min(max(v, lo), hi)
}

// Clamped bounds every tunable to a sane range, substituting defaults
// for unset fields.
func (c Config) Clamped() Config {
	return Config{
		TimeoutMs:                  clampInt64(c.TimeoutMs, 1000, 120_000, 15_000),
		ConfirmDelayMs:             clampInt64(c.ConfirmDelayMs, 1, 60_000, 3000),
		InConfirmationsRequired:    clampInt(c.InConfirmationsRequired, 1, 10, 2),
		ErrorStreakNotifyThreshold: clampInt(c.ErrorStreakNotifyThreshold, 1, 100, 5),
		ErrorNotifyCooldownSec:     clampInt64(c.ErrorNotifyCooldownSec, 60, 86_400, 1800),
	}
}
