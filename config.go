package tendergate

import (
	"errors"
	"time"
)

// Config carries every tunable of the engine. Instances are configured
// before [Builder.Build] and treated as immutable afterwards.
type Config struct {
	Session      SessionConfig
	OTP          OTPConfig
	TeamLogin    TeamLoginConfig
	Verification VerificationConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig governs session lifetime and durable persistence.
type SessionConfig struct {
	// TTL is the fixed session lifetime applied at establish time. The
	// expiry is bumped only by a new successful auth event, never by
	// navigation.
	TTL time.Duration
	// StorageNamespace prefixes every durable key the engine writes.
	StorageNamespace string
	// HonorTokenExpiry reads the exp claim of JWT-shaped tokens and uses
	// the earlier of claim expiry and TTL. Opaque tokens always use TTL.
	HonorTokenExpiry bool
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig governs the one-time-code flows shared by registration and
// password reset.
type OTPConfig struct {
	// CodeDigits is the exact length a code must have to be submitted.
	CodeDigits int
	// DefaultResendCooldown applies when the backend suggests no wait.
	DefaultResendCooldown time.Duration
}

/*
====================================
TEAM LOGIN CONFIG
====================================
*/

// TeamLoginConfig governs the organizational login flow.
type TeamLoginConfig struct {
	// Enabled gates the flow entirely; BeginTeamLogin fails when false.
	Enabled bool
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// VerificationConfig governs the verification-request lifecycle and its
// poll watcher.
type VerificationConfig struct {
	// PollInterval is the fixed refresh cadence while any request is
	// pending.
	PollInterval time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig governs the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking when the buffer is
	// full; the drop count is observable via Engine.AuditDropped.
	DropIfFull bool
}

// MetricsConfig governs the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			TTL:              24 * time.Hour,
			StorageNamespace: "tg",
			HonorTokenExpiry: true,
		},
		OTP: OTPConfig{
			CodeDigits:            6,
			DefaultResendCooldown: 60 * time.Second,
		},
		TeamLogin: TeamLoginConfig{
			Enabled: true,
		},
		Verification: VerificationConfig{
			PollInterval: 15 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations the engine cannot honor.
func (c Config) Validate() error {
	if c.Session.TTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if c.Session.StorageNamespace == "" {
		return errors.New("storage namespace must not be empty")
	}
	if c.OTP.CodeDigits <= 0 {
		return errors.New("OTP code digits must be positive")
	}
	if c.OTP.DefaultResendCooldown < 0 {
		return errors.New("OTP resend cooldown must not be negative")
	}
	if c.Verification.PollInterval <= 0 {
		return errors.New("verification poll interval must be positive")
	}
	return nil
}

func cloneConfig(c Config) Config {
	// All fields are value types today; the clone exists so a caller
	// mutating its Config after Build cannot reach into the engine.
	return c
}
