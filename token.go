package tendergate

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry derives a session expiry from a bearer token. JWT-shaped
// tokens contribute their exp claim without signature verification;
// verification is the backend's job, the claim is only mirrored so the
// local session does not outlive the credential it wraps. Opaque tokens
// and tokens without exp fall back to now+ttl.
func tokenExpiry(token string, now time.Time, ttl time.Duration) time.Time {
	fallback := now.Add(ttl)
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return fallback
	}
	if claims.ExpiresAt == nil {
		return fallback
	}
	exp := claims.ExpiresAt.Time
	if exp.Before(fallback) {
		return exp
	}
	return fallback
}
