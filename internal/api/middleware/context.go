package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const (
	tierKey      contextKey = "auth_tier"
	requestIDKey contextKey = "request_id"
)

// Tier is the access level a request authenticated at.
type Tier int

const (
	TierNone Tier = iota
	TierBaseline
	TierAdmin
)

func setTier(ctx context.Context, t Tier) context.Context {
	return context.WithValue(ctx, tierKey, t)
}

// GetTier returns the tier set by Authenticate, or TierNone on public routes.
func GetTier(r *http.Request) Tier {
	t, _ := r.Context().Value(tierKey).(Tier)
	return t
}

// IsAdmin reports whether the request authenticated at the elevated tier.
func IsAdmin(r *http.Request) bool {
	return GetTier(r) == TierAdmin
}

func setRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the id assigned by Logger.
func GetRequestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}

// WithTier returns ctx carrying t, for handler tests that skip Authenticate.
func WithTier(ctx context.Context, t Tier) context.Context {
	return setTier(ctx, t)
}
