package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/logsink/internal/api/response"
	"github.com/kiranshivaraju/logsink/internal/config"
	"golang.org/x/crypto/bcrypt"
)

const realm = "logsink"

// Auth provides the two-tier HTTP Basic gate.
type Auth struct {
	creds config.AuthConfig
}

// NewAuth creates a new Auth middleware from the configured credential pairs.
func NewAuth(creds config.AuthConfig) *Auth {
	return &Auth{creds: creds}
}

// Authenticate resolves the caller's tier and stores it in the request
// context. Matching the elevated pair always wins. Otherwise a configured
// baseline pair must match on both fields or the request is challenged.
// With nothing configured every caller passes at the baseline tier.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tier, ok := a.Check(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
			response.Error(w, http.StatusUnauthorized,
				"UNAUTHORIZED", "Invalid credentials", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(setTier(r.Context(), tier)))
	})
}

// RequireAdmin rejects callers that did not reach the elevated tier. It must
// run after Authenticate.
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r) {
			response.Error(w, http.StatusForbidden,
				"FORBIDDEN", "Administrator credentials required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Check returns the tier the request's credentials reach, and false when a
// configured baseline pair does not match.
func (a *Auth) Check(r *http.Request) (Tier, bool) {
	user, pass, _ := r.BasicAuth()

	if a.creds.AdminConfigured() &&
		equal(user, a.creds.AdminAccount) && secretMatches(pass, a.creds.AdminPassword) {
		return TierAdmin, true
	}

	if a.creds.BaselineConfigured() {
		if equal(user, a.creds.Username) && secretMatches(pass, a.creds.Password) {
			return TierBaseline, true
		}
		return TierNone, false
	}

	return TierBaseline, true
}

func equal(given, want string) bool {
	return subtle.ConstantTimeCompare([]byte(given), []byte(want)) == 1
}

// secretMatches compares a password against a configured value that is
// either plain text or a bcrypt hash.
func secretMatches(given, configured string) bool {
	if isBcryptHash(configured) {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(given)) == nil
	}
	return equal(given, configured)
}

func isBcryptHash(s string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
