package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/medleads/clinic-insight/pkg/config"
)

// credentialPair is one Basic-auth username/password pair.
type credentialPair struct {
	username string
	password string
}

// BasicAuth guards routes with HTTP Basic auth. The admin realm accepts only
// the admin pair; the general realm accepts the admin pair or any of the
// per-department pairs (medical, dental, others).
type BasicAuth struct {
	admin       credentialPair
	departments []credentialPair
}

// NewBasicAuth builds the auth middleware from the configured credentials.
// Pairs with an empty username are skipped.
func NewBasicAuth(cfg *config.AuthConfig) *BasicAuth {
	auth := &BasicAuth{
		admin: credentialPair{cfg.AdminUsername, cfg.AdminPassword},
	}
	for _, pair := range []credentialPair{
		{cfg.MedicalUsername, cfg.MedicalPassword},
		{cfg.DentalUsername, cfg.DentalPassword},
		{cfg.OthersUsername, cfg.OthersPassword},
	} {
		if pair.username != "" {
			auth.departments = append(auth.departments, pair)
		}
	}
	return auth
}

// RequireUser wraps a handler so any configured credential pair passes.
func (a *BasicAuth) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return a.require(next, false)
}

// RequireAdmin wraps a handler so only the admin pair passes.
func (a *BasicAuth) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return a.require(next, true)
}

func (a *BasicAuth) require(next http.HandlerFunc, adminOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || !a.authorized(username, password, adminOnly) {
			w.Header().Set("WWW-Authenticate", `Basic realm="clinic-insight"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (a *BasicAuth) authorized(username, password string, adminOnly bool) bool {
	if matchPair(a.admin, username, password) {
		return true
	}
	if adminOnly {
		return false
	}
	for _, pair := range a.departments {
		if matchPair(pair, username, password) {
			return true
		}
	}
	return false
}

// matchPair compares both fields in constant time.
func matchPair(pair credentialPair, username, password string) bool {
	if pair.username == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(pair.username), []byte(username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pair.password), []byte(password)) == 1
	return userOK && passOK
}
