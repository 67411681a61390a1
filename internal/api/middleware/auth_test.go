package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medleads/clinic-insight/pkg/config"
)

func testAuth() *BasicAuth {
	return NewBasicAuth(&config.AuthConfig{
		AdminUsername:   "admin",
		AdminPassword:   "admin-pass",
		MedicalUsername: "medical",
		MedicalPassword: "medical-pass",
		DentalUsername:  "dental",
		DentalPassword:  "dental-pass",
	})
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func do(handler http.HandlerFunc, username, password string, withCreds bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if withCreds {
		req.SetBasicAuth(username, password)
	}
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestRequireUser_AcceptsAnyConfiguredPair(t *testing.T) {
	handler := testAuth().RequireUser(okHandler)

	assert.Equal(t, http.StatusOK, do(handler, "admin", "admin-pass", true).Code)
	assert.Equal(t, http.StatusOK, do(handler, "medical", "medical-pass", true).Code)
	assert.Equal(t, http.StatusOK, do(handler, "dental", "dental-pass", true).Code)
}

func TestRequireUser_RejectsBadCredentials(t *testing.T) {
	handler := testAuth().RequireUser(okHandler)

	for _, c := range [][2]string{
		{"admin", "wrong"},
		{"medical", "dental-pass"},
		{"nobody", "nothing"},
		{"", ""},
	} {
		w := do(handler, c[0], c[1], true)
		require.Equal(t, http.StatusUnauthorized, w.Code, "user %q", c[0])
		assert.Equal(t, `Basic realm="clinic-insight"`, w.Header().Get("WWW-Authenticate"))
	}
}

func TestRequireUser_MissingHeader(t *testing.T) {
	handler := testAuth().RequireUser(okHandler)

	w := do(handler, "", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
}

func TestRequireAdmin_OnlyAdminPasses(t *testing.T) {
	handler := testAuth().RequireAdmin(okHandler)

	assert.Equal(t, http.StatusOK, do(handler, "admin", "admin-pass", true).Code)
	assert.Equal(t, http.StatusUnauthorized, do(handler, "medical", "medical-pass", true).Code)
	assert.Equal(t, http.StatusUnauthorized, do(handler, "dental", "dental-pass", true).Code)
}

func TestUnconfiguredPairsAreSkipped(t *testing.T) {
	auth := NewBasicAuth(&config.AuthConfig{AdminUsername: "admin", AdminPassword: "pw"})
	handler := auth.RequireUser(okHandler)

	// An empty-username department pair must never match empty credentials.
	assert.Equal(t, http.StatusUnauthorized, do(handler, "", "", true).Code)
	assert.Equal(t, http.StatusOK, do(handler, "admin", "pw", true).Code)
}
