package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medleads/clinic-insight/internal/adapters/cache"
)

func cacheTestHandler(hits *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"departments":["内科"]}`)); err != nil {
			return
		}
	})
}

func TestCacheMiddleware_ConfigRoutesAreCached(t *testing.T) {
	store := cache.NewMemoryAdapter()
	defer store.Stop()
	middleware := NewCacheMiddleware(store)

	var hits int
	handler := middleware.Middleware(cacheTestHandler(&hits))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/config/departments", nil))
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/config/departments", nil))
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	assert.Equal(t, 1, hits)
}

func TestCacheMiddleware_DistinctSectionsDistinctEntries(t *testing.T) {
	store := cache.NewMemoryAdapter()
	defer store.Stop()
	middleware := NewCacheMiddleware(store)

	var hits int
	handler := middleware.Middleware(cacheTestHandler(&hits))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/config/departments", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/config/purposes", nil))

	assert.Equal(t, 2, hits)
}

func TestCacheMiddleware_SkipsNonGetAndUnlistedRoutes(t *testing.T) {
	store := cache.NewMemoryAdapter()
	defer store.Stop()
	middleware := NewCacheMiddleware(store)

	var hits int
	handler := middleware.Middleware(cacheTestHandler(&hits))

	post := httptest.NewRecorder()
	handler.ServeHTTP(post, httptest.NewRequest(http.MethodPost, "/api/config/departments", nil))
	assert.Empty(t, post.Header().Get("X-Cache"))

	generate := httptest.NewRecorder()
	handler.ServeHTTP(generate, httptest.NewRequest(http.MethodGet, "/api/generate", nil))
	assert.Empty(t, generate.Header().Get("X-Cache"))

	health := httptest.NewRecorder()
	handler.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, health.Header().Get("X-Cache"))

	assert.Equal(t, 3, hits)
}

func TestCacheMiddleware_ErrorResponsesAreNotCached(t *testing.T) {
	store := cache.NewMemoryAdapter()
	defer store.Stop()
	middleware := NewCacheMiddleware(store)

	var hits int
	handler := middleware.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
		if _, err := w.Write([]byte(`{"detail":"boom"}`)); err != nil {
			return
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/config/departments", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/config/departments", nil))

	assert.Equal(t, "MISS", second.Header().Get("X-Cache"))
	assert.Equal(t, 2, hits)
}
