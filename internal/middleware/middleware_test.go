package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func whoAmI(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserIDFromContext(r.Context())
	_, _ = w.Write([]byte(uid))
}

func TestAuthRoundTrip(t *testing.T) {
	a := NewAuth("test-secret")
	tok, err := a.SignToken("U1", "u1@example.com", time.Hour)
	require.NoError(t, err)

	h := a.WithAuth(RequireAuth(http.HandlerFunc(whoAmI)))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "U1", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"retryable":false`)
}

func TestAuthRejectsForeignAndExpiredTokens(t *testing.T) {
	other, err := NewAuth("other-secret").SignToken("U1", "", time.Hour)
	require.NoError(t, err)

	a := NewAuth("test-secret")
	a.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := a.SignToken("U1", "", time.Hour)
	require.NoError(t, err)
	a.now = time.Now

	h := a.WithAuth(RequireAuth(http.HandlerFunc(whoAmI)))
	for _, tok := range []string{other, expired, "garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestLocaleMiddleware(t *testing.T) {
	var got string
	h := LocaleMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/?lang=sw", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "sw", got)
	assert.Equal(t, "sw", rec.Header().Get("Content-Language"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "fr-SN,fr;q=0.9")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "fr", got)
}

func TestNoStoreOnlyForAPI(t *testing.T) {
	h := NoStore(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/insights", nil))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/app.js", nil))
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/surveys", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, called)
}

func TestAccessLogReportsPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/surveys/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	var route string
	var status int
	h := AccessLog(zap.NewNop(), func(method, r string, s int, d time.Duration) {
		route, status = r, s
	}, mux)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/surveys/abc", nil))
	assert.Equal(t, "GET /api/surveys/{id}", route)
	assert.Equal(t, http.StatusTeapot, status)
}
