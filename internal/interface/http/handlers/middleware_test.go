package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func adminAuthFixture(t *testing.T, key string) *AdminKeyAuth {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAdminKeyAuth("X-API-Key", string(hash))
}

func TestAdminKeyAuth_ValidKey(t *testing.T) {
	auth := adminAuthFixture(t, "s3cret")
	handler := auth.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/reconcile/1", nil)
	req.Header.Set("X-API-Key", "s3cret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminKeyAuth_BearerToken(t *testing.T) {
	auth := adminAuthFixture(t, "s3cret")
	handler := auth.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/reconcile/1", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminKeyAuth_RejectsWrongKey(t *testing.T) {
	auth := adminAuthFixture(t, "s3cret")
	handler := auth.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/reconcile/1", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminKeyAuth_RejectsMissingKey(t *testing.T) {
	auth := adminAuthFixture(t, "s3cret")
	handler := auth.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/reconcile/1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminKeyAuth_DisabledWithoutHash(t *testing.T) {
	auth := NewAdminKeyAuth("X-API-Key", "")
	assert.False(t, auth.Enabled())

	handler := auth.Middleware(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/admin/reconcile/1", nil)
	req.Header.Set("X-API-Key", "anything")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	handler := RequestSizeLimitMiddleware(16)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("tiny"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64)))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestChain_AppliesInOrder(t *testing.T) {
	var order []string
	mw := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := ChainHandler(okHandler(), mw("outer"), mw("inner"))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, []string{"outer", "inner"}, order)
}
