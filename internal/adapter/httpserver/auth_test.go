package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/career-diagnosis/internal/domain"
)

var fastArgon = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}

func TestHashAndVerifyPassword(t *testing.T) {
	h, err := HashPassword("correct horse", fastArgon)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h, "argon2id$1$1024$1$"))
	assert.True(t, VerifyPassword("correct horse", h))
	assert.False(t, VerifyPassword("battery staple", h))

	for _, bad := range []string{"", "bcrypt$x", "argon2id$a$1024$1$c2FsdA$aGFzaA", "argon2id$1$1024$0$c2FsdA$aGFzaA", "argon2id$1$1024$1$!!$aGFzaA"} {
		assert.False(t, VerifyPassword("x", bad), bad)
	}
}

func TestCheckCredentials(t *testing.T) {
	cfg := testConfig()
	sm := NewSessionManager(cfg)
	assert.True(t, sm.CheckCredentials("admin", "s3cret"))
	assert.False(t, sm.CheckCredentials("admin", "wrong"))
	assert.False(t, sm.CheckCredentials("root", "s3cret"))

	h, err := HashPassword("hashed-pass", fastArgon)
	require.NoError(t, err)
	cfg.AdminPasswordHash = h
	sm = NewSessionManager(cfg)
	assert.True(t, sm.CheckCredentials("admin", "hashed-pass"))
	assert.False(t, sm.CheckCredentials("admin", "s3cret"), "hash wins over the plain password")
}

func TestSession_RoundTripExpiryAndForgery(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	sm := NewSessionManager(testConfig())
	sm.now = func() time.Time { return now }

	tok, exp, err := sm.CreateSession("admin")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), exp)

	claims, err := sm.ValidateSession(tok)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)

	other := testConfig()
	other.AdminSessionSecret = "another-secret"
	_, err = NewSessionManager(other).ValidateSession(tok)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "admin", Issuer: sessionIssuer}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = sm.ValidateSession(none)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	now = now.Add(2 * time.Hour)
	_, err = sm.ValidateSession(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthRequired(t *testing.T) {
	sm := NewSessionManager(testConfig())
	var who string
	guarded := sm.AuthRequired(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		who = AdminFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	call := func(cookie string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/diagnoses", nil)
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: cookie})
		}
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, call("").Code)
	rec := call("not.a.jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeEnvelope(t, rec).Code)

	tok, _, err := sm.CreateSession("admin")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, call(tok).Code)
	assert.Equal(t, "admin", who)
}

func TestSessionCookieAttributes(t *testing.T) {
	sm := NewSessionManager(testConfig())
	rec := httptest.NewRecorder()
	sm.SetSessionCookie(rec, "tok", time.Now().Add(time.Hour))
	c := rec.Result().Cookies()
	require.Len(t, c, 1)
	assert.Equal(t, SessionCookieName, c[0].Name)
	assert.True(t, c[0].HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, c[0].SameSite)
	assert.False(t, c[0].Secure, "test env")

	rec = httptest.NewRecorder()
	sm.ClearSessionCookie(rec)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}
