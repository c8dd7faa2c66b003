package httpserver

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/argon2"

	"github.com/fairyhunter13/career-diagnosis/internal/config"
	"github.com/fairyhunter13/career-diagnosis/internal/domain"
)

// SessionCookieName is the admin session cookie.
const SessionCookieName = "admin_session"

const sessionIssuer = "career-diagnosis-admin"

// Argon2Params defines parameters for Argon2id password hashing
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// DefaultArgon2Params are used by HashPassword for new admin hashes.
var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024, // 64 MB
	Iterations:  3,
	Parallelism: 2,
	SaltLen:     16,
	KeyLen:      32,
}

// HashPassword creates an Argon2id hash in the form
// argon2id$iterations$memory$parallelism$salt$hash (raw std base64).
func HashPassword(password string, params Argon2Params) (string, error) {
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLen)
	return fmt.Sprintf("argon2id$%d$%d$%d$%s$%s",
		params.Iterations,
		params.Memory,
		params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword verifies a password against its Argon2id hash.
func VerifyPassword(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "argon2id" {
		return false
	}
	iters, err1 := parseUint32(parts[1])
	mem, err2 := parseUint32(parts[2])
	par, err3 := parseUint32(parts[3])
	if err1 != nil || err2 != nil || err3 != nil || par == 0 || par > math.MaxUint8 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false
	}
	actual := argon2.IDKey([]byte(password), salt, iters, mem, uint8(par), uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1
}

func parseUint32(s string) (uint32, error) {
	x, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return uint32(x), nil
}

// SessionManager issues and verifies admin sessions as HS256 JWTs carried in
// an HttpOnly cookie.
type SessionManager struct {
	cfg    config.Config
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager creates a new session manager
func NewSessionManager(cfg config.Config) *SessionManager {
	ttl := cfg.AdminSessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionManager{cfg: cfg, secret: []byte(cfg.AdminSessionSecret), ttl: ttl, now: time.Now}
}

// CheckCredentials compares the login against the configured admin. The
// argon2 hash wins over the plain password when both are set.
func (sm *SessionManager) CheckCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(sm.cfg.AdminUsername)) == 1
	var passOK bool
	switch {
	case sm.cfg.AdminPasswordHash != "":
		passOK = VerifyPassword(password, sm.cfg.AdminPasswordHash)
	case sm.cfg.AdminPassword != "":
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(sm.cfg.AdminPassword)) == 1
	}
	return userOK && passOK && sm.cfg.AdminUsername != ""
}

// CreateSession signs a session token for username.
func (sm *SessionManager) CreateSession(username string) (string, time.Time, error) {
	now := sm.now().UTC()
	exp := now.Add(sm.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("op=session.create: %w", err)
	}
	return signed, exp, nil
}

// ValidateSession verifies signature, issuer and expiry of a session token.
func (sm *SessionManager) ValidateSession(token string) (*jwt.RegisteredClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("op=session.validate: %w: empty session", domain.ErrUnauthorized)
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return sm.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(sm.now),
	)
	if err != nil {
		return nil, fmt.Errorf("op=session.validate: %w: %w", domain.ErrUnauthorized, err)
	}
	return claims, nil
}

// SetSessionCookie sets the session cookie on the response.
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/api/admin",
		Expires:  expires,
		MaxAge:   int(sm.ttl.Seconds()),
		HttpOnly: true,
		Secure:   !sm.cfg.IsDev() && !sm.cfg.IsTest(),
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie clears the session cookie.
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/api/admin",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !sm.cfg.IsDev() && !sm.cfg.IsTest(),
		SameSite: http.SameSiteStrictMode,
	})
}

type sessionKey struct{}

// AuthRequired rejects requests without a valid admin session with 401.
func (sm *SessionManager) AuthRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil {
			writeError(w, r, fmt.Errorf("op=http.admin_guard: %w: no session", domain.ErrUnauthorized), nil)
			return
		}
		claims, err := sm.ValidateSession(cookie.Value)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				sm.ClearSessionCookie(w)
			}
			writeError(w, r, err, nil)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminFrom returns the authenticated admin name, if any.
func AdminFrom(ctx context.Context) string {
	if c, ok := ctx.Value(sessionKey{}).(*jwt.RegisteredClaims); ok {
		return c.Subject
	}
	return ""
}
