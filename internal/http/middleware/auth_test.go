package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func authRouter(a *Authenticator, optional bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	if optional {
		r.Use(a.OptionalAuth())
	} else {
		r.Use(a.Auth())
	}
	r.GET("/me", func(c *gin.Context) { c.String(http.StatusOK, UserID(c)) })
	return r
}

func TestAuth_BearerToken(t *testing.T) {
	a := NewAuthenticator(AuthOptions{Secret: testSecret, Audience: "authenticated"})
	r := authRouter(a, false)
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	cases := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"valid", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
			Subject: "user-1", Audience: jwt.ClaimStrings{"authenticated"}, ExpiresAt: future,
		}), http.StatusOK, "user-1"},
		{"missing", "", http.StatusUnauthorized, "authentication required"},
		{"wrong secret", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.RegisteredClaims{
			Subject: "user-1", Audience: jwt.ClaimStrings{"authenticated"}, ExpiresAt: future,
		}), http.StatusUnauthorized, "invalid or expired token"},
		{"expired", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
			Subject: "user-1", Audience: jwt.ClaimStrings{"authenticated"}, ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}), http.StatusUnauthorized, "invalid or expired token"},
		{"no exp", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
			Subject: "user-1", Audience: jwt.ClaimStrings{"authenticated"},
		}), http.StatusUnauthorized, "invalid or expired token"},
		{"wrong audience", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
			Subject: "user-1", Audience: jwt.ClaimStrings{"anon"}, ExpiresAt: future,
		}), http.StatusUnauthorized, "invalid or expired token"},
		{"no subject", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
			Audience: jwt.ClaimStrings{"authenticated"}, ExpiresAt: future,
		}), http.StatusUnauthorized, "invalid or expired token"},
		{"alg none", "Bearer " + signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.RegisteredClaims{
			Subject: "user-1", Audience: jwt.ClaimStrings{"authenticated"}, ExpiresAt: future,
		}), http.StatusUnauthorized, "invalid or expired token"},
		{"not bearer", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "authentication required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			// The dev header must be ignored once a secret is configured.
			req.Header.Set(HeaderUserID, "spoofed")
			r.ServeHTTP(w, req)
			if w.Code != tc.code || !strings.Contains(w.Body.String(), tc.body) {
				t.Fatalf("got %d %q; want %d containing %q", w.Code, w.Body.String(), tc.code, tc.body)
			}
		})
	}
}

func TestAuth_HeaderMode(t *testing.T) {
	a := NewAuthenticator(AuthOptions{})
	if !a.HeaderMode() {
		t.Fatalf("expected header mode without a secret")
	}
	r := authRouter(a, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderUserID, " dev-user ")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "dev-user" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), `"code":"unauthorized"`) {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
}

func TestOptionalAuth_LetsAnonymousThrough(t *testing.T) {
	r := authRouter(NewAuthenticator(AuthOptions{Secret: testSecret}), true)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}

	tok := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
		Subject: "user-2", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	if w.Body.String() != "user-2" {
		t.Fatalf("got %q", w.Body.String())
	}
}
