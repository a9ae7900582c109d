// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file authenticates requests. Production deployments verify HS256
// bearer tokens issued by the auth provider (Supabase signs its access tokens
// with the project JWT secret) and take the user id from the "sub" claim.
// Without a secret the X-User-ID header is trusted instead, which is only
// meant for local development and tests.
package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// HeaderUserID carries the user id in development mode.
const HeaderUserID = "X-User-ID"

// ctxKeyUserID is the Gin context key holding the authenticated user id.
const ctxKeyUserID = "userID"

// ErrNoCredentials is returned by Authenticator.Identify when the request
// carries neither a bearer token nor (in development mode) a user header.
var ErrNoCredentials = errors.New("no credentials")

// AuthOptions configures token verification.
type AuthOptions struct {
	// Secret is the HS256 signing key. Empty enables header mode.
	Secret string
	// Audience, when set, must appear in the token's aud claim.
	Audience string
	// Leeway tolerates small clock skew on exp/nbf.
	Leeway time.Duration
}

// Authenticator resolves the calling user from a request.
type Authenticator struct {
	opts   AuthOptions
	parser *jwt.Parser
}

// NewAuthenticator builds an Authenticator. Only HS256 tokens are accepted.
func NewAuthenticator(opts AuthOptions) *Authenticator {
	popts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(opts.Leeway),
	}
	if opts.Audience != "" {
		popts = append(popts, jwt.WithAudience(opts.Audience))
	}
	return &Authenticator{opts: opts, parser: jwt.NewParser(popts...)}
}

// HeaderMode reports whether identities come from X-User-ID.
func (a *Authenticator) HeaderMode() bool { return a.opts.Secret == "" }

// Identify returns the user id for the request.
func (a *Authenticator) Identify(r *http.Request) (string, error) {
	if a.HeaderMode() {
		if uid := strings.TrimSpace(r.Header.Get(HeaderUserID)); uid != "" {
			return uid, nil
		}
		return "", ErrNoCredentials
	}

	raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	raw = strings.TrimSpace(raw)
	if !found || raw == "" {
		return "", ErrNoCredentials
	}
	var claims jwt.RegisteredClaims
	_, err := a.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(a.opts.Secret), nil
	})
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// Auth rejects requests without a valid identity with 401 and stores the
// user id for handlers (see UserID).
func (a *Authenticator) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := a.Identify(c.Request)
		if err != nil {
			msg := "authentication required"
			if !errors.Is(err, ErrNoCredentials) {
				LoggerFrom(c).Debug().Err(err).Msg("token rejected")
				msg = "invalid or expired token"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "unauthorized",
				"message":    msg,
			})
			return
		}
		setUser(c, uid)
		c.Next()
	}
}

// OptionalAuth stores the user id when the request carries a valid identity
// and otherwise lets the request through anonymously.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid, err := a.Identify(c.Request); err == nil {
			setUser(c, uid)
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func setUser(c *gin.Context, uid string) {
	c.Set(ctxKeyUserID, uid)
	lg := LoggerFrom(c).With().Str("user_id", uid).Logger()
	attachLogger(c, &lg)
}
