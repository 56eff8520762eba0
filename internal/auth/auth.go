// Package auth verifies Supabase-issued access tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when no bearer token is presented.
	ErrMissingToken = errors.New("auth: missing bearer token")
	// ErrEmptyToken is returned when the bearer scheme carries no token.
	ErrEmptyToken = errors.New("auth: empty bearer token")
	// ErrTokenExpired is returned for tokens past their exp claim.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrInvalidToken is returned for any other verification failure.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrMissingSubject is returned for valid tokens without a sub claim.
	ErrMissingSubject = errors.New("auth: token has no subject")
	// ErrNotConfigured is returned when no verifier is available.
	ErrNotConfigured = errors.New("auth: SUPABASE_URL not configured")
)

// Algorithms accepted for Supabase asymmetric signing keys.
var defaultMethods = []string{"ES256", "RS256", "EdDSA"}

// Verifier checks access tokens and returns the authenticated user ID.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// JWTVerifier verifies tokens with a jwt.Keyfunc.
type JWTVerifier struct {
	keyfunc  jwt.Keyfunc
	audience string
	methods  []string
	leeway   time.Duration
}

// Option configures a JWTVerifier.
type Option func(*JWTVerifier)

// WithMethods restricts accepted signing algorithms.
func WithMethods(methods ...string) Option {
	return func(v *JWTVerifier) {
		v.methods = methods
	}
}

// WithLeeway allows clock skew when checking time-based claims.
func WithLeeway(d time.Duration) Option {
	return func(v *JWTVerifier) {
		v.leeway = d
	}
}

// NewJWTVerifier creates a verifier that resolves signing keys with kf and
// requires the given audience. An empty audience disables the check.
func NewJWTVerifier(kf jwt.Keyfunc, audience string, opts ...Option) *JWTVerifier {
	v := &JWTVerifier{
		keyfunc:  kf,
		audience: audience,
		methods:  defaultMethods,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// NewJWKSVerifier creates a verifier backed by the JWKS published at jwksURL.
// The key set is refreshed in the background until ctx is cancelled.
func NewJWKSVerifier(ctx context.Context, jwksURL, audience string, opts ...Option) (*JWTVerifier, error) {
	if jwksURL == "" {
		return nil, ErrNotConfigured
	}
	k, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("auth: load JWKS: %w", err)
	}
	return NewJWTVerifier(k.Keyfunc, audience, opts...), nil
}

// Verify parses and validates token and returns its subject.
func (v *JWTVerifier) Verify(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	var claims jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(token, &claims, v.keyfunc, parserOpts...); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrMissingSubject
	}
	return claims.Subject, nil
}

// BearerToken extracts the token from an Authorization header value.
// Headers without the "Bearer " prefix count as missing.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" {
		return "", ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

type ctxKey struct{}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns the authenticated user ID stored in ctx.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
