package vaultd

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
	"github.com/hustletexas/cyber-arcade-verse-rally/observability/logging"
)

type contextKey string

const contextKeyPrincipal contextKey = "vaultd.principal"

// PrincipalFrom returns the authenticated caller stored on ctx.
func PrincipalFrom(ctx context.Context) ([20]byte, bool) {
	p, ok := ctx.Value(contextKeyPrincipal).([20]byte)
	return p, ok
}

// WithPrincipal returns a copy of ctx carrying principal.
func WithPrincipal(ctx context.Context, principal [20]byte) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, principal)
}

// TokenAuthenticator resolves the calling principal from an HMAC-signed JWT.
// The subject claim carries the caller's arc address.
type TokenAuthenticator struct {
	secret    []byte
	issuer    string
	audience  string
	clockSkew time.Duration
	logger    *slog.Logger
}

// NewTokenAuthenticator constructs an authenticator from configuration.
func NewTokenAuthenticator(cfg AuthConfig, logger *slog.Logger) (*TokenAuthenticator, error) {
	secret := strings.TrimSpace(cfg.HMACSecret)
	if secret == "" {
		return nil, errors.New("auth secret not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	skew := cfg.ClockSkew.Duration
	if skew <= 0 {
		skew = 2 * time.Minute
	}
	return &TokenAuthenticator{
		secret:    []byte(secret),
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		clockSkew: skew,
		logger:    logger,
	}, nil
}

// Middleware rejects requests without a valid token and stores the
// principal on the request context.
func (a *TokenAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := parseBearerToken(r.Header.Get("Authorization"))
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		principal, err := a.Principal(raw)
		if err != nil {
			a.logger.InfoContext(r.Context(), "token rejected",
				slog.String("error", err.Error()),
				slog.String("authorization", logging.RedactBearer(r.Header.Get("Authorization"))))
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// Principal validates raw and returns its subject address.
func (a *TokenAuthenticator) Principal(raw string) ([20]byte, error) {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.clockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return [20]byte{}, err
	}
	if !token.Valid {
		return [20]byte{}, errors.New("token invalid")
	}
	principal, err := crypto.ParsePrincipal(claims.Subject)
	if err != nil {
		return [20]byte{}, fmt.Errorf("subject: %w", err)
	}
	return principal, nil
}

// IssueToken signs a token for principal. Operators use it to mint client
// credentials; tests use it to authenticate.
func IssueToken(secret []byte, issuer, audience string, principal [20]byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   crypto.FormatPrincipal(principal),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// BearerAuthenticator guards the admin API with a static token compared in
// constant time.
type BearerAuthenticator struct {
	token []byte
}

// NewBearerAuthenticator constructs an admin authenticator.
func NewBearerAuthenticator(token string) (*BearerAuthenticator, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("admin bearer token must be configured")
	}
	return &BearerAuthenticator{token: []byte(token)}, nil
}

// Middleware enforces authentication for admin handlers.
func (a *BearerAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil {
			http.Error(w, "authentication unavailable", http.StatusInternalServerError)
			return
		}
		presented := []byte(parseBearerToken(r.Header.Get("Authorization")))
		if len(presented) == 0 || subtle.ConstantTimeCompare(presented, a.token) != 1 {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parseBearerToken(header string) string {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return ""
	}
	parts := strings.SplitN(trimmed, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(strings.TrimSpace(parts[0]), "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
