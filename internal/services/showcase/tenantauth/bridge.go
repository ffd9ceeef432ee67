package tenantauth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/louisbranch/showcase/internal/platform/errors"
	"github.com/louisbranch/showcase/internal/platform/requestctx"
)

const bearerScheme = "Bearer"

// sessionClaims is the claim set of a showcase bearer token.
type sessionClaims struct {
	jwt.RegisteredClaims
	// Key is the wallet session token. Subject carries the wallet id.
	Key string `json:"key"`
}

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Bridge verifies bearer tokens and publishes the wallet session they carry.
type Bridge struct {
	cfg Config
	// OnError renders failures from Middleware and RequireWalletSession.
	// Nil writes a plain 401.
	OnError ErrorWriter
}

// NewBridge creates a bridge verifying tokens signed per cfg.
func NewBridge(cfg Config) (*Bridge, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	return &Bridge{cfg: cfg}, nil
}

// WithErrorWriter returns a copy of b rendering failures with fn. b itself is
// left unchanged.
func (b *Bridge) WithErrorWriter(fn ErrorWriter) *Bridge {
	clone := *b
	clone.OnError = fn
	return &clone
}

// Authenticate derives the wallet session from an Authorization header
// value. A missing header or a non-bearer scheme yields ctx unchanged and no
// error. Any bearer token that fails verification yields an
// UNAUTHENTICATED error and no session.
func (b *Bridge) Authenticate(ctx context.Context, authHeader string) (context.Context, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return ctx, nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ctx, unauthenticated("bearer token is empty", nil)
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return b.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{b.cfg.Algorithm}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(b.cfg.Now),
	)
	if err != nil {
		return ctx, mapJWTError(err)
	}

	walletID, err := uuid.Parse(strings.TrimSpace(claims.Subject))
	if err != nil || walletID == uuid.Nil {
		return ctx, unauthenticated("bearer token subject is not a wallet id", err)
	}
	if strings.TrimSpace(claims.Key) == "" {
		return ctx, unauthenticated("bearer token has no wallet session", nil)
	}

	derived, err := requestctx.WithWalletSession(ctx, requestctx.WalletSession{
		WalletID: walletID,
		Token:    claims.Key,
	})
	if err != nil {
		return ctx, unauthenticated("wallet session could not be attached", err)
	}
	return derived, nil
}

// Middleware authenticates every request once before next runs.
func (b *Bridge) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := b.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			b.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireWalletSession rejects requests that reached it without a session.
func (b *Bridge) RequireWalletSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requestctx.WalletSessionFromContext(r.Context()); !ok {
			b.fail(w, r, unauthenticated("wallet session is required", nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Bridge) fail(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("WWW-Authenticate", bearerScheme)
	if b.OnError != nil {
		b.OnError(w, r, err)
		return
	}
	http.Error(w, "could not validate credentials", http.StatusUnauthorized)
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return unauthenticated("bearer token is expired", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return unauthenticated("bearer token signature is invalid", err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return unauthenticated("bearer token alg is invalid", err)
	default:
		return unauthenticated("bearer token is invalid", err)
	}
}

func unauthenticated(message string, cause error) error {
	return apperrors.Wrap(apperrors.CodeUnauthenticated, message, cause)
}
