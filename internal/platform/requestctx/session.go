// Package requestctx carries request-scoped identity through context.Context.
package requestctx

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrWalletSessionAlreadySet is returned when a request already carries a
// wallet session. A session is written once, at the request boundary.
var ErrWalletSessionAlreadySet = errors.New("wallet session already set for request")

// walletSessionContextKey is the context key for the tenant wallet session.
type walletSessionContextKey struct{}

// WalletSession is the tenant identity derived for one request.
type WalletSession struct {
	WalletID uuid.UUID
	// Token is the wallet session token issued by the wallet agent. It must
	// never be logged.
	Token string
}

// String redacts the session token.
func (s WalletSession) String() string {
	return fmt.Sprintf("WalletSession{WalletID:%s Token:[redacted]}", s.WalletID)
}

// GoString redacts the session token for %#v.
func (s WalletSession) GoString() string {
	return s.String()
}

// Valid reports whether both halves of the session are present.
func (s WalletSession) Valid() bool {
	return s.WalletID != uuid.Nil && s.Token != ""
}

// WithWalletSession stores the wallet session in context. It fails when the
// context already carries one or when the session is incomplete.
func WithWalletSession(ctx context.Context, session WalletSession) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !session.Valid() {
		return ctx, errors.New("wallet session requires wallet id and token")
	}
	if _, ok := WalletSessionFromContext(ctx); ok {
		return ctx, ErrWalletSessionAlreadySet
	}
	return context.WithValue(ctx, walletSessionContextKey{}, session), nil
}

// WalletSessionFromContext returns the wallet session stored in context.
func WalletSessionFromContext(ctx context.Context) (WalletSession, bool) {
	if ctx == nil {
		return WalletSession{}, false
	}
	value, ok := ctx.Value(walletSessionContextKey{}).(WalletSession)
	return value, ok
}
