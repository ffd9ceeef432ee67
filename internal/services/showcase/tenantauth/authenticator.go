package tenantauth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/louisbranch/showcase/internal/platform/errors"
	"github.com/louisbranch/showcase/internal/platform/requestctx"
	"github.com/louisbranch/showcase/internal/platform/timeouts"
	"github.com/louisbranch/showcase/internal/services/showcase/wallet"
)

// TokenType is the OAuth2 token type of issued credentials.
const TokenType = "bearer"

// invalidCredentialsMessage is shared by every authentication failure so
// callers cannot tell an unknown wallet from a wrong secret.
const invalidCredentialsMessage = "invalid wallet credentials"

// Credential is a signed bearer token for one wallet session.
type Credential struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	// ExpiresIn is the lifetime measured on the authenticator's clock.
	ExpiresIn time.Duration
}

// Authenticator exchanges wallet credentials for bearer credentials.
type Authenticator struct {
	wallet wallet.Capability
	cfg    Config
}

// NewAuthenticator creates an authenticator minting sessions through
// capability and signing tokens per cfg.
func NewAuthenticator(capability wallet.Capability, cfg Config) (*Authenticator, error) {
	if capability == nil {
		return nil, errors.New("wallet capability is required")
	}
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	return &Authenticator{wallet: capability, cfg: cfg}, nil
}

// Authenticate mints a wallet session for walletID, signs a bearer
// credential embedding it, and returns a context carrying the session. Every
// failure is reported as the same UNAUTHENTICATED error.
func (a *Authenticator) Authenticate(ctx context.Context, walletID string, walletSecret string) (context.Context, Credential, error) {
	id, err := uuid.Parse(strings.TrimSpace(walletID))
	if err != nil || id == uuid.Nil || walletSecret == "" {
		return ctx, Credential{}, invalidCredentials(err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeouts.WalletRequest)
	sessionToken, err := a.wallet.MintSession(callCtx, id, walletSecret)
	cancel()
	if err != nil {
		return ctx, Credential{}, invalidCredentials(err)
	}

	now := a.cfg.Now().UTC()
	expiresAt := now.Add(a.cfg.TTL)
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Key: sessionToken,
	}
	signed, err := jwt.NewWithClaims(jwt.GetSigningMethod(a.cfg.Algorithm), claims).SignedString(a.cfg.Secret)
	if err != nil {
		return ctx, Credential{}, invalidCredentials(err)
	}

	derived, err := requestctx.WithWalletSession(ctx, requestctx.WalletSession{WalletID: id, Token: sessionToken})
	if err != nil {
		return ctx, Credential{}, invalidCredentials(err)
	}
	return derived, Credential{
		AccessToken: signed,
		TokenType:   TokenType,
		ExpiresAt:   expiresAt,
		ExpiresIn:   a.cfg.TTL,
	}, nil
}

func invalidCredentials(cause error) error {
	return apperrors.Wrap(apperrors.CodeUnauthenticated, invalidCredentialsMessage, cause)
}
