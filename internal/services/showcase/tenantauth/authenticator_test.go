package tenantauth

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/louisbranch/showcase/internal/platform/errors"
	"github.com/louisbranch/showcase/internal/platform/requestctx"
	"github.com/louisbranch/showcase/internal/services/showcase/wallet"
)

type fakeWallet struct {
	sessions    map[uuid.UUID]string
	secrets     map[uuid.UUID]string
	err         error
	hadDeadline bool
}

func (f *fakeWallet) MintSession(ctx context.Context, walletID uuid.UUID, walletSecret string) (string, error) {
	_, f.hadDeadline = ctx.Deadline()
	if f.err != nil {
		return "", f.err
	}
	if f.secrets[walletID] != walletSecret {
		return "", errors.New("wallet key is invalid")
	}
	return f.sessions[walletID], nil
}

func (f *fakeWallet) CreateInvitation(context.Context, string, string) (wallet.Invitation, error) {
	return wallet.Invitation{}, errors.New("not implemented")
}

func (f *fakeWallet) AcceptInvitation(context.Context, string, json.RawMessage, string) (wallet.Connection, error) {
	return wallet.Connection{}, errors.New("not implemented")
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{
		sessions: map[uuid.UUID]string{testWallet: "wallet-session-token"},
		secrets:  map[uuid.UUID]string{testWallet: "wallet-key"},
	}
}

func TestAuthenticatorIssuesVerifiableCredential(t *testing.T) {
	remote := newFakeWallet()
	auth, err := NewAuthenticator(remote, testConfig())
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}

	ctx, cred, err := auth.Authenticate(context.Background(), testWallet.String(), "wallet-key")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if !remote.hadDeadline {
		t.Fatal("expected mint session call to carry a deadline")
	}
	if cred.TokenType != "bearer" || cred.AccessToken == "" {
		t.Fatalf("credential = %+v", cred)
	}
	if !cred.ExpiresAt.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("expires at = %v", cred.ExpiresAt)
	}
	if cred.ExpiresIn != time.Hour {
		t.Fatalf("expires in = %v, want the configured ttl", cred.ExpiresIn)
	}

	session, ok := requestctx.WalletSessionFromContext(ctx)
	if !ok || session.WalletID != testWallet || session.Token != "wallet-session-token" {
		t.Fatalf("published session = %+v (ok=%v)", session, ok)
	}

	derived, err := newTestBridge(t).Authenticate(context.Background(), "Bearer "+cred.AccessToken)
	if err != nil {
		t.Fatalf("bridge authenticate: %v", err)
	}
	roundTrip, _ := requestctx.WalletSessionFromContext(derived)
	if roundTrip.WalletID != testWallet || roundTrip.Token != "wallet-session-token" {
		t.Fatalf("round trip session = %+v", roundTrip)
	}
}

func TestAuthenticatorFailuresAreIndistinguishable(t *testing.T) {
	tests := []struct {
		name     string
		walletID string
		secret   string
		remote   error
	}{
		{name: "wrong secret", walletID: testWallet.String(), secret: "nope"},
		{name: "unknown wallet", walletID: uuid.NewString(), secret: "wallet-key"},
		{name: "malformed wallet id", walletID: "faber", secret: "wallet-key"},
		{name: "empty secret", walletID: testWallet.String(), secret: ""},
		{name: "transport error", walletID: testWallet.String(), secret: "wallet-key", remote: errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := newFakeWallet()
			remote.err = tt.remote
			auth, err := NewAuthenticator(remote, testConfig())
			if err != nil {
				t.Fatalf("new authenticator: %v", err)
			}
			ctx, cred, err := auth.Authenticate(context.Background(), tt.walletID, tt.secret)
			if !apperrors.HasCode(err, apperrors.CodeUnauthenticated) {
				t.Fatalf("code = %s, want UNAUTHENTICATED", apperrors.CodeOf(err))
			}
			if err.Error() != invalidCredentialsMessage {
				t.Fatalf("message = %q", err.Error())
			}
			if cred.AccessToken != "" {
				t.Fatal("expected no credential")
			}
			if _, ok := requestctx.WalletSessionFromContext(ctx); ok {
				t.Fatal("expected no session")
			}
		})
	}
}

func TestNewAuthenticatorRequiresCapability(t *testing.T) {
	if _, err := NewAuthenticator(nil, testConfig()); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SHOWCASE_JWT_SECRET_KEY", "secret")
	t.Setenv("SHOWCASE_JWT_ALGORITHM", "hs512")
	t.Setenv("SHOWCASE_JWT_TTL", "45m")

	cfg, err := LoadConfigFromEnv(nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if string(cfg.Secret) != "secret" || cfg.Algorithm != "HS512" || cfg.TTL != 45*time.Minute {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.Now == nil {
		t.Fatal("expected default clock")
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("SHOWCASE_JWT_SECRET_KEY", "secret")
	unsetEnv(t, "SHOWCASE_JWT_ALGORITHM")
	unsetEnv(t, "SHOWCASE_JWT_TTL")

	cfg, err := LoadConfigFromEnv(nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Algorithm != "HS256" || cfg.TTL != 300*time.Minute {
		t.Fatalf("config = %+v", cfg)
	}
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unset %s: %v", key, err)
	}
}

func TestLoadConfigFromEnvRequiresSecret(t *testing.T) {
	t.Setenv("SHOWCASE_JWT_SECRET_KEY", "")
	if _, err := LoadConfigFromEnv(nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadConfigFromEnvRejectsUnknownAlgorithm(t *testing.T) {
	t.Setenv("SHOWCASE_JWT_SECRET_KEY", "secret")
	t.Setenv("SHOWCASE_JWT_ALGORITHM", "RS256")
	if _, err := LoadConfigFromEnv(nil); err == nil {
		t.Fatal("expected error")
	}
}
