package tenantauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/louisbranch/showcase/internal/platform/errors"
	"github.com/louisbranch/showcase/internal/platform/requestctx"
)

var (
	testSecret = []byte("0123456789abcdef0123456789abcdef")
	testNow    = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	testWallet = uuid.MustParse("3f2f61a5-0c1f-4c36-8c1e-7d38f9a0e111")
)

func testConfig() Config {
	return Config{
		Secret:    testSecret,
		Algorithm: "HS256",
		TTL:       time.Hour,
		Now:       func() time.Time { return testNow },
	}
}

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	bridge, err := NewBridge(testConfig())
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	return bridge
}

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func validClaims() sessionClaims {
	return sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testWallet.String(),
			IssuedAt:  jwt.NewNumericDate(testNow.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
		Key: "wallet-session-token",
	}
}

func TestAuthenticateValidToken(t *testing.T) {
	bridge := newTestBridge(t)
	token := signToken(t, jwt.SigningMethodHS256, testSecret, validClaims())

	ctx, err := bridge.Authenticate(context.Background(), "Bearer "+token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	session, ok := requestctx.WalletSessionFromContext(ctx)
	if !ok {
		t.Fatal("expected wallet session")
	}
	if session.WalletID != testWallet || session.Token != "wallet-session-token" {
		t.Fatalf("session = %+v", session)
	}
}

func TestAuthenticateSchemeIsCaseInsensitive(t *testing.T) {
	bridge := newTestBridge(t)
	token := signToken(t, jwt.SigningMethodHS256, testSecret, validClaims())
	ctx, err := bridge.Authenticate(context.Background(), "bearer "+token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, ok := requestctx.WalletSessionFromContext(ctx); !ok {
		t.Fatal("expected wallet session")
	}
}

func TestAuthenticateWithoutBearerIsAnonymous(t *testing.T) {
	bridge := newTestBridge(t)
	for _, header := range []string{"", "   ", "Basic dXNlcjpwYXNz", "Token abc", "Bearer"} {
		ctx, err := bridge.Authenticate(context.Background(), header)
		if err != nil {
			t.Fatalf("header %q: unexpected error %v", header, err)
		}
		if _, ok := requestctx.WalletSessionFromContext(ctx); ok {
			t.Fatalf("header %q: unexpected session", header)
		}
	}
}

func TestAuthenticateFailsClosed(t *testing.T) {
	valid := validClaims()

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(testNow.Add(-time.Second))

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	badSubject := validClaims()
	badSubject.Subject = "not-a-uuid"

	noKey := validClaims()
	noKey.Key = "  "

	validToken := signToken(t, jwt.SigningMethodHS256, testSecret, valid)
	parts := strings.Split(validToken, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	tests := []struct {
		name  string
		token string
	}{
		{name: "tampered signature", token: tampered},
		{name: "wrong secret", token: signToken(t, jwt.SigningMethodHS256, []byte("another-secret"), valid)},
		{name: "alg none", token: signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid)},
		{name: "alg mismatch", token: signToken(t, jwt.SigningMethodHS512, testSecret, valid)},
		{name: "expired", token: signToken(t, jwt.SigningMethodHS256, testSecret, expired)},
		{name: "missing exp", token: signToken(t, jwt.SigningMethodHS256, testSecret, noExpiry)},
		{name: "subject not uuid", token: signToken(t, jwt.SigningMethodHS256, testSecret, badSubject)},
		{name: "missing key", token: signToken(t, jwt.SigningMethodHS256, testSecret, noKey)},
		{name: "garbage", token: "not.a.jwt"},
	}

	bridge := newTestBridge(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, err := bridge.Authenticate(context.Background(), "Bearer "+tt.token)
			if err == nil {
				t.Fatal("expected error")
			}
			if !apperrors.HasCode(err, apperrors.CodeUnauthenticated) {
				t.Fatalf("code = %s, want UNAUTHENTICATED", apperrors.CodeOf(err))
			}
			if _, ok := requestctx.WalletSessionFromContext(ctx); ok {
				t.Fatal("expected no wallet session on failure")
			}
		})
	}
}

func TestAuthenticateRejectsSecondSession(t *testing.T) {
	bridge := newTestBridge(t)
	token := signToken(t, jwt.SigningMethodHS256, testSecret, validClaims())
	ctx, err := requestctx.WithWalletSession(context.Background(), requestctx.WalletSession{WalletID: uuid.New(), Token: "other"})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if _, err := bridge.Authenticate(ctx, "Bearer "+token); !apperrors.HasCode(err, apperrors.CodeUnauthenticated) {
		t.Fatalf("err = %v, want UNAUTHENTICATED", err)
	}
}

func TestNewBridgeRejectsUnsupportedAlgorithm(t *testing.T) {
	cfg := testConfig()
	cfg.Algorithm = "none"
	if _, err := NewBridge(cfg); err == nil {
		t.Fatal("expected error for alg none")
	}
	cfg.Algorithm = "RS256"
	if _, err := NewBridge(cfg); err == nil {
		t.Fatal("expected error for RS256")
	}
	cfg = testConfig()
	cfg.Secret = nil
	if _, err := NewBridge(cfg); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestMiddleware(t *testing.T) {
	bridge := newTestBridge(t)
	var seen requestctx.WalletSession
	handler := bridge.Middleware(bridge.RequireWalletSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = requestctx.WalletSessionFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tenants/x/out-of-band-msgs", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, testSecret, validClaims()))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rec.Code)
		}
		if seen.WalletID != testWallet {
			t.Fatalf("wallet id = %s", seen.WalletID)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
		if rec.Header().Get("WWW-Authenticate") != "Bearer" {
			t.Fatalf("WWW-Authenticate = %q", rec.Header().Get("WWW-Authenticate"))
		}
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestMiddlewareCustomErrorWriter(t *testing.T) {
	bridge := newTestBridge(t)
	var got error
	bridge.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
		got = err
		w.WriteHeader(http.StatusTeapot)
	}
	handler := bridge.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
	if !apperrors.HasCode(got, apperrors.CodeUnauthenticated) {
		t.Fatalf("error = %v", got)
	}
}

func TestMiddlewareSessionsDoNotLeakAcrossRequests(t *testing.T) {
	bridge := newTestBridge(t)
	handler := bridge.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requestctx.WalletSessionFromContext(r.Context()); ok {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	authed := httptest.NewRequest(http.MethodGet, "/", nil)
	authed.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, testSecret, validClaims()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authed)
	if rec.Code != http.StatusOK {
		t.Fatalf("authed status = %d", rec.Code)
	}

	anonymous := httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, anonymous)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("anonymous status = %d, want no session", rec.Code)
	}
}

func TestWithErrorWriterCopiesBridge(t *testing.T) {
	bridge := newTestBridge(t)
	custom := bridge.WithErrorWriter(func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(http.StatusTeapot)
	})
	if bridge.OnError != nil {
		t.Fatal("original bridge was modified")
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	})
	for _, tc := range []struct {
		bridge *Bridge
		want   int
	}{
		{bridge: custom, want: http.StatusTeapot},
		{bridge: bridge, want: http.StatusUnauthorized},
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		tc.bridge.Middleware(next).ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("status = %d, want %d", rec.Code, tc.want)
		}
	}
}
