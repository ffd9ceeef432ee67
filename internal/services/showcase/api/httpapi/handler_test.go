package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/louisbranch/showcase/internal/services/showcase/invitation"
	showcasesqlite "github.com/louisbranch/showcase/internal/services/showcase/storage/sqlite"
	"github.com/louisbranch/showcase/internal/services/showcase/tenant"
	"github.com/louisbranch/showcase/internal/services/showcase/tenantauth"
	"github.com/louisbranch/showcase/internal/services/showcase/wallet"
)

// fakeAgent stands in for the wallet agent. Each wallet has one secret and
// issues the session token "<wallet id>-session".
type fakeAgent struct {
	mu        sync.Mutex
	secrets   map[uuid.UUID]string
	failNext  bool
	connCount int
}

func (a *fakeAgent) MintSession(_ context.Context, walletID uuid.UUID, walletSecret string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.secrets[walletID] != walletSecret {
		return "", errors.New("unauthorized")
	}
	return walletID.String() + "-session", nil
}

func (a *fakeAgent) CreateInvitation(_ context.Context, sessionToken string, alias string) (wallet.Invitation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failNext {
		a.failNext = false
		return wallet.Invitation{}, errors.New("agent unavailable")
	}
	return wallet.Invitation{
		ConnectionID:  "conn-" + sessionToken[:8],
		InvitationURL: "http://agent/invite",
		Invitation:    json.RawMessage(`{"label":"` + alias + `"}`),
	}, nil
}

func (a *fakeAgent) AcceptInvitation(_ context.Context, _ string, _ json.RawMessage, _ string) (wallet.Connection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connCount++
	return wallet.Connection{ConnectionID: "conn-accepted"}, nil
}

type testEnv struct {
	server     *httptest.Server
	agent      *fakeAgent
	sandbox    tenant.Sandbox
	instructor tenant.Tenant
	student    tenant.Tenant
	outsider   tenant.Tenant
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := showcasesqlite.Open(t.TempDir() + "/showcase.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	now := time.Now().UTC()
	ctx := context.Background()
	env := &testEnv{agent: &fakeAgent{secrets: map[uuid.UUID]string{}}}
	env.sandbox = tenant.Sandbox{ID: uuid.New(), Tag: "class-101", CreatedAt: now, UpdatedAt: now}
	other := tenant.Sandbox{ID: uuid.New(), Tag: "class-202", CreatedAt: now, UpdatedAt: now}
	for _, sb := range []tenant.Sandbox{env.sandbox, other} {
		if err := store.PutSandbox(ctx, sb); err != nil {
			t.Fatalf("put sandbox: %v", err)
		}
	}
	mk := func(sandboxID uuid.UUID, name string) tenant.Tenant {
		tn := tenant.Tenant{
			ID:           uuid.New(),
			SandboxID:    sandboxID,
			Name:         name,
			WalletID:     uuid.New(),
			WalletSecret: name + "-key",
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := store.PutTenant(ctx, tn); err != nil {
			t.Fatalf("put tenant: %v", err)
		}
		env.agent.secrets[tn.WalletID] = tn.WalletSecret
		return tn
	}
	env.instructor = mk(env.sandbox.ID, "Faber")
	env.student = mk(env.sandbox.ID, "Alice")
	env.outsider = mk(other.ID, "Mallory")

	cfg := tenantauth.Config{Secret: []byte("test-secret"), Algorithm: "HS256", TTL: time.Hour}
	bridge, err := tenantauth.NewBridge(cfg)
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	authenticator, err := tenantauth.NewAuthenticator(env.agent, cfg)
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}
	handler := NewHandler(invitation.NewCoordinator(store, env.agent), authenticator, bridge)
	env.server = httptest.NewServer(handler.Routes())
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) token(t *testing.T, tn tenant.Tenant) string {
	t.Helper()
	form := url.Values{"username": {tn.WalletID.String()}, "password": {tn.WalletSecret}}
	resp, err := e.server.Client().PostForm(e.server.URL+"/token", form)
	if err != nil {
		t.Fatalf("post token: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token status = %d", resp.StatusCode)
	}
	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if body.TokenType != "bearer" || body.ExpiresIn <= 0 {
		t.Fatalf("token response = %+v", body)
	}
	return body.AccessToken
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = strings.NewReader(string(data))
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) tenantPath(tn tenant.Tenant, suffix string) string {
	return "/tenants/" + tn.ID.String() + suffix + "?sandbox_id=" + e.sandbox.ID.String()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	var body map[string]string
	if status := env.do(t, http.MethodGet, "/", "", nil, &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["status"] != "ok" || body["health"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestTokenRejectsBadCredentialsUniformly(t *testing.T) {
	env := newTestEnv(t)
	cases := []url.Values{
		{"username": {env.student.WalletID.String()}, "password": {"wrong"}},
		{"username": {uuid.NewString()}, "password": {"Alice-key"}},
		{"username": {"not-a-uuid"}, "password": {"Alice-key"}},
	}
	var details []string
	for _, form := range cases {
		resp, err := env.server.Client().PostForm(env.server.URL+"/token", form)
		if err != nil {
			t.Fatalf("post token: %v", err)
		}
		var body errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
		if resp.Header.Get("WWW-Authenticate") != "Bearer" {
			t.Fatalf("missing WWW-Authenticate header")
		}
		details = append(details, body.Detail)
	}
	for _, d := range details[1:] {
		if d != details[0] {
			t.Fatalf("details differ: %v", details)
		}
	}
}

func TestTokenRequiresFields(t *testing.T) {
	env := newTestEnv(t)
	resp, err := env.server.Client().PostForm(env.server.URL+"/token", url.Values{"username": {"x"}})
	if err != nil {
		t.Fatalf("post token: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestInvitationFlow(t *testing.T) {
	env := newTestEnv(t)
	instructorToken := env.token(t, env.instructor)
	studentToken := env.token(t, env.student)

	var created createInvitationResponse
	status := env.do(t, http.MethodPost, env.tenantPath(env.instructor, "/create-invitation/student"), instructorToken,
		createInvitationRequest{StudentID: &env.student.ID}, &created)
	if status != http.StatusOK {
		t.Fatalf("create status = %d", status)
	}
	if created.MessageID == uuid.Nil || created.RecipientID == nil || *created.RecipientID != env.student.ID {
		t.Fatalf("created = %+v", created)
	}
	if string(created.Invitation) != `{"label":"Alice"}` {
		t.Fatalf("invitation = %s", created.Invitation)
	}

	var accepted acceptInvitationResponse
	status = env.do(t, http.MethodPost, env.tenantPath(env.student, "/accept-invitation"), studentToken,
		acceptInvitationRequest{InvitationMessageID: created.MessageID}, &accepted)
	if status != http.StatusOK {
		t.Fatalf("accept status = %d", status)
	}
	if accepted.ConnectionID != "conn-accepted" {
		t.Fatalf("accepted = %+v", accepted)
	}

	var conflict errorResponse
	status = env.do(t, http.MethodPost, env.tenantPath(env.student, "/accept-invitation"), studentToken,
		acceptInvitationRequest{InvitationMessageID: created.MessageID}, &conflict)
	if status != http.StatusConflict || conflict.Code != "INVITATION_ALREADY_ACCEPTED" {
		t.Fatalf("second accept = %d %+v", status, conflict)
	}

	var messages []struct {
		ID          uuid.UUID       `json:"id"`
		MsgType     string          `json:"msg_type"`
		Msg         json.RawMessage `json:"msg"`
		SenderID    *uuid.UUID      `json:"sender_id"`
		RecipientID *uuid.UUID      `json:"recipient_id"`
	}
	status = env.do(t, http.MethodGet, env.tenantPath(env.instructor, "/out-of-band-msgs"), instructorToken, nil, &messages)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(messages))
	}
	if messages[0].MsgType != "invitation" || messages[0].ID != created.MessageID {
		t.Fatalf("first = %+v", messages[0])
	}
	if messages[1].MsgType != "invitation-response" || *messages[1].SenderID != env.student.ID || *messages[1].RecipientID != env.instructor.ID {
		t.Fatalf("second = %+v", messages[1])
	}
	var responsePayload map[string]string
	if err := json.Unmarshal(messages[1].Msg, &responsePayload); err != nil {
		t.Fatalf("decode response payload: %v", err)
	}
	if responsePayload["invitation_msg_id"] != created.MessageID.String() || responsePayload["connection_id"] != "conn-accepted" {
		t.Fatalf("response payload = %v", responsePayload)
	}
}

func TestRoutesRequireBearer(t *testing.T) {
	env := newTestEnv(t)
	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, env.tenantPath(env.student, "")},
		{http.MethodGet, env.tenantPath(env.student, "/out-of-band-msgs")},
		{http.MethodPost, env.tenantPath(env.student, "/create-invitation/student")},
		{http.MethodPost, env.tenantPath(env.student, "/accept-invitation")},
	}
	for _, p := range paths {
		var body errorResponse
		if status := env.do(t, p.method, p.path, "", nil, &body); status != http.StatusUnauthorized {
			t.Fatalf("%s %s status = %d, want 401", p.method, p.path, status)
		}
		if body.Code != "UNAUTHENTICATED" {
			t.Fatalf("code = %q", body.Code)
		}
		if status := env.do(t, p.method, p.path, "garbage", nil, nil); status != http.StatusUnauthorized {
			t.Fatalf("%s %s with bad token status = %d, want 401", p.method, p.path, status)
		}
	}
}

func TestGetTenantScopedToSandbox(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, env.student)

	var got tenantResponse
	if status := env.do(t, http.MethodGet, env.tenantPath(env.instructor, ""), token, nil, &got); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got.ID != env.instructor.ID || got.Name != "Faber" {
		t.Fatalf("tenant = %+v", got)
	}

	var outside, missing errorResponse
	statusOutside := env.do(t, http.MethodGet, env.tenantPath(env.outsider, ""), token, nil, &outside)
	missingTenant := tenant.Tenant{ID: uuid.New()}
	statusMissing := env.do(t, http.MethodGet, env.tenantPath(missingTenant, ""), token, nil, &missing)
	if statusOutside != http.StatusNotFound || statusMissing != http.StatusNotFound {
		t.Fatalf("statuses = %d / %d, want 404", statusOutside, statusMissing)
	}
	if outside != missing {
		t.Fatalf("responses differ: %+v vs %+v", outside, missing)
	}
}

func TestGetTenantDoesNotExposeSecret(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, env.student)
	var raw map[string]any
	if status := env.do(t, http.MethodGet, env.tenantPath(env.student, ""), token, nil, &raw); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	for key := range raw {
		if strings.Contains(key, "secret") {
			t.Fatalf("response exposes %q", key)
		}
	}
}

func TestScopeValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, env.student)

	var body errorResponse
	status := env.do(t, http.MethodGet, "/tenants/"+env.student.ID.String()+"/out-of-band-msgs", token, nil, &body)
	if status != http.StatusBadRequest || body.Code != "INVALID_ARGUMENT" {
		t.Fatalf("missing sandbox = %d %+v", status, body)
	}
	status = env.do(t, http.MethodGet, "/tenants/nope/out-of-band-msgs?sandbox_id="+env.sandbox.ID.String(), token, nil, &body)
	if status != http.StatusBadRequest {
		t.Fatalf("bad tenant id status = %d", status)
	}
}

func TestCreateInvitationRemoteFailure(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, env.instructor)
	env.agent.failNext = true

	var body errorResponse
	status := env.do(t, http.MethodPost, env.tenantPath(env.instructor, "/create-invitation/student"), token, nil, &body)
	if status != http.StatusServiceUnavailable || body.Code != "REMOTE_EXCHANGE_FAILED" {
		t.Fatalf("status = %d body = %+v", status, body)
	}

	var messages []json.RawMessage
	env.do(t, http.MethodGet, env.tenantPath(env.instructor, "/out-of-band-msgs"), token, nil, &messages)
	if len(messages) != 0 {
		t.Fatalf("messages = %d, want 0", len(messages))
	}
}

func TestActingForAnotherTenantIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	studentToken := env.token(t, env.student)

	var body errorResponse
	status := env.do(t, http.MethodPost, env.tenantPath(env.instructor, "/create-invitation/student"), studentToken, nil, &body)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
}

func TestErrorsAreLocalized(t *testing.T) {
	env := newTestEnv(t)
	req, err := http.NewRequest(http.MethodGet, env.server.URL+env.tenantPath(env.student, ""), nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Accept-Language", "fr-CA,fr;q=0.9")
	resp, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Detail != "Impossible de valider les identifiants" {
		t.Fatalf("detail = %q", body.Detail)
	}
}

type fixedIssuer struct {
	cred tenantauth.Credential
}

func (f fixedIssuer) Authenticate(ctx context.Context, _ string, _ string) (context.Context, tenantauth.Credential, error) {
	return ctx, f.cred, nil
}

func TestTokenExpiresInUsesIssuerClock(t *testing.T) {
	// The issuer's clock is far behind the wall clock; the lifetime must
	// still be the configured one.
	issuer := fixedIssuer{cred: tenantauth.Credential{
		AccessToken: "signed",
		TokenType:   tenantauth.TokenType,
		ExpiresAt:   time.Date(2001, time.January, 1, 1, 0, 0, 0, time.UTC),
		ExpiresIn:   time.Hour,
	}}
	handler := NewHandler(nil, issuer, nil)

	form := url.Values{"username": {uuid.NewString()}, "password": {"secret"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var body tokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ExpiresIn != 3600 {
		t.Fatalf("expires_in = %d, want 3600", body.ExpiresIn)
	}
}

func TestNewHandlerLeavesCallerBridgeUntouched(t *testing.T) {
	bridge, err := tenantauth.NewBridge(tenantauth.Config{Secret: []byte("test-secret")})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	handler := NewHandler(nil, nil, bridge)
	if bridge.OnError != nil {
		t.Fatal("caller bridge error writer was replaced")
	}

	req := httptest.NewRequest(http.MethodGet, "/tenants/"+uuid.NewString()+"?sandbox_id="+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("expected a JSON error body: %v", err)
	}
	if body.Code != "UNAUTHENTICATED" {
		t.Fatalf("code = %q", body.Code)
	}
}
