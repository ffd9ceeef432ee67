// Package httpapi exposes the showcase tenant and invitation routes over
// HTTP+JSON.
package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/louisbranch/showcase/internal/services/showcase/invitation"
	"github.com/louisbranch/showcase/internal/services/showcase/outofband"
	"github.com/louisbranch/showcase/internal/services/showcase/tenant"
	"github.com/louisbranch/showcase/internal/services/showcase/tenantauth"
)

// maxBodyBytes bounds JSON and form request bodies.
const maxBodyBytes = 1 << 20

// InvitationService is the coordinator surface used by the routes.
type InvitationService interface {
	CreateInvitation(ctx context.Context, sandboxID uuid.UUID, senderID uuid.UUID, req invitation.CreateInvitationRequest) (invitation.InviteResponse, error)
	AcceptInvitation(ctx context.Context, sandboxID uuid.UUID, recipientID uuid.UUID, req invitation.AcceptInvitationRequest) (invitation.AcceptResponse, error)
	GetForTenant(ctx context.Context, sandboxID uuid.UUID, tenantID uuid.UUID) ([]outofband.Message, error)
	GetByID(ctx context.Context, sandboxID uuid.UUID, tenantID uuid.UUID) (tenant.Tenant, error)
}

// TokenIssuer exchanges wallet credentials for a bearer credential.
type TokenIssuer interface {
	Authenticate(ctx context.Context, walletID string, walletSecret string) (context.Context, tenantauth.Credential, error)
}

// Handler serves the showcase HTTP routes.
type Handler struct {
	invitations InvitationService
	tokens      TokenIssuer
	bridge      *tenantauth.Bridge
}

// NewHandler wires the routes to their collaborators. The handler keeps its
// own copy of bridge so authentication failures render like every other API
// error; the caller's bridge is not modified.
func NewHandler(invitations InvitationService, tokens TokenIssuer, bridge *tenantauth.Bridge) *Handler {
	if bridge != nil {
		bridge = bridge.WithErrorWriter(writeError)
	}
	return &Handler{
		invitations: invitations,
		tokens:      tokens,
		bridge:      bridge,
	}
}

// RegisterRoutes mounts the routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleHealth)
	mux.HandleFunc("POST /token", h.handleToken)

	mux.Handle("GET /tenants/{tenantID}", h.authenticated(h.handleGetTenant))
	mux.Handle("GET /tenants/{tenantID}/out-of-band-msgs", h.authenticated(h.handleListOutOfBand))
	mux.Handle("POST /tenants/{tenantID}/create-invitation/student", h.authenticated(h.handleCreateInvitation))
	mux.Handle("POST /tenants/{tenantID}/accept-invitation", h.authenticated(h.handleAcceptInvitation))
}

// Routes returns a mux serving every route.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

// authenticated runs the bearer bridge once and requires a wallet session.
func (h *Handler) authenticated(fn http.HandlerFunc) http.Handler {
	if h.bridge == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, errAuthNotConfigured)
		})
	}
	return h.bridge.Middleware(h.bridge.RequireWalletSession(fn))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "health": "ok"})
}
