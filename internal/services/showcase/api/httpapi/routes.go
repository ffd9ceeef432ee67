package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/louisbranch/showcase/internal/services/showcase/invitation"
	"github.com/louisbranch/showcase/internal/services/showcase/outofband"
	"github.com/louisbranch/showcase/internal/services/showcase/tenant"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type tenantResponse struct {
	ID        uuid.UUID `json:"id"`
	SandboxID uuid.UUID `json:"sandbox_id"`
	Name      string    `json:"name"`
	WalletID  uuid.UUID `json:"wallet_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type outOfBandResponse struct {
	ID          uuid.UUID         `json:"id"`
	MsgType     outofband.MsgType `json:"msg_type"`
	Msg         outofband.Payload `json:"msg"`
	SenderID    *uuid.UUID        `json:"sender_id"`
	RecipientID *uuid.UUID        `json:"recipient_id"`
	SandboxID   *uuid.UUID        `json:"sandbox_id"`
	ReplyToID   *uuid.UUID        `json:"reply_to_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type createInvitationRequest struct {
	StudentID *uuid.UUID `json:"student_id"`
	Alias     string     `json:"alias"`
}

type createInvitationResponse struct {
	MessageID     uuid.UUID       `json:"message_id"`
	SenderID      uuid.UUID       `json:"sender_id"`
	RecipientID   *uuid.UUID      `json:"recipient_id"`
	ConnectionID  string          `json:"connection_id,omitempty"`
	InvitationURL string          `json:"invitation_url,omitempty"`
	Invitation    json.RawMessage `json:"invitation"`
}

type acceptInvitationRequest struct {
	InvitationMessageID uuid.UUID `json:"invitation_msg_id"`
	Alias               string    `json:"alias"`
}

type acceptInvitationResponse struct {
	MessageID    uuid.UUID `json:"message_id"`
	ConnectionID string    `json:"connection_id"`
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		writeError(w, r, errAuthNotConfigured)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, r, invalidArgument("invalid form data"))
		return
	}
	if grantType := r.PostFormValue("grant_type"); grantType != "" && grantType != "password" {
		writeError(w, r, invalidArgument("only the password grant is supported"))
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		writeError(w, r, invalidArgument("username and password are required"))
		return
	}

	_, cred, err := h.tokens.Authenticate(r.Context(), username, password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	expiresIn := int64(cred.ExpiresIn / time.Second)
	if expiresIn < 0 {
		expiresIn = 0
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: cred.AccessToken,
		TokenType:   cred.TokenType,
		ExpiresIn:   expiresIn,
	})
}

func (h *Handler) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	sandboxID, tenantID, err := scope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.invitations.GetByID(r.Context(), sandboxID, tenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantResponse(t))
}

func (h *Handler) handleListOutOfBand(w http.ResponseWriter, r *http.Request) {
	sandboxID, tenantID, err := scope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	messages, err := h.invitations.GetForTenant(r.Context(), sandboxID, tenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]outOfBandResponse, 0, len(messages))
	for _, msg := range messages {
		resp = append(resp, toOutOfBandResponse(msg))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateInvitation(w http.ResponseWriter, r *http.Request) {
	sandboxID, tenantID, err := scope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in createInvitationRequest
	if err := decodeBody(w, r, &in, true); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.invitations.CreateInvitation(r.Context(), sandboxID, tenantID, invitation.CreateInvitationRequest{
		StudentID: in.StudentID,
		Alias:     in.Alias,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createInvitationResponse{
		MessageID:     out.Message.ID,
		SenderID:      tenantID,
		RecipientID:   out.Message.RecipientID,
		ConnectionID:  out.Payload.ConnectionID,
		InvitationURL: out.Payload.InvitationURL,
		Invitation:    out.Payload.Invitation,
	})
}

func (h *Handler) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	sandboxID, tenantID, err := scope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in acceptInvitationRequest
	if err := decodeBody(w, r, &in, false); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.invitations.AcceptInvitation(r.Context(), sandboxID, tenantID, invitation.AcceptInvitationRequest{
		InvitationMessageID: in.InvitationMessageID,
		Alias:               in.Alias,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acceptInvitationResponse{
		MessageID:    out.Message.ID,
		ConnectionID: out.ConnectionID,
	})
}

// scope reads the sandbox_id query parameter and the tenant path segment.
func scope(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	rawSandbox := strings.TrimSpace(r.URL.Query().Get("sandbox_id"))
	if rawSandbox == "" {
		return uuid.Nil, uuid.Nil, invalidArgument("sandbox_id is required")
	}
	sandboxID, err := uuid.Parse(rawSandbox)
	if err != nil {
		return uuid.Nil, uuid.Nil, invalidArgument("sandbox_id must be a UUID")
	}
	tenantID, err := uuid.Parse(strings.TrimSpace(r.PathValue("tenantID")))
	if err != nil {
		return uuid.Nil, uuid.Nil, invalidArgument("tenant id must be a UUID")
	}
	return sandboxID, tenantID, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(target)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	if err != nil {
		return invalidArgument("request body must be valid JSON")
	}
	return nil
}

func toTenantResponse(t tenant.Tenant) tenantResponse {
	return tenantResponse{
		ID:        t.ID,
		SandboxID: t.SandboxID,
		Name:      t.Name,
		WalletID:  t.WalletID,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func toOutOfBandResponse(msg outofband.Message) outOfBandResponse {
	return outOfBandResponse{
		ID:          msg.ID,
		MsgType:     msg.Type,
		Msg:         msg.Payload,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		SandboxID:   msg.SandboxID,
		ReplyToID:   msg.ReplyToID,
		CreatedAt:   msg.CreatedAt,
		UpdatedAt:   msg.UpdatedAt,
	}
}
