// Package invitation drives the out-of-band invitation handshake between
// tenants of one sandbox.
//
// Each relationship attempt moves NONE -> INVITED -> ACCEPTED. A failed
// wallet call never advances it: nothing is written unless the wallet agent
// succeeded, and acceptance is recorded at most once per invitation.
package invitation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	platformotel "github.com/louisbranch/showcase/internal/platform/otel"
	"github.com/louisbranch/showcase/internal/platform/requestctx"
	"github.com/louisbranch/showcase/internal/platform/timeouts"
	"github.com/louisbranch/showcase/internal/services/showcase/outofband"
	"github.com/louisbranch/showcase/internal/services/showcase/storage"
	"github.com/louisbranch/showcase/internal/services/showcase/tenant"
	"github.com/louisbranch/showcase/internal/services/showcase/wallet"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// State is the relationship state derived from stored messages.
type State string

const (
	StateNone     State = "none"
	StateInvited  State = "invited"
	StateAccepted State = "accepted"
)

type coordinatorStore interface {
	storage.TenantStore
	storage.OutOfBandStore
}

// CreateInvitationRequest describes a new invitation. StudentID, when set,
// restricts acceptance to that tenant.
type CreateInvitationRequest struct {
	StudentID *uuid.UUID
	Alias     string
}

// InviteResponse is the stored invitation and the payload to hand to the
// recipient.
type InviteResponse struct {
	Message outofband.Message
	Payload outofband.InvitationPayload
}

// AcceptInvitationRequest references the invitation message being accepted.
type AcceptInvitationRequest struct {
	InvitationMessageID uuid.UUID
	Alias               string
}

// AcceptResponse is the stored response and the connection it produced.
type AcceptResponse struct {
	Message      outofband.Message
	ConnectionID string
}

// Coordinator runs invitation operations for authenticated tenants.
type Coordinator struct {
	store  coordinatorStore
	wallet wallet.Capability
	clock  func() time.Time
	newID  func() (uuid.UUID, error)
}

// NewCoordinator creates a coordinator backed by store and the remote wallet.
func NewCoordinator(store coordinatorStore, capability wallet.Capability) *Coordinator {
	return &Coordinator{
		store:  store,
		wallet: capability,
		clock:  time.Now,
		newID:  uuid.NewRandom,
	}
}

// CreateInvitation asks the sender's wallet for a connection invitation and
// records it as an invitation message.
func (c *Coordinator) CreateInvitation(ctx context.Context, sandboxID uuid.UUID, senderID uuid.UUID, req CreateInvitationRequest) (InviteResponse, error) {
	if err := c.ready(); err != nil {
		return InviteResponse{}, err
	}
	ctx, span := startSpan(ctx, "invitation.CreateInvitation", sandboxID, senderID)
	defer span.End()

	sender, session, err := c.resolveActor(ctx, sandboxID, senderID)
	if err != nil {
		return InviteResponse{}, endSpan(span, err)
	}

	alias := strings.TrimSpace(req.Alias)
	var recipientID *uuid.UUID
	if req.StudentID != nil {
		if *req.StudentID == sender.ID {
			return InviteResponse{}, endSpan(span, invalidArgument("a tenant cannot invite itself"))
		}
		student, err := c.getTenant(ctx, sandboxID, *req.StudentID)
		if err != nil {
			return InviteResponse{}, endSpan(span, err)
		}
		recipientID = outofband.Ref(student.ID)
		if alias == "" {
			alias = student.Name
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeouts.WalletRequest)
	inv, err := c.wallet.CreateInvitation(callCtx, session.Token, alias)
	cancel()
	if err != nil {
		log.Printf("create invitation for tenant %s in sandbox %s: %v", sender.ID, sandboxID, err)
		return InviteResponse{}, endSpan(span, remoteExchangeFailed("create invitation", err))
	}

	id, err := c.newID()
	if err != nil {
		return InviteResponse{}, endSpan(span, fmt.Errorf("generate message id: %w", err))
	}
	payload := outofband.InvitationPayload{
		ConnectionID:  inv.ConnectionID,
		InvitationURL: inv.InvitationURL,
		Alias:         alias,
		Invitation:    inv.Invitation,
	}
	msg, err := outofband.NewInvitation(id, sandboxID, sender.ID, recipientID, payload, c.clock())
	if err != nil {
		return InviteResponse{}, endSpan(span, err)
	}
	stored, err := c.store.CreateOutOfBand(ctx, msg)
	if err != nil {
		return InviteResponse{}, endSpan(span, fmt.Errorf("store invitation: %w", err))
	}
	span.SetAttributes(attribute.String("showcase.message_id", stored.ID.String()))
	return InviteResponse{Message: stored, Payload: payload}, nil
}

// AcceptInvitation completes the handshake for an invitation on behalf of
// the recipient and records the response. A second acceptance of the same
// invitation fails with INVITATION_ALREADY_ACCEPTED.
func (c *Coordinator) AcceptInvitation(ctx context.Context, sandboxID uuid.UUID, recipientID uuid.UUID, req AcceptInvitationRequest) (AcceptResponse, error) {
	if err := c.ready(); err != nil {
		return AcceptResponse{}, err
	}
	ctx, span := startSpan(ctx, "invitation.AcceptInvitation", sandboxID, recipientID)
	defer span.End()

	recipient, session, err := c.resolveActor(ctx, sandboxID, recipientID)
	if err != nil {
		return AcceptResponse{}, endSpan(span, err)
	}
	if req.InvitationMessageID == uuid.Nil {
		return AcceptResponse{}, endSpan(span, invalidArgument("invitation message id is required"))
	}
	span.SetAttributes(attribute.String("showcase.message_id", req.InvitationMessageID.String()))

	invitation, err := c.store.GetOutOfBand(ctx, req.InvitationMessageID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return AcceptResponse{}, endSpan(span, notFound("Invitation", sandboxID))
		}
		return AcceptResponse{}, endSpan(span, fmt.Errorf("load invitation: %w", err))
	}
	// Anything the recipient may not see is reported exactly like a missing
	// invitation.
	if invitation.Type != outofband.TypeInvitation ||
		invitation.SandboxID == nil || *invitation.SandboxID != sandboxID ||
		(invitation.RecipientID != nil && *invitation.RecipientID != recipient.ID) {
		return AcceptResponse{}, endSpan(span, notFound("Invitation", sandboxID))
	}
	if invitation.SenderID != nil && *invitation.SenderID == recipient.ID {
		return AcceptResponse{}, endSpan(span, invalidArgument("a tenant cannot accept its own invitation"))
	}
	payload, ok := invitation.Payload.(outofband.InvitationPayload)
	if !ok {
		return AcceptResponse{}, endSpan(span, fmt.Errorf("invitation %s has payload %T", invitation.ID, invitation.Payload))
	}

	// Skip the wallet call when the answer is already known. The unique
	// write below still decides races.
	state, err := c.State(ctx, invitation.ID)
	if err != nil {
		return AcceptResponse{}, endSpan(span, fmt.Errorf("check invitation state: %w", err))
	}
	if state == StateAccepted {
		return AcceptResponse{}, endSpan(span, alreadyAccepted(invitation.ID))
	}

	alias := strings.TrimSpace(req.Alias)
	if alias == "" {
		alias = c.senderName(ctx, sandboxID, invitation)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeouts.WalletRequest)
	conn, err := c.wallet.AcceptInvitation(callCtx, session.Token, payload.Invitation, alias)
	cancel()
	if err != nil {
		log.Printf("accept invitation %s for tenant %s in sandbox %s: %v", invitation.ID, recipient.ID, sandboxID, err)
		return AcceptResponse{}, endSpan(span, remoteExchangeFailed("accept invitation", err))
	}

	id, err := c.newID()
	if err != nil {
		return AcceptResponse{}, endSpan(span, fmt.Errorf("generate message id: %w", err))
	}
	response, err := outofband.NewInvitationResponse(id, invitation, recipient.ID, conn.ConnectionID, c.clock())
	if err != nil {
		return AcceptResponse{}, endSpan(span, err)
	}
	stored, err := c.store.CreateInvitationResponse(ctx, response)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyAccepted) {
			return AcceptResponse{}, endSpan(span, alreadyAccepted(invitation.ID))
		}
		return AcceptResponse{}, endSpan(span, fmt.Errorf("store invitation response: %w", err))
	}
	return AcceptResponse{Message: stored, ConnectionID: conn.ConnectionID}, nil
}

// GetForTenant returns every message the tenant sent or received, oldest
// first. Only the tenant itself may read its messages.
func (c *Coordinator) GetForTenant(ctx context.Context, sandboxID uuid.UUID, tenantID uuid.UUID) ([]outofband.Message, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	t, _, err := c.resolveActor(ctx, sandboxID, tenantID)
	if err != nil {
		return nil, err
	}
	messages, err := c.store.ListOutOfBandForTenant(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("list out-of-band messages: %w", err)
	}
	return messages, nil
}

// GetByID resolves a tenant strictly within sandboxID.
func (c *Coordinator) GetByID(ctx context.Context, sandboxID uuid.UUID, tenantID uuid.UUID) (tenant.Tenant, error) {
	if err := c.ready(); err != nil {
		return tenant.Tenant{}, err
	}
	return c.getTenant(ctx, sandboxID, tenantID)
}

// State reports how far the invitation has progressed. Unknown ids are
// StateNone.
func (c *Coordinator) State(ctx context.Context, invitationID uuid.UUID) (State, error) {
	if err := c.ready(); err != nil {
		return StateNone, err
	}
	msg, err := c.store.GetOutOfBand(ctx, invitationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return StateNone, nil
		}
		return StateNone, fmt.Errorf("load invitation: %w", err)
	}
	if msg.Type != outofband.TypeInvitation {
		return StateNone, invalidArgument("message is not an invitation")
	}
	if _, err := c.store.GetInvitationResponse(ctx, invitationID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return StateInvited, nil
		}
		return StateNone, fmt.Errorf("check invitation response: %w", err)
	}
	return StateAccepted, nil
}

// resolveActor loads the acting tenant and the request's wallet session. A
// session for another wallet is reported as a missing tenant.
func (c *Coordinator) resolveActor(ctx context.Context, sandboxID uuid.UUID, tenantID uuid.UUID) (tenant.Tenant, requestctx.WalletSession, error) {
	session, ok := requestctx.WalletSessionFromContext(ctx)
	if !ok {
		return tenant.Tenant{}, requestctx.WalletSession{}, unauthenticated("wallet session is required")
	}
	t, err := c.getTenant(ctx, sandboxID, tenantID)
	if err != nil {
		return tenant.Tenant{}, requestctx.WalletSession{}, err
	}
	if t.WalletID != session.WalletID {
		return tenant.Tenant{}, requestctx.WalletSession{}, notFound("Tenant", sandboxID)
	}
	return t, session, nil
}

func (c *Coordinator) getTenant(ctx context.Context, sandboxID uuid.UUID, tenantID uuid.UUID) (tenant.Tenant, error) {
	t, err := c.store.GetTenant(ctx, sandboxID, tenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return tenant.Tenant{}, notFound("Tenant", sandboxID)
		}
		return tenant.Tenant{}, fmt.Errorf("load tenant: %w", err)
	}
	return t, nil
}

func (c *Coordinator) senderName(ctx context.Context, sandboxID uuid.UUID, invitation outofband.Message) string {
	if invitation.SenderID == nil {
		return ""
	}
	sender, err := c.store.GetTenant(ctx, sandboxID, *invitation.SenderID)
	if err != nil {
		return ""
	}
	return sender.Name
}

func (c *Coordinator) ready() error {
	if c == nil || c.store == nil {
		return errors.New("invitation store is not configured")
	}
	if c.wallet == nil {
		return errors.New("wallet capability is not configured")
	}
	return nil
}

func startSpan(ctx context.Context, name string, sandboxID uuid.UUID, tenantID uuid.UUID) (context.Context, trace.Span) {
	return platformotel.Tracer().Start(ctx, name, trace.WithAttributes(
		attribute.String("showcase.sandbox_id", sandboxID.String()),
		attribute.String("showcase.tenant_id", tenantID.String()),
	))
}

func endSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
