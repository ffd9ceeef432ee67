// Package outofband models cross-tenant out-of-band messages.
//
// Messages are an append-only audit trail: an invitation is answered by a
// second message rather than mutated in place.
package outofband

import (
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/louisbranch/showcase/internal/platform/errors"
)

// MsgType identifies the kind of out-of-band message.
type MsgType string

const (
	TypeInvitation         MsgType = "invitation"
	TypeInvitationResponse MsgType = "invitation-response"
	TypeOther              MsgType = "other"
)

// ParseMsgType maps stored values to a MsgType; unrecognized values are other.
func ParseMsgType(value string) MsgType {
	switch MsgType(strings.TrimSpace(value)) {
	case TypeInvitation:
		return TypeInvitation
	case TypeInvitationResponse:
		return TypeInvitationResponse
	default:
		return TypeOther
	}
}

// Message is a persisted out-of-band message between tenants. Sender and
// recipient are nil for system-originated messages.
type Message struct {
	ID          uuid.UUID
	Type        MsgType
	Payload     Payload
	SenderID    *uuid.UUID
	RecipientID *uuid.UUID
	SandboxID   *uuid.UUID
	// ReplyToID links an invitation-response to the invitation it answers.
	ReplyToID *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the per-type invariants.
func (m Message) Validate() error {
	if m.ID == uuid.Nil {
		return invalid("message id is required")
	}
	if m.Payload == nil {
		return invalid("message payload is required")
	}
	if m.Payload.MsgType() != m.Type {
		return invalid("message payload does not match message type")
	}
	switch m.Type {
	case TypeInvitation:
		if isNil(m.SenderID) {
			return invalid("invitation requires a sender")
		}
		if isNil(m.SandboxID) {
			return invalid("invitation requires a sandbox")
		}
		if p, ok := m.Payload.(InvitationPayload); !ok || len(p.Invitation) == 0 {
			return invalid("invitation payload is empty")
		}
	case TypeInvitationResponse:
		if isNil(m.SenderID) || isNil(m.RecipientID) {
			return invalid("invitation response requires sender and recipient")
		}
		if isNil(m.SandboxID) {
			return invalid("invitation response requires a sandbox")
		}
		if isNil(m.ReplyToID) {
			return invalid("invitation response must reference an invitation")
		}
	}
	return nil
}

// NewInvitation builds an invitation message from sender to an optional
// intended recipient.
func NewInvitation(id uuid.UUID, sandboxID uuid.UUID, senderID uuid.UUID, recipientID *uuid.UUID, payload InvitationPayload, now time.Time) (Message, error) {
	now = now.UTC()
	msg := Message{
		ID:          id,
		Type:        TypeInvitation,
		Payload:     payload,
		SenderID:    Ref(senderID),
		RecipientID: recipientID,
		SandboxID:   Ref(sandboxID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// NewInvitationResponse builds the response to invitation sent by
// responderID. The response stays in the invitation's sandbox and is
// addressed to the original sender.
func NewInvitationResponse(id uuid.UUID, invitation Message, responderID uuid.UUID, connectionID string, now time.Time) (Message, error) {
	if invitation.Type != TypeInvitation {
		return Message{}, invalid("message is not an invitation")
	}
	if isNil(invitation.SenderID) || isNil(invitation.SandboxID) {
		return Message{}, invalid("invitation is missing sender or sandbox")
	}
	now = now.UTC()
	msg := Message{
		ID:   id,
		Type: TypeInvitationResponse,
		Payload: InvitationResponsePayload{
			InvitationMessageID: invitation.ID,
			ConnectionID:        connectionID,
		},
		SenderID:    Ref(responderID),
		RecipientID: Ref(*invitation.SenderID),
		SandboxID:   Ref(*invitation.SandboxID),
		ReplyToID:   Ref(invitation.ID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Ref returns a pointer to a copy of id.
func Ref(id uuid.UUID) *uuid.UUID {
	return &id
}

func isNil(id *uuid.UUID) bool {
	return id == nil || *id == uuid.Nil
}

func invalid(reason string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidArgument, reason, map[string]string{"Reason": reason})
}
