// Package wallet talks to the remote wallet agent that owns tenant wallets.
//
// The agent performs the cryptographic work. This package only mints wallet
// session tokens and drives the connection handshake on behalf of a session.
package wallet

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// Invitation is a connection invitation generated by a sender's wallet.
type Invitation struct {
	ConnectionID  string
	InvitationURL string
	// Invitation is the agent's invitation document, passed to the recipient
	// unchanged.
	Invitation json.RawMessage
}

// Connection identifies the connection created by an accepted invitation.
type Connection struct {
	ConnectionID string
}

// Capability is the remote wallet surface the showcase core depends on.
// Implementations must be safe for concurrent use.
type Capability interface {
	// MintSession exchanges long-lived wallet credentials for a short-lived
	// wallet session token.
	MintSession(ctx context.Context, walletID uuid.UUID, walletSecret string) (string, error)
	// CreateInvitation asks the session's wallet for a new connection invitation.
	CreateInvitation(ctx context.Context, sessionToken string, alias string) (Invitation, error)
	// AcceptInvitation completes the handshake for an invitation produced by
	// another wallet.
	AcceptInvitation(ctx context.Context, sessionToken string, invitation json.RawMessage, alias string) (Connection, error)
}
