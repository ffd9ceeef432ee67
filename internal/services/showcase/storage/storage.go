// Package storage defines persistence contracts for showcase tenants and
// out-of-band messages.
package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/louisbranch/showcase/internal/platform/errors"
	"github.com/louisbranch/showcase/internal/services/showcase/outofband"
	"github.com/louisbranch/showcase/internal/services/showcase/tenant"
)

// ErrNotFound indicates a requested record is missing or outside the
// requested scope. Callers cannot tell the two apart.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// ErrAlreadyAccepted indicates an invitation already has a recorded response.
var ErrAlreadyAccepted = errors.New(errors.CodeInvitationAlreadyAccepted, "invitation already accepted")

// TenantStore resolves tenants strictly within a sandbox.
type TenantStore interface {
	// GetTenant returns ErrNotFound when the tenant does not exist or
	// belongs to another sandbox.
	GetTenant(ctx context.Context, sandboxID uuid.UUID, tenantID uuid.UUID) (tenant.Tenant, error)
}

// ProvisioningStore creates sandboxes and tenants. Only bootstrap uses it;
// the request path treats tenants as read-only.
type ProvisioningStore interface {
	PutSandbox(ctx context.Context, sandbox tenant.Sandbox) error
	PutTenant(ctx context.Context, t tenant.Tenant) error
}

// OutOfBandStore persists out-of-band messages. Messages are never deleted.
type OutOfBandStore interface {
	// CreateOutOfBand inserts a message that is not an invitation response.
	CreateOutOfBand(ctx context.Context, msg outofband.Message) (outofband.Message, error)
	// CreateInvitationResponse inserts a response unless the referenced
	// invitation already has one, in which case it returns
	// ErrAlreadyAccepted. The check and the write are one atomic step.
	CreateInvitationResponse(ctx context.Context, msg outofband.Message) (outofband.Message, error)
	GetOutOfBand(ctx context.Context, messageID uuid.UUID) (outofband.Message, error)
	// GetInvitationResponse returns the response to invitationID or ErrNotFound.
	GetInvitationResponse(ctx context.Context, invitationID uuid.UUID) (outofband.Message, error)
	// ListOutOfBandForTenant returns every message the tenant sent or
	// received, oldest first.
	ListOutOfBandForTenant(ctx context.Context, tenantID uuid.UUID) ([]outofband.Message, error)
}
