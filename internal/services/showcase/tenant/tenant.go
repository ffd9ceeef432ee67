// Package tenant models tenants and the sandboxes that scope them.
package tenant

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/louisbranch/showcase/internal/platform/errors"
)

// Sandbox groups a cohort of tenants that may exchange invitations.
type Sandbox struct {
	ID        uuid.UUID
	Tag       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tenant is an organization with its own wallet.
type Tenant struct {
	ID        uuid.UUID
	SandboxID uuid.UUID
	Name      string
	// WalletID and WalletSecret are the long-lived wallet credentials. They
	// are read during authentication only.
	WalletID     uuid.UUID
	WalletSecret string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// String redacts the wallet secret.
func (t Tenant) String() string {
	return fmt.Sprintf("Tenant{ID:%s SandboxID:%s Name:%q WalletID:%s}", t.ID, t.SandboxID, t.Name, t.WalletID)
}

// GoString redacts the wallet secret for %#v.
func (t Tenant) GoString() string {
	return t.String()
}

// Normalize trims input and checks the fields required to provision a tenant.
func Normalize(t Tenant) (Tenant, error) {
	t.Name = strings.TrimSpace(t.Name)
	t.WalletSecret = strings.TrimSpace(t.WalletSecret)
	if t.ID == uuid.Nil {
		return Tenant{}, invalid("tenant id is required")
	}
	if t.SandboxID == uuid.Nil {
		return Tenant{}, invalid("tenant sandbox id is required")
	}
	if t.Name == "" {
		return Tenant{}, invalid("tenant name is required")
	}
	if t.WalletID == uuid.Nil {
		return Tenant{}, invalid("tenant wallet id is required")
	}
	if t.WalletSecret == "" {
		return Tenant{}, invalid("tenant wallet secret is required")
	}
	return t, nil
}

// NormalizeSandbox trims input and checks the fields required to provision a sandbox.
func NormalizeSandbox(s Sandbox) (Sandbox, error) {
	s.Tag = strings.TrimSpace(s.Tag)
	if s.ID == uuid.Nil {
		return Sandbox{}, invalid("sandbox id is required")
	}
	if s.Tag == "" {
		return Sandbox{}, invalid("sandbox tag is required")
	}
	return s, nil
}

func invalid(reason string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidArgument, reason, map[string]string{"Reason": reason})
}
