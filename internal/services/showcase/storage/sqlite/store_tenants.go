package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/louisbranch/showcase/internal/services/showcase/storage"
	"github.com/louisbranch/showcase/internal/services/showcase/tenant"
)

const tenantColumns = `id, sandbox_id, name, wallet_id, wallet_secret, created_at, updated_at`

// PutSandbox upserts a sandbox.
func (s *Store) PutSandbox(ctx context.Context, sandbox tenant.Sandbox) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	sandbox, err := tenant.NormalizeSandbox(sandbox)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO sandboxes (id, tag, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   tag = excluded.tag,
		   updated_at = excluded.updated_at`,
		sandbox.ID.String(),
		sandbox.Tag,
		toMillis(sandbox.CreatedAt),
		toMillis(sandbox.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put sandbox: %w", err)
	}
	return nil
}

// PutTenant upserts a tenant.
func (s *Store) PutTenant(ctx context.Context, t tenant.Tenant) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	t, err := tenant.Normalize(t)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO tenants (`+tenantColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   sandbox_id = excluded.sandbox_id,
		   name = excluded.name,
		   wallet_id = excluded.wallet_id,
		   wallet_secret = excluded.wallet_secret,
		   updated_at = excluded.updated_at`,
		t.ID.String(),
		t.SandboxID.String(),
		t.Name,
		t.WalletID.String(),
		t.WalletSecret,
		toMillis(t.CreatedAt),
		toMillis(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put tenant: %w", err)
	}
	return nil
}

// GetTenant returns the tenant only when it belongs to sandboxID.
func (s *Store) GetTenant(ctx context.Context, sandboxID uuid.UUID, tenantID uuid.UUID) (tenant.Tenant, error) {
	if err := s.ready(ctx); err != nil {
		return tenant.Tenant{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+tenantColumns+`
		 FROM tenants
		 WHERE id = ? AND sandbox_id = ?`,
		tenantID.String(),
		sandboxID.String(),
	)
	t, err := scanTenant(row)
	if err != nil {
		return tenant.Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

func scanTenant(row *sql.Row) (tenant.Tenant, error) {
	var (
		id, sandboxID, walletID string
		t                       tenant.Tenant
		createdAt, updatedAt    int64
	)
	err := row.Scan(&id, &sandboxID, &t.Name, &walletID, &t.WalletSecret, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tenant.Tenant{}, storage.ErrNotFound
		}
		return tenant.Tenant{}, err
	}
	if t.ID, err = uuid.Parse(id); err != nil {
		return tenant.Tenant{}, fmt.Errorf("parse tenant id: %w", err)
	}
	if t.SandboxID, err = uuid.Parse(sandboxID); err != nil {
		return tenant.Tenant{}, fmt.Errorf("parse sandbox id: %w", err)
	}
	if t.WalletID, err = uuid.Parse(walletID); err != nil {
		return tenant.Tenant{}, fmt.Errorf("parse wallet id: %w", err)
	}
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updatedAt)
	return t, nil
}
