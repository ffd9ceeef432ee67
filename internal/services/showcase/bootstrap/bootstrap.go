// Package bootstrap provisions sandboxes and tenants from a JSON manifest.
//
// Provisioning is the only writer of tenant records; the request path reads
// them. Applying a manifest twice leaves the same records in place.
package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/louisbranch/showcase/internal/services/showcase/storage"
	"github.com/louisbranch/showcase/internal/services/showcase/tenant"
)

// Manifest declares the sandboxes to provision.
type Manifest struct {
	Sandboxes []ManifestSandbox `json:"sandboxes"`
}

// ManifestSandbox declares one sandbox and its tenants.
type ManifestSandbox struct {
	ID      uuid.UUID        `json:"id"`
	Tag     string           `json:"tag"`
	Tenants []ManifestTenant `json:"tenants"`
}

// ManifestTenant declares one tenant and its wallet credentials.
type ManifestTenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	WalletID  uuid.UUID `json:"wallet_id"`
	WalletKey string    `json:"wallet_key"`
}

// Summary counts the records written by Apply.
type Summary struct {
	Sandboxes int
	Tenants   int
}

// LoadManifest reads a manifest file. Unknown fields are rejected.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return Manifest{}, fmt.Errorf("read bootstrap manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates a manifest.
func ParseManifest(data []byte) (Manifest, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	var manifest Manifest
	if err := decoder.Decode(&manifest); err != nil {
		return Manifest{}, fmt.Errorf("decode bootstrap manifest: %w", err)
	}
	if err := ValidateManifest(manifest); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

// ValidateManifest checks required fields and id uniqueness.
func ValidateManifest(manifest Manifest) error {
	sandboxIDs := make(map[uuid.UUID]struct{})
	tenantIDs := make(map[uuid.UUID]struct{})
	walletIDs := make(map[uuid.UUID]struct{})
	var errs []error
	for i, sb := range manifest.Sandboxes {
		if sb.ID == uuid.Nil {
			errs = append(errs, fmt.Errorf("sandboxes[%d]: id is required", i))
		} else if _, dup := sandboxIDs[sb.ID]; dup {
			errs = append(errs, fmt.Errorf("sandboxes[%d]: duplicate id %s", i, sb.ID))
		}
		sandboxIDs[sb.ID] = struct{}{}
		if strings.TrimSpace(sb.Tag) == "" {
			errs = append(errs, fmt.Errorf("sandboxes[%d]: tag is required", i))
		}
		for j, tn := range sb.Tenants {
			where := fmt.Sprintf("sandboxes[%d].tenants[%d]", i, j)
			if tn.ID == uuid.Nil {
				errs = append(errs, fmt.Errorf("%s: id is required", where))
			} else if _, dup := tenantIDs[tn.ID]; dup {
				errs = append(errs, fmt.Errorf("%s: duplicate id %s", where, tn.ID))
			}
			tenantIDs[tn.ID] = struct{}{}
			if tn.WalletID == uuid.Nil {
				errs = append(errs, fmt.Errorf("%s: wallet_id is required", where))
			} else if _, dup := walletIDs[tn.WalletID]; dup {
				errs = append(errs, fmt.Errorf("%s: wallet %s is already assigned", where, tn.WalletID))
			}
			walletIDs[tn.WalletID] = struct{}{}
			if strings.TrimSpace(tn.Name) == "" {
				errs = append(errs, fmt.Errorf("%s: name is required", where))
			}
			if strings.TrimSpace(tn.WalletKey) == "" {
				errs = append(errs, fmt.Errorf("%s: wallet_key is required", where))
			}
		}
	}
	return errors.Join(errs...)
}

// Apply upserts every sandbox and tenant in the manifest.
func Apply(ctx context.Context, store storage.ProvisioningStore, manifest Manifest, now time.Time) (Summary, error) {
	if store == nil {
		return Summary{}, errors.New("provisioning store is required")
	}
	if err := ValidateManifest(manifest); err != nil {
		return Summary{}, err
	}
	now = now.UTC()
	var summary Summary
	for _, sb := range manifest.Sandboxes {
		if err := store.PutSandbox(ctx, tenant.Sandbox{
			ID:        sb.ID,
			Tag:       sb.Tag,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return summary, fmt.Errorf("provision sandbox %s: %w", sb.ID, err)
		}
		summary.Sandboxes++
		for _, tn := range sb.Tenants {
			if err := store.PutTenant(ctx, tenant.Tenant{
				ID:           tn.ID,
				SandboxID:    sb.ID,
				Name:         tn.Name,
				WalletID:     tn.WalletID,
				WalletSecret: tn.WalletKey,
				CreatedAt:    now,
				UpdatedAt:    now,
			}); err != nil {
				return summary, fmt.Errorf("provision tenant %s: %w", tn.ID, err)
			}
			summary.Tenants++
		}
	}
	return summary, nil
}

// ApplyFile loads the manifest at path and applies it. An empty path is a
// no-op.
func ApplyFile(ctx context.Context, store storage.ProvisioningStore, path string, now time.Time) (Summary, error) {
	if strings.TrimSpace(path) == "" {
		return Summary{}, nil
	}
	manifest, err := LoadManifest(path)
	if err != nil {
		return Summary{}, err
	}
	summary, err := Apply(ctx, store, manifest, now)
	if err != nil {
		return summary, err
	}
	log.Printf("bootstrap provisioned %d sandboxes and %d tenants", summary.Sandboxes, summary.Tenants)
	return summary, nil
}
