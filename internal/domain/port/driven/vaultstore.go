// Package driven defines the outbound port interfaces the application core
// depends on, implemented by storage and delivery adapters.
package driven

import (
	"context"
	"errors"

	"github.com/pj-lytezen/obsidian-api-webhook/internal/domain/model"
)

// ErrVaultNotFound indicates no credential is configured for the vault name.
// Storage failures are never reported as this error.
var ErrVaultNotFound = errors.New("vault not found")

// VaultStore defines the driven port for vault credential persistence.
// GetByName returns ErrVaultNotFound (wrapped) when the vault is not
// configured. Set creates or replaces the credential for a vault name.
// Delete returns ErrVaultNotFound when the vault does not exist.
type VaultStore interface {
	GetByName(ctx context.Context, name string) (*model.Vault, error)
	Set(ctx context.Context, name, apiKey string) error
	Delete(ctx context.Context, name string) error
	ListNames(ctx context.Context) ([]string, error)
}
