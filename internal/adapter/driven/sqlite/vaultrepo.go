package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pj-lytezen/obsidian-api-webhook/internal/domain/model"
	"github.com/pj-lytezen/obsidian-api-webhook/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.VaultStore = (*VaultRepo)(nil)

// VaultRepo is the SQLite implementation of the VaultStore port interface.
type VaultRepo struct {
	db *DB
}

// NewVaultRepo creates a new VaultRepo backed by the given DB.
func NewVaultRepo(db *DB) *VaultRepo {
	return &VaultRepo{db: db}
}

// GetByName retrieves a vault credential by exact name match.
// Returns driven.ErrVaultNotFound (wrapped) when the vault is not configured.
func (r *VaultRepo) GetByName(ctx context.Context, name string) (*model.Vault, error) {
	const query = `SELECT id, name, api_key, updated_at FROM vaults WHERE name = ?`

	var v model.Vault
	var updatedAt string
	err := r.db.Reader.QueryRowContext(ctx, query, name).Scan(&v.ID, &v.Name, &v.APIKey, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get vault %q: %w", name, driven.ErrVaultNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get vault %q: %w", name, err)
	}

	v.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at for vault %q: %w", name, err)
	}

	return &v, nil
}

// Set stores or replaces the credential for the given vault name.
func (r *VaultRepo) Set(ctx context.Context, name, apiKey string) error {
	const query = `INSERT OR REPLACE INTO vaults (name, api_key, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`

	_, err := r.db.Writer.ExecContext(ctx, query, name, apiKey)
	if err != nil {
		return fmt.Errorf("set vault %q: %w", name, err)
	}
	return nil
}

// Delete removes the credential for the given vault name.
// Returns driven.ErrVaultNotFound (wrapped) when the vault does not exist.
func (r *VaultRepo) Delete(ctx context.Context, name string) error {
	const query = `DELETE FROM vaults WHERE name = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("delete vault %q: %w", name, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete vault %q: %w", name, driven.ErrVaultNotFound)
	}

	return nil
}

// ListNames returns all configured vault names ordered alphabetically.
// API keys are deliberately not exposed through this method.
func (r *VaultRepo) ListNames(ctx context.Context) ([]string, error) {
	const query = `SELECT name FROM vaults ORDER BY name`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list vaults: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan vault name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vaults: %w", err)
	}

	return names, nil
}

// parseTime parses timestamps as written by SQLite, which stores
// CURRENT_TIMESTAMP in "2006-01-02 15:04:05" form but may also hold RFC3339
// values written by the driver.
func parseTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
