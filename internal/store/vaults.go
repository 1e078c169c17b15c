package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/zaupnik/internal/db"
	"github.com/erazemk/zaupnik/internal/model"
)

const vaultColumns = `v.id, v.name, v.owner_id, v.version, v.created_at, v.updated_at, u.username`

func scanVault(rs rowScanner) (*model.Vault, error) {
	v := &model.Vault{}
	if err := rs.Scan(&v.ID, &v.Name, &v.OwnerID, &v.Version, &v.CreatedAt, &v.UpdatedAt, &v.OwnerName); err != nil {
		return nil, err
	}
	return v, nil
}

// CreateVault creates a vault owned by ownerID.
func CreateVault(ctx context.Context, q db.Querier, name, ownerID string, at time.Time) (*model.Vault, error) {
	id := uuid.NewString()
	_, err := q.ExecContext(ctx,
		`INSERT INTO vaults (id, name, owner_id, version, created_at, updated_at)
		 VALUES (?, ?, ?, 1, ?, ?)`,
		id, name, ownerID, utc(at), utc(at),
	)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	return GetVault(ctx, q, id)
}

// GetVault returns a vault by ID.
func GetVault(ctx context.Context, q db.Querier, id string) (*model.Vault, error) {
	v, err := scanVault(q.QueryRowContext(ctx,
		`SELECT `+vaultColumns+`
		 FROM vaults v
		 JOIN users u ON u.id = v.owner_id
		 WHERE v.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting vault: %w", err)
	}
	return v, nil
}

// LockVault reads a vault for update inside a transaction. The owner name is
// not joined.
func LockVault(ctx context.Context, q db.Querier, id string) (*model.Vault, error) {
	v := &model.Vault{}
	err := q.QueryRowContext(ctx,
		`SELECT id, name, owner_id, version, created_at, updated_at
		 FROM vaults WHERE id = ?`+q.Dialect().ForUpdate(), id,
	).Scan(&v.ID, &v.Name, &v.OwnerID, &v.Version, &v.CreatedAt, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("locking vault: %w", err)
	}
	return v, nil
}

// ListVaultsByOwner returns the vaults owned by ownerID.
func ListVaultsByOwner(ctx context.Context, q db.Querier, ownerID string) ([]model.Vault, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+vaultColumns+`
		 FROM vaults v
		 JOIN users u ON u.id = v.owner_id
		 WHERE v.owner_id = ?
		 ORDER BY v.name`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing vaults: %w", err)
	}
	defer rows.Close()

	return scanVaults(rows)
}

// ListVaultsSharedWith returns the vaults where userID is an accepted or
// active nominee.
func ListVaultsSharedWith(ctx context.Context, q db.Querier, userID string) ([]model.Vault, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+vaultColumns+`
		 FROM vaults v
		 JOIN users u ON u.id = v.owner_id
		 WHERE v.id IN (
		     SELECT n.vault_id FROM nominees n
		     WHERE n.user_id = ? AND n.status IN (?, ?)
		 )
		 ORDER BY v.name`,
		userID, string(model.NomineeAccepted), string(model.NomineeActive),
	)
	if err != nil {
		return nil, fmt.Errorf("listing shared vaults: %w", err)
	}
	defer rows.Close()

	return scanVaults(rows)
}

func scanVaults(rows *sql.Rows) ([]model.Vault, error) {
	var vaults []model.Vault
	for rows.Next() {
		v, err := scanVault(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning vault: %w", err)
		}
		vaults = append(vaults, *v)
	}
	return vaults, rows.Err()
}

// ReassignOwner moves a vault from fromOwnerID to toOwnerID. The write only
// applies if the vault still has the expected owner and version; otherwise it
// returns model.ErrStorageConflict.
func ReassignOwner(ctx context.Context, q db.Querier, vaultID, fromOwnerID string, version int64, toOwnerID string, at time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE vaults SET owner_id = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND owner_id = ? AND version = ?`,
		toOwnerID, utc(at), vaultID, fromOwnerID, version,
	)
	return checkCAS(res, err, "reassigning vault owner")
}
