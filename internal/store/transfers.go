package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/zaupnik/internal/db"
	"github.com/erazemk/zaupnik/internal/model"
)

const transferColumns = `id, vault_id, transfer_token, requested_by,
	candidate_name, candidate_email, candidate_phone, candidate_user_id,
	reason, status, created_at, approved_at, new_owner_id, superseded_by, ended_at`

func scanTransfer(rs rowScanner) (*model.TransferRequest, error) {
	t := &model.TransferRequest{}
	var status string
	var candidateUserID, newOwnerID, supersededBy sql.NullString
	if err := rs.Scan(&t.ID, &t.VaultID, &t.TransferToken, &t.RequestedBy,
		&t.Candidate.Name, &t.Candidate.Email, &t.Candidate.Phone, &candidateUserID,
		&t.Reason, &status, &t.CreatedAt, &t.ApprovedAt, &newOwnerID, &supersededBy, &t.EndedAt); err != nil {
		return nil, err
	}
	st, err := model.ParseTransferStatus(status)
	if err != nil {
		return nil, err
	}
	t.Status = st
	t.Candidate.UserID = candidateUserID.String
	t.NewOwnerID = newOwnerID.String
	t.SupersededBy = supersededBy.String
	return t, nil
}

// CreateTransferRequest inserts a transfer request. The caller supplies ID and
// token.
func CreateTransferRequest(ctx context.Context, q db.Querier, t *model.TransferRequest) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO transfer_requests (id, vault_id, transfer_token, requested_by,
		     candidate_name, candidate_email, candidate_phone, candidate_user_id,
		     reason, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.VaultID, t.TransferToken, t.RequestedBy,
		t.Candidate.Name, t.Candidate.Email, t.Candidate.Phone, nullString(t.Candidate.UserID),
		t.Reason, string(t.Status), utc(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("creating transfer request: %w", err)
	}
	return nil
}

// GetTransferRequest returns a transfer request by ID.
func GetTransferRequest(ctx context.Context, q db.Querier, id string) (*model.TransferRequest, error) {
	return getTransfer(ctx, q, `id = ?`, id, false)
}

// LockTransferRequest reads a transfer request for update inside a transaction.
func LockTransferRequest(ctx context.Context, q db.Querier, id string) (*model.TransferRequest, error) {
	return getTransfer(ctx, q, `id = ?`, id, true)
}

// LockTransferRequestByToken reads the request holding a transfer token for
// update.
func LockTransferRequestByToken(ctx context.Context, q db.Querier, token string) (*model.TransferRequest, error) {
	return getTransfer(ctx, q, `transfer_token = ?`, token, true)
}

func getTransfer(ctx context.Context, q db.Querier, where string, arg any, lock bool) (*model.TransferRequest, error) {
	query := `SELECT ` + transferColumns + ` FROM transfer_requests WHERE ` + where
	if lock {
		query += q.Dialect().ForUpdate()
	}
	t, err := scanTransfer(q.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting transfer request: %w", err)
	}
	return t, nil
}

// ListTransferRequests returns transfer requests, newest first, optionally
// filtered by vault or requester.
func ListTransferRequests(ctx context.Context, q db.Querier, vaultID, requesterID string) ([]model.TransferRequest, error) {
	query := `SELECT ` + transferColumns + ` FROM transfer_requests WHERE 1=1`
	var args []any

	if vaultID != "" {
		query += ` AND vault_id = ?`
		args = append(args, vaultID)
	}
	if requesterID != "" {
		query += ` AND requested_by = ?`
		args = append(args, requesterID)
	}

	query += ` ORDER BY created_at DESC, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transfer requests: %w", err)
	}
	defer rows.Close()

	var transfers []model.TransferRequest
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transfer request: %w", err)
		}
		transfers = append(transfers, *t)
	}
	return transfers, rows.Err()
}

// CompleteTransferRequest marks a pending request completed in favour of
// newOwnerID.
func CompleteTransferRequest(ctx context.Context, q db.Querier, id, newOwnerID string, at time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE transfer_requests SET status = ?, approved_at = ?, new_owner_id = ?, ended_at = ?
		 WHERE id = ? AND status = ?`,
		string(model.TransferCompleted), utc(at), newOwnerID, utc(at), id, string(model.TransferPending),
	)
	return checkCAS(res, err, "completing transfer request")
}

// EndTransferRequest moves a pending request to expired or cancelled.
func EndTransferRequest(ctx context.Context, q db.Querier, id string, to model.TransferStatus, at time.Time) error {
	if to == model.TransferCompleted || !model.TransferPending.CanTransitionTo(to) {
		return fmt.Errorf("%w: transfer pending -> %s", model.ErrInvalidState, to)
	}
	res, err := q.ExecContext(ctx,
		`UPDATE transfer_requests SET status = ?, ended_at = ?
		 WHERE id = ? AND status = ?`,
		string(to), utc(at), id, string(model.TransferPending),
	)
	return checkCAS(res, err, "ending transfer request")
}

// SupersedeTransferRequests cancels every other pending request for a vault,
// pointing them at the request that completed. Returns the cancelled IDs.
func SupersedeTransferRequests(ctx context.Context, q db.Querier, vaultID, completedID string, at time.Time) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id FROM transfer_requests WHERE vault_id = ? AND status = ? AND id <> ?`,
		vaultID, string(model.TransferPending), completedID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding pending transfer requests: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning transfer request id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding pending transfer requests: %w", err)
	}

	for _, id := range ids {
		res, err := q.ExecContext(ctx,
			`UPDATE transfer_requests SET status = ?, superseded_by = ?, ended_at = ?
			 WHERE id = ? AND status = ?`,
			string(model.TransferCancelled), completedID, utc(at), id, string(model.TransferPending),
		)
		if err := checkCAS(res, err, "superseding transfer request"); err != nil {
			return nil, err
		}
	}
	return ids, nil
}
