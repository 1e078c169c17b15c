package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/zaupnik/internal/db"
	"github.com/erazemk/zaupnik/internal/model"
)

const nomineeColumns = `id, vault_id, name, email, phone, invite_token, issued_by, user_id,
	status, created_at, accepted_at, ended_at`

func scanNominee(rs rowScanner) (*model.Nominee, error) {
	n := &model.Nominee{}
	var userID sql.NullString
	var status string
	if err := rs.Scan(&n.ID, &n.VaultID, &n.Name, &n.Email, &n.Phone, &n.InviteToken, &n.IssuedBy,
		&userID, &status, &n.CreatedAt, &n.AcceptedAt, &n.EndedAt); err != nil {
		return nil, err
	}
	st, err := model.ParseNomineeStatus(status)
	if err != nil {
		return nil, err
	}
	n.Status = st
	n.UserID = userID.String
	return n, nil
}

// CreateNominee inserts a nominee record. The caller supplies ID and token.
func CreateNominee(ctx context.Context, q db.Querier, n *model.Nominee) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO nominees (id, vault_id, name, email, phone, invite_token, issued_by, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.VaultID, n.Name, n.Email, n.Phone, n.InviteToken, n.IssuedBy, string(n.Status), utc(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("creating nominee: %w", err)
	}
	return nil
}

// GetNominee returns a nominee by ID.
func GetNominee(ctx context.Context, q db.Querier, id string) (*model.Nominee, error) {
	return getNominee(ctx, q, `id = ?`, id, false)
}

// LockNominee reads a nominee for update inside a transaction.
func LockNominee(ctx context.Context, q db.Querier, id string) (*model.Nominee, error) {
	return getNominee(ctx, q, `id = ?`, id, true)
}

// LockNomineeByToken reads the nominee holding an invite token for update.
func LockNomineeByToken(ctx context.Context, q db.Querier, token string) (*model.Nominee, error) {
	return getNominee(ctx, q, `invite_token = ?`, token, true)
}

func getNominee(ctx context.Context, q db.Querier, where string, arg any, lock bool) (*model.Nominee, error) {
	query := `SELECT ` + nomineeColumns + ` FROM nominees WHERE ` + where
	if lock {
		query += q.Dialect().ForUpdate()
	}
	n, err := scanNominee(q.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting nominee: %w", err)
	}
	return n, nil
}

// ListNominees returns a vault's nominees, oldest first. Inactive and revoked
// nominees are omitted unless includeEnded is set.
func ListNominees(ctx context.Context, q db.Querier, vaultID string, includeEnded bool) ([]model.Nominee, error) {
	query := `SELECT ` + nomineeColumns + ` FROM nominees WHERE vault_id = ?`
	args := []any{vaultID}

	if !includeEnded {
		query += ` AND status IN (` + placeholders(len(model.LiveNomineeStatuses)) + `)`
		for _, st := range model.LiveNomineeStatuses {
			args = append(args, string(st))
		}
	}
	query += ` ORDER BY created_at, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing nominees: %w", err)
	}
	defer rows.Close()

	var nominees []model.Nominee
	for rows.Next() {
		n, err := scanNominee(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning nominee: %w", err)
		}
		nominees = append(nominees, *n)
	}
	return nominees, rows.Err()
}

// AcceptNominee moves a pending nominee to accepted and records the redeeming
// user, if known. Returns model.ErrStorageConflict if the nominee is no longer
// pending.
func AcceptNominee(ctx context.Context, q db.Querier, id, userID string, at time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE nominees SET status = ?, accepted_at = ?, user_id = ?
		 WHERE id = ? AND status = ?`,
		string(model.NomineeAccepted), utc(at), nullString(userID), id, string(model.NomineePending),
	)
	return checkCAS(res, err, "accepting nominee")
}

// UpdateNomineeStatus moves a nominee from one status to another. Terminal
// targets stamp ended_at. Returns model.ErrInvalidState for transitions the
// state machine forbids and model.ErrStorageConflict if the nominee is no
// longer in the from status.
func UpdateNomineeStatus(ctx context.Context, q db.Querier, id string, from, to model.NomineeStatus, at time.Time) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: nominee %s -> %s", model.ErrInvalidState, from, to)
	}
	if to == model.NomineeAccepted {
		return AcceptNominee(ctx, q, id, "", at)
	}

	var endedAt *time.Time
	if to.Ended() {
		t := utc(at)
		endedAt = &t
	}

	res, err := q.ExecContext(ctx,
		`UPDATE nominees SET status = ?, ended_at = COALESCE(?, ended_at)
		 WHERE id = ? AND status = ?`,
		string(to), endedAt, id, string(from),
	)
	return checkCAS(res, err, "updating nominee status")
}

// DeactivateNominees forces every live nominee of a vault to inactive and
// returns their IDs.
func DeactivateNominees(ctx context.Context, q db.Querier, vaultID string, at time.Time) ([]string, error) {
	live, err := ListNominees(ctx, q, vaultID, false)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return nil, nil
	}

	args := []any{string(model.NomineeInactive), utc(at), vaultID}
	for _, st := range model.LiveNomineeStatuses {
		args = append(args, string(st))
	}
	res, err := q.ExecContext(ctx,
		`UPDATE nominees SET status = ?, ended_at = ?
		 WHERE vault_id = ? AND status IN (`+placeholders(len(model.LiveNomineeStatuses))+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("deactivating nominees: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("deactivating nominees: %w", err)
	}
	if int(n) != len(live) {
		return nil, fmt.Errorf("deactivating nominees: %w", model.ErrStorageConflict)
	}

	ids := make([]string, len(live))
	for i, nom := range live {
		ids[i] = nom.ID
	}
	return ids, nil
}

// checkCAS turns the result of a conditional single-row UPDATE into an error.
func checkCAS(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, model.ErrStorageConflict)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
