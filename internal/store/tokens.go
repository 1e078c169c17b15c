package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/zaupnik/internal/db"
	"github.com/erazemk/zaupnik/internal/model"
)

const tokenColumns = `token, kind, vault_id, subject_id, issued_by, created_at, consumed_at, consumed_by`

func scanToken(rs rowScanner) (*model.CapabilityToken, error) {
	t := &model.CapabilityToken{}
	var kind string
	var consumedBy sql.NullString
	if err := rs.Scan(&t.Token, &kind, &t.VaultID, &t.SubjectID, &t.IssuedBy,
		&t.CreatedAt, &t.ConsumedAt, &consumedBy); err != nil {
		return nil, err
	}
	t.Kind = model.TokenKind(kind)
	t.ConsumedBy = consumedBy.String
	return t, nil
}

// CreateToken records a freshly issued capability token.
func CreateToken(ctx context.Context, q db.Querier, t *model.CapabilityToken) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO capability_tokens (token, kind, vault_id, subject_id, issued_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.Token, string(t.Kind), t.VaultID, t.SubjectID, t.IssuedBy, utc(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("creating token: %w", err)
	}
	return nil
}

// GetToken returns a token record, or nil if the token was never issued.
func GetToken(ctx context.Context, q db.Querier, token string) (*model.CapabilityToken, error) {
	return getToken(ctx, q, token, false)
}

// LockToken reads a token record for update inside a transaction.
func LockToken(ctx context.Context, q db.Querier, token string) (*model.CapabilityToken, error) {
	return getToken(ctx, q, token, true)
}

func getToken(ctx context.Context, q db.Querier, token string, lock bool) (*model.CapabilityToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM capability_tokens WHERE token = ?`
	if lock {
		query += q.Dialect().ForUpdate()
	}
	t, err := scanToken(q.QueryRowContext(ctx, query, token))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}
	return t, nil
}

// ConsumeToken marks a token redeemed. Exactly one caller can consume a given
// token; every other caller gets model.ErrStorageConflict.
func ConsumeToken(ctx context.Context, q db.Querier, token, consumedBy string, at time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE capability_tokens SET consumed_at = ?, consumed_by = ?
		 WHERE token = ? AND consumed_at IS NULL`,
		utc(at), nullString(consumedBy), token,
	)
	return checkCAS(res, err, "consuming token")
}
