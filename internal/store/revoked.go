package store

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/zaupnik/internal/db"
)

// RevokeSession adds a login token's JTI to the revocation list.
func RevokeSession(ctx context.Context, q db.Querier, jti string, expiresAt time.Time) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, expires_at) VALUES (?, ?)
		 ON CONFLICT (jti) DO NOTHING`,
		jti, utc(expiresAt),
	)
	if err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}

	// Opportunistically clean up expired revocations.
	_, _ = q.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, utc(time.Now()),
	)

	return nil
}

// IsSessionRevoked checks if a login token's JTI has been revoked.
func IsSessionRevoked(ctx context.Context, q db.Querier, jti string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`, jti,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking session revocation: %w", err)
	}
	return count > 0, nil
}
