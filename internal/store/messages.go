package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/zaupnik/internal/db"
	"github.com/erazemk/zaupnik/internal/model"
)

// CreateMessage appends a message to a nominee's channel.
func CreateMessage(ctx context.Context, q db.Querier, vaultID, nomineeID, senderID, body string, at time.Time) (*model.Message, error) {
	m := &model.Message{
		ID:        uuid.NewString(),
		VaultID:   vaultID,
		NomineeID: nomineeID,
		SenderID:  senderID,
		Body:      body,
		CreatedAt: utc(at),
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO messages (id, vault_id, nominee_id, sender_id, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.VaultID, m.NomineeID, m.SenderID, m.Body, m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}
	return m, nil
}

// ListMessages returns a channel's messages in the order they were sent.
// A non-zero since limits the result to newer messages.
func ListMessages(ctx context.Context, q db.Querier, nomineeID string, since time.Time) ([]model.Message, error) {
	query := `SELECT id, vault_id, nominee_id, sender_id, body, created_at
		FROM messages WHERE nominee_id = ?`
	args := []any{nomineeID}

	if !since.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, utc(since))
	}
	query += ` ORDER BY created_at, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.VaultID, &m.NomineeID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
