package sqlite

import (
	"context"
	"fmt"
	"time"
)

// AddToken appends a session token to the user's collection.
func (db *DB) AddToken(ctx context.Context, userID, token string) error {
	_, err := db.q.ExecContext(ctx,
		`INSERT INTO user_tokens (user_id, token, created_at) VALUES (?, ?, ?)`,
		userID, token, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding token for user %s: %w", userID, err)
	}
	return nil
}

// RemoveToken deletes exactly one session. Removing a token that is not
// there is not an error: logout is idempotent.
func (db *DB) RemoveToken(ctx context.Context, userID, token string) error {
	_, err := db.q.ExecContext(ctx,
		`DELETE FROM user_tokens WHERE user_id = ? AND token = ?`,
		userID, token,
	)
	if err != nil {
		return fmt.Errorf("sqlite: removing token for user %s: %w", userID, err)
	}
	return nil
}

func (db *DB) RemoveAllTokens(ctx context.Context, userID string) error {
	_, err := db.q.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("sqlite: removing tokens for user %s: %w", userID, err)
	}
	return nil
}

// listTokens returns the user's tokens oldest first.
func (db *DB) listTokens(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT token FROM user_tokens WHERE user_id = ? ORDER BY seq`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tokens for user %s: %w", userID, err)
	}
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("sqlite: scanning token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tokens: %w", err)
	}

	return tokens, nil
}
