package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/task-manager/internal/apperror"
)

// SetAvatar stores the encoded avatar on the user row. A nil png clears it.
func (db *DB) SetAvatar(ctx context.Context, userID string, png []byte) error {
	var value any
	if len(png) > 0 {
		value = png
	}

	result, err := db.q.ExecContext(ctx,
		`UPDATE users SET avatar = ? WHERE id = ?`,
		value, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting avatar for user %s: %w", userID, err)
	}
	return expectOneRow(result, "user", userID)
}

// GetAvatar returns apperror.ErrNotFound when the user does not exist or has
// no avatar; callers cannot tell the two apart.
func (db *DB) GetAvatar(ctx context.Context, userID string) ([]byte, error) {
	var png []byte
	err := db.q.QueryRowContext(ctx,
		`SELECT avatar FROM users WHERE id = ?`,
		userID,
	).Scan(&png)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("avatar", userID)
		}
		return nil, fmt.Errorf("sqlite: getting avatar for user %s: %w", userID, err)
	}
	if len(png) == 0 {
		return nil, apperror.NotFound("avatar", userID)
	}
	return png, nil
}
