// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Password, Tokens and Avatar carry `json:"-"` so they can never leak into a
// response body, whichever handler serializes the user. The tasks a user owns
// are not a field here: they are always looked up by owner id.
type User struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Age       int       `json:"age"`
	GitHubID  *int64    `json:"githubId,omitempty"` // set once the account is linked to GitHub
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Password string   `json:"-"` // bcrypt hash, never plaintext once persisted
	Tokens   []string `json:"-"` // active session tokens, oldest first
	Avatar   []byte   `json:"-"` // 250x250 PNG; only populated by avatar reads
}

// HasToken reports whether token is one of the user's active sessions.
func (u *User) HasToken(token string) bool {
	for _, t := range u.Tokens {
		if t == token {
			return true
		}
	}
	return false
}
