// Package storage holds the avatar blob backends. The default keeps the PNG
// in the users table; s3store keeps it in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"

	"github.com/sakif/task-manager/internal/apperror"
	"github.com/sakif/task-manager/internal/repository"
)

// DBStore stores avatars in the user's row through the repository.
type DBStore struct {
	repo repository.AvatarRepository
}

func NewDBStore(repo repository.AvatarRepository) *DBStore {
	return &DBStore{repo: repo}
}

func (s *DBStore) Put(ctx context.Context, userID string, png []byte) error {
	return s.repo.SetAvatar(ctx, userID, png)
}

func (s *DBStore) Get(ctx context.Context, userID string) ([]byte, error) {
	return s.repo.GetAvatar(ctx, userID)
}

// Delete clears the avatar. A user that no longer exists has nothing to
// clear, so NotFound is not an error here.
func (s *DBStore) Delete(ctx context.Context, userID string) error {
	err := s.repo.SetAvatar(ctx, userID, nil)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}
	return err
}

// External reports whether blobs live outside the database and must be
// removed separately when the user is deleted.
func (s *DBStore) External() bool { return false }
