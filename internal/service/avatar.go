package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/task-manager/internal/apperror"
	"github.com/sakif/task-manager/internal/imaging"
	"github.com/sakif/task-manager/internal/model"
	"github.com/sakif/task-manager/internal/repository"
)

// MaxAvatarBytes is the largest upload accepted, before any processing.
const MaxAvatarBytes = 1_000_000

var avatarExtensions = []string{".jpg", ".jpeg", ".png"}

// AvatarStore is where normalized avatar PNGs are kept.
type AvatarStore interface {
	Put(ctx context.Context, userID string, png []byte) error
	Get(ctx context.Context, userID string) ([]byte, error)
	Delete(ctx context.Context, userID string) error
	// External is true when blobs live outside the database and need their
	// own cleanup once the user is gone.
	External() bool
}

type AvatarService struct {
	users  repository.UserRepository
	blobs  AvatarStore
	logger *slog.Logger
}

func NewAvatarService(users repository.UserRepository, blobs AvatarStore, logger *slog.Logger) *AvatarService {
	return &AvatarService{users: users, blobs: blobs, logger: logger}
}

// Upload checks the file name and size, normalizes the image to a 250×250
// PNG and replaces the user's avatar.
func (s *AvatarService) Upload(ctx context.Context, user *model.User, raw []byte, filename string) error {
	if !hasImageExtension(filename) {
		return apperror.UnsupportedFormat("Please upload an image document.")
	}
	if len(raw) > MaxAvatarBytes {
		return apperror.TooLarge(MaxAvatarBytes)
	}

	png, err := imaging.NormalizeAvatar(raw)
	if err != nil {
		if errors.Is(err, imaging.ErrUndecodable) {
			return apperror.UnsupportedFormat("Please upload an image document.")
		}
		return fmt.Errorf("service/avatar: processing upload: %w", err)
	}

	if err := s.blobs.Put(ctx, user.ID, png); err != nil {
		return fmt.Errorf("service/avatar: saving avatar of %s: %w", user.ID, err)
	}

	s.logger.Info("avatar updated", slog.String("userID", user.ID), slog.Int("bytes", len(png)))
	return nil
}

// Remove clears the avatar. Removing an absent avatar succeeds.
func (s *AvatarService) Remove(ctx context.Context, user *model.User) error {
	if err := s.blobs.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("service/avatar: removing avatar of %s: %w", user.ID, err)
	}
	return nil
}

// Fetch returns the stored PNG. A missing user and a user without an avatar
// are both NotFound.
func (s *AvatarService) Fetch(ctx context.Context, userID string) ([]byte, error) {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("service/avatar: fetching user %s: %w", userID, err)
	}

	png, err := s.blobs.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/avatar: fetching avatar of %s: %w", userID, err)
	}
	return png, nil
}

// hasImageExtension matches the extension case-sensitively, so "photo.PNG"
// is refused.
func hasImageExtension(filename string) bool {
	for _, ext := range avatarExtensions {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}
	return false
}
