package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/task-manager/internal/apperror"
	"github.com/sakif/task-manager/internal/auth"
	"github.com/sakif/task-manager/internal/service"
)

// avatarField is the multipart form field carrying the image.
const avatarField = "avatar"

// multipartSlack leaves room for part headers and small form fields on top
// of the largest accepted file.
const multipartSlack = 64 << 10

type AvatarHandler struct {
	avatars *service.AvatarService
	logger  *slog.Logger
}

func NewAvatarHandler(avatars *service.AvatarService, logger *slog.Logger) *AvatarHandler {
	return &AvatarHandler{avatars: avatars, logger: logger}
}

// HandleUpload handles POST /users/me/avatar (multipart, field "avatar").
//
// The file part is read up to one byte past the limit, so the service can
// still tell an oversized upload from an acceptable one without the
// handler buffering the whole body.
func (h *AvatarHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, service.MaxAvatarBytes+multipartSlack)

	raw, filename, err := readAvatarPart(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.avatars.Upload(r.Context(), user, raw, filename); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, MessageResponse{Message: "Avatar received"})
}

// HandleDelete handles DELETE /users/me/avatar.
func (h *AvatarHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	if err := h.avatars.Remove(r.Context(), user); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, MessageResponse{Message: "Avatar deleted"})
}

// HandleGet handles GET /users/{id}/avatar. It is public.
func (h *AvatarHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	png, err := h.avatars.Fetch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.logger.Warn("writing avatar", slog.String("error", err.Error()))
	}
}

// readAvatarPart streams the multipart body to the avatar part and returns
// at most MaxAvatarBytes+1 bytes of it together with its file name.
func readAvatarPart(r *http.Request) ([]byte, string, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "", apperror.UnsupportedFormat("Please upload an image document.")
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, "", apperror.ValidationFailed(avatarField, "Please upload an image document.")
		}
		if err != nil {
			return nil, "", multipartError(err)
		}

		if part.FormName() != avatarField {
			_ = part.Close()
			continue
		}

		raw, err := readLimited(part)
		if err != nil {
			return nil, "", multipartError(err)
		}
		return raw, part.FileName(), nil
	}
}

func readLimited(part *multipart.Part) ([]byte, error) {
	defer part.Close()
	return io.ReadAll(io.LimitReader(part, service.MaxAvatarBytes+1))
}

func multipartError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperror.TooLarge(service.MaxAvatarBytes)
	}
	return apperror.ValidationFailed(avatarField, "Malformed multipart body")
}
