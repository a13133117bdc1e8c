package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danblackadder/slumberhouse-api/internal/upload"
)

// readForm decodes a JSON or multipart body into v. For multipart requests
// an "image" file is stored under sub and its absolute URL returned; the
// URL is empty when no image was sent.
func readForm(w http.ResponseWriter, r *http.Request, uploads *upload.Store, maxBytes int64, sub string, v any) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if !isMultipart(r) {
		return "", decode(r, v)
	}
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", err
		}
		return "", errBadBody
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck
	if err := decodeMultipart(r, v); err != nil {
		return "", err
	}

	f, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", errBadBody
	}
	defer f.Close()
	p, err := uploads.Save(f, sub)
	if err != nil {
		return "", err
	}
	return upload.AbsoluteURL(r, p), nil
}

// replaceImage removes old once next has taken its place. Failures are
// logged; the record is already updated.
func replaceImage(r *http.Request, uploads *upload.Store, log *slog.Logger, old, next string) {
	if next == "" || old == "" || old == next {
		return
	}
	dropImage(r, uploads, log, old)
}

func dropImage(r *http.Request, uploads *upload.Store, log *slog.Logger, image string) {
	if image == "" {
		return
	}
	if err := uploads.Delete(image); err != nil {
		log.WarnContext(r.Context(), "delete image", slog.String("image", image), slog.String("error", err.Error()))
	}
}
