package services

import (
	"context"
	"log"
	"path/filepath"
	"strings"
)

// ImageStore hosts uploaded images. utils.R2Store implements it.
type ImageStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, url string) error
}

// ImageUpload is an image file already read from the request.
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (u *ImageUpload) key(folder, id string) string {
	ext := strings.ToLower(filepath.Ext(u.Filename))
	if ext == "" {
		ext = ".jpg"
	}
	return folder + "/" + id + ext
}

func uploadImage(ctx context.Context, store ImageStore, img *ImageUpload, folder, id string) (string, error) {
	if img == nil || len(img.Data) == 0 {
		return "", nil
	}
	if store == nil {
		return "", &ValidationError{Field: "image", Reason: "image uploads are not enabled"}
	}
	url, err := store.Upload(ctx, img.key(folder, id), img.ContentType, img.Data)
	if err != nil {
		return "", &TransientStorageError{Op: "upload image", Err: err}
	}
	return url, nil
}

// deleteImages is best-effort; the rows are already gone.
func deleteImages(ctx context.Context, store ImageStore, urls ...string) {
	if store == nil {
		return
	}
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := store.Delete(ctx, url); err != nil {
			log.Printf("[Images] ⚠️ could not delete %s: %v", url, err)
		}
	}
}
