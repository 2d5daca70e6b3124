package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"
)

// MaxLogoSize caps uploaded team logos.
const MaxLogoSize = 2 << 20

var ErrUnsupportedContentType = errors.New("unsupported image type; use PNG, JPEG, WebP or SVG")

var logoExtensions = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

// TeamLogoKey builds the object key for a team logo. The timestamp makes each
// upload a new object so CDN caches never serve a stale image.
func TeamLogoKey(tournamentID, teamID int, contentType string, now time.Time) (string, error) {
	ext, ok := logoExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	name := fmt.Sprintf("%d%s", now.UnixNano(), ext)
	return path.Join("tournaments", fmt.Sprint(tournamentID), "teams", fmt.Sprint(teamID), name), nil
}
