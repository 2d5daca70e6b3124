package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"sync"
)

// MemoryUploader keeps objects in memory. Used by tests and local runs
// without R2 credentials.
type MemoryUploader struct {
	mu      sync.Mutex
	base    *url.URL
	objects map[string]memoryObject
}

type memoryObject struct {
	ContentType string
	Data        []byte
}

func NewMemoryUploader(publicBaseURL string) (*MemoryUploader, error) {
	base, err := url.Parse(publicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid public base URL %q: %w", publicBaseURL, err)
	}
	return &MemoryUploader{base: base, objects: make(map[string]memoryObject)}, nil
}

func (u *MemoryUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload body (key: %s): %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sum := md5.Sum(data)

	u.mu.Lock()
	u.objects[key] = memoryObject{ContentType: contentType, Data: bytes.Clone(data)}
	u.mu.Unlock()

	return &UploadResult{Key: key, Location: u.GetPublicURL(key), ETag: hex.EncodeToString(sum[:])}, nil
}

func (u *MemoryUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.objects, key)
	return nil
}

func (u *MemoryUploader) GetPublicURL(key string) string {
	return publicURL(u.base, key)
}

// Object returns a stored object, for assertions.
func (u *MemoryUploader) Object(key string) (contentType string, data []byte, ok bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	obj, ok := u.objects[key]
	return obj.ContentType, obj.Data, ok
}
