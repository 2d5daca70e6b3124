package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeamLogoKey(t *testing.T) {
	now := time.Unix(1700000000, 0)

	key, err := TeamLogoKey(3, 14, "image/png", now)
	require.NoError(t, err)
	assert.Equal(t, "tournaments/3/teams/14/1700000000000000000.png", key)

	_, err = TeamLogoKey(3, 14, "application/pdf", now)
	assert.ErrorIs(t, err, ErrUnsupportedContentType)
}

func TestPublicURL(t *testing.T) {
	tests := []struct {
		base string
		key  string
		want string
	}{
		{"https://cdn.example.com", "a/b.png", "https://cdn.example.com/a/b.png"},
		{"https://cdn.example.com/", "/a/b.png", "https://cdn.example.com/a/b.png"},
		{"https://cdn.example.com/logos", "a.png", "https://cdn.example.com/logos/a.png"},
		{"https://cdn.example.com", "", ""},
	}
	for _, tt := range tests {
		base, err := url.Parse(tt.base)
		require.NoError(t, err)
		assert.Equal(t, tt.want, publicURL(base, tt.key), tt.base+" + "+tt.key)
	}
}

func TestMemoryUploader(t *testing.T) {
	u, err := NewMemoryUploader("https://cdn.example.com")
	require.NoError(t, err)

	res, err := u.Upload(context.Background(), "k.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/k.png", res.Location)
	assert.NotEmpty(t, res.ETag)

	ct, data, ok := u.Object("k.png")
	require.True(t, ok)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, u.Delete(context.Background(), "k.png"))
	_, _, ok = u.Object("k.png")
	assert.False(t, ok)
}

func TestNewCloudflareR2Uploader_RequiresConfig(t *testing.T) {
	_, err := NewCloudflareR2Uploader(context.Background(), CloudflareR2UploaderConfig{AccountID: "x"})
	assert.Error(t, err)
}
