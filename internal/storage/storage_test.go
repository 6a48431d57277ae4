package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"exports/a.png", "exports/a.png", false},
		{"/assets//b.png", "assets/b.png", false},
		{"a/../b.png", "b.png", false},
		{"", "", true},
		{"../etc/passwd", "", true},
		{"..", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanKey(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType("a.png"))
	assert.Equal(t, "image/webp", ContentType("a.webp"))
	assert.Equal(t, "application/pdf", ContentType("a.pdf"))
	assert.Equal(t, "application/octet-stream", ContentType("a.unknownext"))
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "/files/")
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "exports/e1.png", []byte("png-bytes"), "image/png"))
	_, err = os.Stat(filepath.Join(dir, "exports", "e1.png"))
	require.NoError(t, err)

	data, ct, err := s.Get(ctx, "exports/e1.png")
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", ct)

	u, err := s.URL(ctx, "exports/e1.png")
	require.NoError(t, err)
	assert.Equal(t, "/files/exports/e1.png", u)

	require.NoError(t, s.Delete(ctx, "exports/e1.png"))
	_, _, err = s.Get(ctx, "exports/e1.png")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "exports/e1.png"), "deleting twice is fine")

	assert.Error(t, s.Put(ctx, "../escape", nil, ""))
}

func TestNewS3Store_Validation(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := NewS3Store(nil)
		assert.ErrorContains(t, err, "configuration is required")
	})
	t.Run("missing bucket", func(t *testing.T) {
		_, err := NewS3Store(&S3Config{AccessKey: "k", SecretKey: "s"})
		assert.ErrorContains(t, err, "bucket is required")
	})
	t.Run("missing access key", func(t *testing.T) {
		_, err := NewS3Store(&S3Config{Bucket: "b", SecretKey: "s"})
		assert.ErrorContains(t, err, "access key is required")
	})
	t.Run("missing secret key", func(t *testing.T) {
		_, err := NewS3Store(&S3Config{Bucket: "b", AccessKey: "k"})
		assert.ErrorContains(t, err, "secret key is required")
	})
}

func TestS3Store_PresignedURL(t *testing.T) {
	s, err := NewS3Store(&S3Config{
		Endpoint:     "localhost:9000",
		Bucket:       "exports",
		AccessKey:    "test-key",
		SecretKey:    "test-secret",
		UsePathStyle: true,
	}, WithPresignExpiration(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "exports", s.Bucket())
	assert.Equal(t, 5*time.Minute, s.presignExpiration)

	u, err := s.URL(context.Background(), "exports/e1.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://localhost:9000/exports/exports/e1.png?"))
	assert.Contains(t, u, "X-Amz-Expires=300")

	_, err = s.URL(context.Background(), "")
	assert.Error(t, err)
}
