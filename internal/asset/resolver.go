// Package asset resolves image sources for the engine and the exporters and
// serves uploaded images.
package asset

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/storage"
)

const defaultMaxBytes = 20 << 20

// Bitmap is a decoded image source.
type Bitmap struct {
	Image  image.Image
	Format string
	Width  int
	Height int
	Size   int64
}

// Resolver loads images from data URIs, http(s) URLs and store keys.
type Resolver struct {
	client   *http.Client
	store    storage.Store
	logger   *zap.Logger
	maxBytes int64
}

type Option func(*Resolver)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// WithStore lets the resolver read store paths such as "/assets/a.png".
func WithStore(s storage.Store) Option {
	return func(r *Resolver) { r.store = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

func WithMaxBytes(n int64) Option {
	return func(r *Resolver) { r.maxBytes = n }
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   zap.NewNop(),
		maxBytes: defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches and decodes src. Every failure wraps document.ErrImageLoad.
func (r *Resolver) Resolve(ctx context.Context, src string) (Bitmap, error) {
	data, err := r.fetch(ctx, src)
	if err != nil {
		return Bitmap{}, fmt.Errorf("%w: %s: %v", document.ErrImageLoad, abbreviate(src), err)
	}
	bm, err := Decode(data)
	if err != nil {
		return Bitmap{}, fmt.Errorf("%w: %s: %v", document.ErrImageLoad, abbreviate(src), err)
	}
	r.logger.Debug("image resolved",
		zap.String("src", abbreviate(src)),
		zap.String("format", bm.Format),
		zap.Int("width", bm.Width),
		zap.Int("height", bm.Height))
	return bm, nil
}

// Decode decodes png, jpeg, gif or webp data.
func Decode(data []byte) (Bitmap, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Bitmap{}, err
	}
	b := img.Bounds()
	return Bitmap{Image: img, Format: format, Width: b.Dx(), Height: b.Dy(), Size: int64(len(data))}, nil
}

func (r *Resolver) fetch(ctx context.Context, src string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch {
	case src == "":
		return nil, fmt.Errorf("empty source")
	case strings.HasPrefix(src, "data:"):
		return decodeDataURI(src)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return r.get(ctx, src)
	}

	if r.store == nil {
		return nil, fmt.Errorf("no store configured for %q", src)
	}
	data, _, err := r.store.Get(ctx, strings.TrimPrefix(src, "/"))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", r.maxBytes)
	}
	return data, nil
}

func (r *Resolver) get(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET: %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", r.maxBytes)
	}
	return data, nil
}

func decodeDataURI(src string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI")
	}
	if strings.HasSuffix(meta, ";base64") {
		return base64.StdEncoding.DecodeString(payload)
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func abbreviate(src string) string {
	if len(src) > 64 {
		return src[:64] + "..."
	}
	return src
}
