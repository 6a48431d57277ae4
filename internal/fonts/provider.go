// Package fonts loads font files for text objects and measures text.
package fonts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// ErrFontLoad is returned when a font cannot be fetched or parsed.
var ErrFontLoad = errors.New("font load failed")

const maxFontBytes = 8 << 20

// Style selects a variant within a family.
type Style struct {
	Bold   bool
	Italic bool
}

// ParseStyle reads a CSS-like font style string such as "bold italic".
func ParseStyle(s string) Style {
	s = strings.ToLower(s)
	return Style{
		Bold:   strings.Contains(s, "bold") || strings.Contains(s, "700"),
		Italic: strings.Contains(s, "italic") || strings.Contains(s, "oblique"),
	}
}

type family struct {
	variants map[Style]*opentype.Font
}

func (f family) pick(st Style) *opentype.Font {
	if v, ok := f.variants[st]; ok {
		return v
	}
	if v, ok := f.variants[Style{Bold: st.Bold}]; ok {
		return v
	}
	return f.variants[Style{}]
}

// Provider keeps parsed fonts by family name. Unknown families fall back to
// the bundled Go fonts. Faces are created per call: an opentype face is not
// safe for concurrent use, the parsed fonts are.
type Provider struct {
	mu       sync.RWMutex
	families map[string]family
	fallback family
	client   *http.Client
	logger   *zap.Logger
}

type Option func(*Provider)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// NewProvider creates a provider with the Go font family registered as "Go".
func NewProvider(opts ...Option) (*Provider, error) {
	p := &Provider{
		families: make(map[string]family),
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	fb := family{variants: map[Style]*opentype.Font{}}
	for st, ttf := range map[Style][]byte{
		{}:                         goregular.TTF,
		{Bold: true}:               gobold.TTF,
		{Italic: true}:             goitalic.TTF,
		{Bold: true, Italic: true}: gobolditalic.TTF,
	} {
		f, err := opentype.Parse(ttf)
		if err != nil {
			return nil, fmt.Errorf("parse bundled font: %w", err)
		}
		fb.variants[st] = f
	}
	p.fallback = fb
	p.families["go"] = fb
	return p, nil
}

// Register parses data as the given variant of name.
func (p *Provider) Register(name string, st Style, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFontLoad, name, err)
	}
	key := normalize(name)

	p.mu.Lock()
	defer p.mu.Unlock()
	fam, ok := p.families[key]
	if !ok {
		fam = family{variants: map[Style]*opentype.Font{}}
		p.families[key] = fam
	}
	fam.variants[st] = f
	return nil
}

// Load makes name available. With an empty url it only succeeds if the family
// is already loaded. url may be http(s) or a data URI.
func (p *Provider) Load(ctx context.Context, name, url string) error {
	if url == "" {
		if p.IsLoaded(name) {
			return nil
		}
		return fmt.Errorf("%w: %s: no source", ErrFontLoad, name)
	}

	data, err := p.fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFontLoad, name, err)
	}
	if err := p.Register(name, Style{}, data); err != nil {
		return err
	}
	p.logger.Debug("font loaded", zap.String("family", name), zap.Int("bytes", len(data)))
	return nil
}

// IsLoaded reports whether name has been registered.
func (p *Provider) IsLoaded(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.families[normalize(name)]
	return ok
}

// Face returns a new face for name at size points (1pt = 1 design unit).
func (p *Provider) Face(name string, st Style, size float64) (font.Face, error) {
	p.mu.RLock()
	fam, ok := p.families[normalize(name)]
	p.mu.RUnlock()
	if !ok {
		fam = p.fallback
	}
	f := fam.pick(st)
	if f == nil {
		f = p.fallback.pick(st)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil, fmt.Errorf("%w: face %s %.1f: %v", ErrFontLoad, name, size, err)
	}
	return face, nil
}

// Measure returns the width of the widest line and the total height of text
// with lineHeight as a multiple of size.
func (p *Provider) Measure(text, name string, st Style, size, lineHeight float64) (float64, float64, error) {
	face, err := p.Face(name, st, size)
	if err != nil {
		return 0, 0, err
	}
	defer face.Close()

	if lineHeight <= 0 {
		lineHeight = 1
	}
	lines := strings.Split(text, "\n")
	var w float64
	for _, line := range lines {
		w = max(w, float64(font.MeasureString(face, line))/64)
	}
	return w, float64(len(lines)) * size * lineHeight, nil
}

func (p *Provider) fetch(ctx context.Context, url string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(url, "data:"); ok {
		_, payload, found := strings.Cut(rest, ";base64,")
		if !found {
			return nil, errors.New("only base64 data URIs are supported")
		}
		return base64.StdEncoding.DecodeString(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxFontBytes))
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
