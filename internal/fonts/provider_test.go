package fonts

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gomono"
)

func TestProvider_Fallback(t *testing.T) {
	p, err := NewProvider()
	require.NoError(t, err)

	assert.True(t, p.IsLoaded("Go"))
	assert.False(t, p.IsLoaded("Arial"))

	face, err := p.Face("Arial", Style{}, 30)
	require.NoError(t, err)
	defer face.Close()
	assert.Greater(t, face.Metrics().Height.Ceil(), 0)
}

func TestProvider_LoadFromHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mono.ttf" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(gomono.TTF)
	}))
	defer srv.Close()

	p, err := NewProvider()
	require.NoError(t, err)

	require.NoError(t, p.Load(context.Background(), "Mono", srv.URL+"/mono.ttf"))
	assert.True(t, p.IsLoaded("mono"))
	assert.NoError(t, p.Load(context.Background(), "MONO", ""))

	err = p.Load(context.Background(), "Missing", srv.URL+"/missing.ttf")
	assert.ErrorIs(t, err, ErrFontLoad)
	assert.False(t, p.IsLoaded("Missing"))

	assert.ErrorIs(t, p.Load(context.Background(), "Other", ""), ErrFontLoad)
}

func TestProvider_LoadDataURIAndMeasure(t *testing.T) {
	p, err := NewProvider()
	require.NoError(t, err)

	uri := "data:font/ttf;base64," + base64.StdEncoding.EncodeToString(gomono.TTF)
	require.NoError(t, p.Load(context.Background(), "Mono", uri))

	w1, h1, err := p.Measure("abcd", "Mono", Style{}, 20, 1.2)
	require.NoError(t, err)
	w2, h2, err := p.Measure("abcdabcd\nab", "Mono", Style{}, 20, 1.2)
	require.NoError(t, err)

	assert.InDelta(t, 2*w1, w2, 0.5, "monospace width doubles")
	assert.InDelta(t, 24, h1, 1e-9)
	assert.InDelta(t, 48, h2, 1e-9)

	err = p.Register("Broken", Style{}, []byte("not a font"))
	assert.ErrorIs(t, err, ErrFontLoad)
}

func TestParseStyle(t *testing.T) {
	assert.Equal(t, Style{Bold: true, Italic: true}, ParseStyle("italic bold"))
	assert.Equal(t, Style{Bold: true}, ParseStyle("700"))
	assert.Equal(t, Style{}, ParseStyle("normal"))
}
