package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageSize(t *testing.T) {
	tests := []struct {
		name  string
		page  PageOptions
		w, h  float64
		wantW float64
		wantH float64
	}{
		{"a4 default portrait content", PageOptions{}, 500, 1000, 210, 297},
		{"a4 auto landscape content", PageOptions{Format: PageA4}, 1000, 500, 297, 210},
		{"a3 forced portrait", PageOptions{Format: PageA3, Orientation: OrientationPortrait}, 1000, 500, 297, 420},
		{"letter landscape", PageOptions{Format: PageLetter, Orientation: OrientationLandscape}, 10, 10, 279.4, 215.9},
		{"legal upper case", PageOptions{Format: "LEGAL", Orientation: OrientationPortrait}, 10, 10, 215.9, 355.6},
		{"custom kept as given", PageOptions{Format: PageCustom, Width: 100, Height: 50, Orientation: OrientationPortrait}, 10, 10, 100, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := PageSize(tt.page, tt.w, tt.h)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantW, w, 1e-9)
			assert.InDelta(t, tt.wantH, h, 1e-9)
		})
	}

	_, _, err := PageSize(PageOptions{Format: "a5"}, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidOptions)
	_, _, err = PageSize(PageOptions{Format: PageCustom}, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidOptions)
	_, _, err = PageSize(PageOptions{Orientation: "sideways"}, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestFitToPage_SceneOnA4(t *testing.T) {
	// 1000x500 scene, 10mm margins.
	t.Run("landscape", func(t *testing.T) {
		w, h, err := PageSize(PageOptions{Format: PageA4, Orientation: OrientationLandscape}, 1000, 500)
		require.NoError(t, err)
		fit, err := FitToPage(w, h, 10, 1000, 500)
		require.NoError(t, err)

		// min(277/1000, 190/500) = 0.277 -> 277 x 138.5
		assert.InDelta(t, 0.277, fit.Scale, 1e-12)
		assert.InDelta(t, 277, fit.Width, 1e-9)
		assert.InDelta(t, 138.5, fit.Height, 1e-9)
		assert.InDelta(t, 10, fit.X, 1e-9)
		assert.InDelta(t, 35.75, fit.Y, 1e-9)
	})

	t.Run("portrait", func(t *testing.T) {
		w, h, err := PageSize(PageOptions{Format: PageA4, Orientation: OrientationPortrait}, 1000, 500)
		require.NoError(t, err)
		fit, err := FitToPage(w, h, 10, 1000, 500)
		require.NoError(t, err)

		// min(190/1000, 277/500) = 0.19 -> 190 x 95
		assert.InDelta(t, 0.19, fit.Scale, 1e-12)
		assert.InDelta(t, 10, fit.X, 1e-9)
		assert.InDelta(t, 101, fit.Y, 1e-9)
	})

	t.Run("letter landscape", func(t *testing.T) {
		fit, err := FitToPage(279.4, 215.9, 10, 1000, 500)
		require.NoError(t, err)

		// min(259.4/1000, 195.9/500) = 0.2594 -> 259.4 x 129.7
		assert.InDelta(t, 0.2594, fit.Scale, 1e-12)
		assert.InDelta(t, 10, fit.X, 1e-9)
		assert.InDelta(t, 43.1, fit.Y, 1e-9)
	})

	t.Run("height bound", func(t *testing.T) {
		fit, err := FitToPage(297, 210, 0, 100, 400)
		require.NoError(t, err)
		assert.InDelta(t, 0.525, fit.Scale, 1e-12)
		assert.InDelta(t, (297-52.5)/2, fit.X, 1e-9)
		assert.InDelta(t, 0, fit.Y, 1e-9)
	})
}

func TestFitToPage_Errors(t *testing.T) {
	_, err := FitToPage(210, 297, 105, 10, 10)
	assert.ErrorIs(t, err, ErrInvalidOptions)
	_, err = FitToPage(210, 297, 10, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestLayoutPage_LabelBand(t *testing.T) {
	l, err := LayoutPage(PageOptions{Format: PageA4, Margin: 10}, 1000, 500, true)
	require.NoError(t, err)

	assert.Equal(t, 297.0, l.Width)
	assert.Equal(t, 210.0, l.Height)
	// fitted into 297x200, then moved below the 10mm label band
	assert.InDelta(t, 0.277, l.Image.Scale, 1e-12)
	assert.InDelta(t, 40.75, l.Image.Y, 1e-9)
	assert.InDelta(t, 30.75, l.Label.Y, 1e-9)
	assert.InDelta(t, LabelHeight, l.Label.Height, 1e-9)
	assert.InDelta(t, l.Image.X, l.Label.X, 1e-9)
	assert.InDelta(t, l.Image.Width, l.Label.Width, 1e-9)
}
