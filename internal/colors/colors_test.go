package colors

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#3b82f6", color.NRGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}},
		{"#FFF", color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}},
		{"#00000080", color.NRGBA{A: 0x80}},
		{"red", color.NRGBA{R: 0xff, A: 0xff}},
		{" Navy ", color.NRGBA{B: 0x80, A: 0xff}},
		{"transparent", color.NRGBA{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Parse("#12")
	assert.Error(t, err)
	_, err = Parse("not-a-color")
	assert.Error(t, err)
	assert.Equal(t, color.NRGBA{A: 1}, MustParse("bogus", color.NRGBA{A: 1}))
}

func TestHex(t *testing.T) {
	assert.Equal(t, "#1e40af", Hex(color.NRGBA{R: 0x1e, G: 0x40, B: 0xaf, A: 0xff}))
	assert.Equal(t, "#00000080", Hex(color.NRGBA{A: 0x80}))
}
