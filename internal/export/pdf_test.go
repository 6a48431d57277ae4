package export

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luneo/canvas-engine/internal/document"
)

func TestComposeDocument(t *testing.T) {
	x := newExporter(t)
	wide := redSquareScene(t)
	tall := document.NewScene("tall", 100, 300)

	pages := []Page{
		{Scene: wide, Label: "Front"},
		{Scene: tall, Label: "Back é"},
	}
	opts := Options{Page: PageOptions{Format: PageA4, Margin: 10}}

	a, err := x.ComposeDocument(context.Background(), pages, opts)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(a, []byte("%PDF-")))
	assert.Contains(t, string(a), "/Count 2")

	b, err := x.ComposeDocument(context.Background(), pages, opts)
	require.NoError(t, err)
	assert.Equal(t, a, b, "same snapshot and options give the same bytes")

	jpg, err := x.ComposeDocument(context.Background(), pages[:1], Options{Format: FormatJPEG})
	require.NoError(t, err)
	assert.Contains(t, string(jpg), "/DCTDecode")
}

func TestComposeDocument_Errors(t *testing.T) {
	x := newExporter(t)

	_, err := x.ComposeDocument(context.Background(), nil, Options{})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = x.ComposeDocument(context.Background(), []Page{{}}, Options{})
	assert.ErrorIs(t, err, document.ErrEngineNotInitialized)

	_, err = x.ComposeDocument(context.Background(), []Page{{Scene: redSquareScene(t)}}, Options{Page: PageOptions{Format: "a0"}})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestLayoutPrint(t *testing.T) {
	mark := DefaultMarkLength * 25.4 / 72

	sheet, err := LayoutPrint(1000, 500, Options{})
	require.NoError(t, err)

	assert.InDelta(t, 264.583, sheet.Trim.Width, 1e-9)
	assert.InDelta(t, 132.2915, sheet.Trim.Height, 1e-9)
	assert.InDelta(t, 264.583+2*(3+mark), sheet.Width, 1e-9)
	assert.InDelta(t, 132.2915+2*(3+mark), sheet.Height, 1e-9)
	assert.InDelta(t, 3+mark, sheet.Trim.X, 1e-9)
	assert.InDelta(t, mark, sheet.Bleed.X, 1e-9)
	assert.InDelta(t, 264.583+6, sheet.Bleed.Width, 1e-9)

	require.Len(t, sheet.Marks, 8)
	first := sheet.Marks[0]
	assert.InDelta(t, 0, first.X1, 1e-9, "top-left mark starts at the sheet edge")
	assert.InDelta(t, mark, first.X2, 1e-9)
	assert.InDelta(t, sheet.Trim.Y, first.Y1, 1e-9)
	last := sheet.Marks[7]
	assert.InDelta(t, sheet.Height, last.Y2, 1e-9, "bottom-right mark ends at the sheet edge")

	noMarks := false
	bleed := 5.0
	plain, err := LayoutPrint(1000, 500, Options{CropMarks: &noMarks, Bleed: &bleed})
	require.NoError(t, err)
	assert.Empty(t, plain.Marks)
	assert.InDelta(t, 264.583+10, plain.Width, 1e-9)
	assert.InDelta(t, 5, plain.Trim.X, 1e-9)

	_, err = LayoutPrint(0, 500, Options{})
	assert.ErrorIs(t, err, document.ErrInvalidExportArea)
}

func TestPrint(t *testing.T) {
	x := newExporter(t)
	data, err := x.Print(context.Background(), redSquareScene(t), Options{PixelRatio: 1})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	_, err = x.Print(context.Background(), nil, Options{})
	assert.ErrorIs(t, err, document.ErrEngineNotInitialized)
}
