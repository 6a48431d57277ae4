package moderation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luneo/canvas-engine/internal/document"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Héllo, Wörld!":   "hello world",
		"  CRÈME   brûlée": "creme brulee",
		"STRASSE":         "strasse",
		"a_b-c":           "a b c",
		"":                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestBannedIn(t *testing.T) {
	m := New(Policy{BannedWords: []string{"Spam", "bad word", "spam", ""}})

	assert.Equal(t, []string{"spam"}, m.BannedIn("Buy SPÄM now"))
	assert.Equal(t, []string{"spam"}, m.BannedIn("antispammer"), "substrings match")
	assert.Equal(t, []string{"bad word"}, m.BannedIn("what a BAD-word"))
	assert.Equal(t, []string{"bad word"}, m.BannedIn("badword"))
	assert.Empty(t, m.BannedIn("lovely mug"))
	assert.Empty(t, m.BannedIn("!!!"))
}

func textObject(id, content string) document.Object {
	return document.Object{
		ID: id, Type: document.ObjectTypeText, Visible: true, Opacity: 1,
		Transform: document.Transform{Width: 10, Height: 10, ScaleX: 1, ScaleY: 1},
		Text:      &document.TextData{Content: content},
	}
}

func TestReview(t *testing.T) {
	s := document.NewScene("scene_mod", 100, 100)
	require.NoError(t, s.Insert(textObject("obj_ok", "Happy birthday"), "", -1))
	require.NoError(t, s.Insert(textObject("obj_long", strings.Repeat("é", 21)), "", -1))
	require.NoError(t, s.Insert(textObject("obj_bad", "Free Spám"), "", -1))
	require.NoError(t, s.Insert(document.Object{
		ID: "obj_qr", Type: document.ObjectTypeQRCode, Visible: true,
		QRCode: &document.QRCodeData{Data: "https://spam.example"},
	}, "", -1))
	require.NoError(t, s.Insert(document.Object{
		ID: "obj_img", Type: document.ObjectTypeImage, Visible: true,
		Image: &document.ImageData{Src: "assets/x.png", Flagged: true},
	}, "", -1))

	res := New(Policy{BannedWords: []string{"spam"}, MaxTextLength: 20}).Review(s)
	require.False(t, res.Approved)

	got := map[string]string{}
	for _, is := range res.Issues {
		got[is.ObjectID] = is.Reason
	}
	assert.Equal(t, map[string]string{
		"obj_long": "text_too_long",
		"obj_bad":  "banned_word",
		"obj_qr":   "banned_word",
		"obj_img":  "flagged_image",
	}, got)

	err := res.Err()
	assert.ErrorIs(t, err, ErrBannedContent)
	assert.ErrorIs(t, err, document.ErrTextTooLong)
	assert.ErrorIs(t, err, ErrFlaggedImage)
}

func TestReview_Approved(t *testing.T) {
	s := document.NewScene("scene_mod", 100, 100)
	require.NoError(t, s.Insert(textObject("obj_ok", strings.Repeat("a", DefaultMaxTextLength)), "", -1))

	res := New(Policy{}).Review(s)
	assert.True(t, res.Approved)
	assert.NoError(t, res.Err())
	assert.True(t, New(Policy{}).Review(nil).Approved)
}
