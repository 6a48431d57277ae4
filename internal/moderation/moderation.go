// Package moderation screens customer content before a design is accepted:
// banned words in text and QR payloads, overlong text and images flagged as
// unsafe by the upload pipeline.
package moderation

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/luneo/canvas-engine/internal/document"
)

var (
	ErrBannedContent = errors.New("banned content")
	ErrFlaggedImage  = errors.New("image flagged as unsafe")
)

// DefaultMaxTextLength applies when a policy does not set one.
const DefaultMaxTextLength = 500

type Policy struct {
	BannedWords   []string `json:"bannedWords"`
	MaxTextLength int      `json:"maxTextLength"`
}

type Issue struct {
	ObjectID string `json:"objectId"`
	Kind     error  `json:"-"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail"`
}

type Result struct {
	Approved bool    `json:"approved"`
	Issues   []Issue `json:"issues"`
}

// Err joins every issue, or returns nil when approved.
func (r Result) Err() error {
	if r.Approved {
		return nil
	}
	errs := make([]error, 0, len(r.Issues))
	for _, is := range r.Issues {
		errs = append(errs, fmt.Errorf("%s: %w: %s", is.ObjectID, is.Kind, is.Detail))
	}
	return errors.Join(errs...)
}

type Moderator struct {
	banned []string
	maxLen int
}

func New(p Policy) *Moderator {
	m := &Moderator{maxLen: p.MaxTextLength}
	if m.maxLen <= 0 {
		m.maxLen = DefaultMaxTextLength
	}
	for _, w := range p.BannedWords {
		if n := Normalize(w); n != "" && !slices.Contains(m.banned, n) {
			m.banned = append(m.banned, n)
		}
	}
	slices.Sort(m.banned)
	return m
}

// Normalize case-folds s, strips accents and collapses everything that is
// not a letter or digit into single spaces.
func Normalize(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		cases.Fold(),
		norm.NFC,
	)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.Join(strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}), " ")
}

// BannedIn returns the banned terms found in text. Terms match anywhere in
// the normalized text, including inside longer words.
func (m *Moderator) BannedIn(text string) []string {
	n := Normalize(text)
	if n == "" {
		return nil
	}
	squashed := strings.ReplaceAll(n, " ", "")
	var hits []string
	for _, w := range m.banned {
		if strings.Contains(n, w) || strings.Contains(squashed, strings.ReplaceAll(w, " ", "")) {
			hits = append(hits, w)
		}
	}
	return hits
}

// Review checks every object of s in painter's order.
func (m *Moderator) Review(s *document.Scene) Result {
	r := Result{Approved: true}
	if s == nil {
		return r
	}
	add := func(id string, kind error, reason, detail string) {
		r.Approved = false
		r.Issues = append(r.Issues, Issue{ObjectID: id, Kind: kind, Reason: reason, Detail: detail})
	}
	s.Walk(func(obj document.Object, _ int) {
		switch {
		case obj.Text != nil:
			if n := utf8.RuneCountInString(obj.Text.Content); n > m.maxLen {
				add(obj.ID, document.ErrTextTooLong, "text_too_long", fmt.Sprintf("%d characters, limit %d", n, m.maxLen))
			}
			for _, w := range m.BannedIn(obj.Text.Content) {
				add(obj.ID, ErrBannedContent, "banned_word", w)
			}
		case obj.QRCode != nil:
			for _, w := range m.BannedIn(obj.QRCode.Data) {
				add(obj.ID, ErrBannedContent, "banned_word", w)
			}
		case obj.Image != nil:
			if obj.Image.Flagged {
				add(obj.ID, ErrFlaggedImage, "flagged_image", obj.Image.Src)
			}
		}
	})
	return r
}
