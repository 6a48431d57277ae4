package zone

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/luneo/canvas-engine/internal/document"
)

// Violation is one failed rule.
type Violation struct {
	Kind     error  `json:"-"`
	Code     string `json:"code"`
	ZoneID   string `json:"zoneId"`
	ObjectID string `json:"objectId,omitempty"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

// ValidationError carries every violation of a multi-rule check.
// errors.Is matches any contained kind.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return "zone validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() []error {
	out := make([]error, len(e.Violations))
	for i, v := range e.Violations {
		out[i] = v.Kind
	}
	return out
}

// Violations extracts the violation list from err, if any.
func Violations(err error) []Violation {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Violations
	}
	return nil
}

var codes = map[error]string{
	document.ErrContentTypeNotAllowed:   "content_type_not_allowed",
	document.ErrZoneCapacityExceeded:    "zone_capacity_exceeded",
	document.ErrSizeConstraintViolated:  "size_constraint_violated",
	document.ErrScaleConstraintViolated: "scale_constraint_violated",
	document.ErrRotationNotAllowed:      "rotation_not_allowed",
	document.ErrTextTooLong:             "text_too_long",
	document.ErrFontNotAllowed:          "font_not_allowed",
	document.ErrFontSizeOutOfRange:      "font_size_out_of_range",
	document.ErrColorNotAllowed:         "color_not_allowed",
	document.ErrImageTooLarge:           "image_too_large",
	document.ErrImageFormatNotAllowed:   "image_format_not_allowed",
	document.ErrImageDimensions:         "image_dimensions",
	document.ErrZoneEmpty:               "zone_empty",
	document.ErrZoneNotFound:            "zone_not_found",
}

type collector struct {
	zoneID   string
	objectID string
	out      []Violation
}

func (c *collector) add(kind error, field, format string, args ...any) {
	c.out = append(c.out, Violation{
		Kind:     kind,
		Code:     codes[kind],
		ZoneID:   c.zoneID,
		ObjectID: c.objectID,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *collector) err() error {
	if len(c.out) == 0 {
		return nil
	}
	return &ValidationError{Violations: c.out}
}

// ValidatePlacement checks obj against every constraint of z as if obj were
// placed in z, and returns all violations together. Checks run in order:
// content type, capacity, size, scale, rotation, then text and image rules.
func ValidatePlacement(s *document.Scene, z document.Zone, obj document.Object) error {
	c := &collector{zoneID: z.ID, objectID: obj.ID}
	checkType(c, z, obj)
	if cons := z.Constraints; cons != nil && cons.MaxElements > 0 {
		if n := s.CountInZone(z.ID, obj.ID) + 1; n > cons.MaxElements {
			c.add(document.ErrZoneCapacityExceeded, "maxElements",
				"zone %q allows at most %d element(s), placement would make %d", z.Name, cons.MaxElements, n)
		}
	}
	checkObject(c, z, obj)
	return c.err()
}

func checkType(c *collector, z document.Zone, obj document.Object) {
	cons := z.Constraints
	if cons == nil || len(cons.AllowedTypes) == 0 {
		return
	}
	switch obj.Type {
	case document.ObjectTypeQRCode, document.ObjectTypeGroup:
		return
	}
	if !slices.Contains(cons.AllowedTypes, obj.Type) {
		c.add(document.ErrContentTypeNotAllowed, "type", "%s is not allowed in zone %q", obj.Type, z.Name)
	}
}

// checkObject runs the per-object rules that do not depend on the zone count.
func checkObject(c *collector, z document.Zone, obj document.Object) {
	cons := z.Constraints
	if cons == nil {
		return
	}

	w, h := obj.Transform.DisplaySize()
	if (cons.MinWidth > 0 && w < cons.MinWidth) || (cons.MaxWidth > 0 && w > cons.MaxWidth) {
		c.add(document.ErrSizeConstraintViolated, "width", "width %g outside [%g, %g]", w, cons.MinWidth, limit(cons.MaxWidth))
	}
	if (cons.MinHeight > 0 && h < cons.MinHeight) || (cons.MaxHeight > 0 && h > cons.MaxHeight) {
		c.add(document.ErrSizeConstraintViolated, "height", "height %g outside [%g, %g]", h, cons.MinHeight, limit(cons.MaxHeight))
	}

	scale := obj.Transform.Scale()
	if (cons.MinScale > 0 && scale < cons.MinScale) || (cons.MaxScale > 0 && scale > cons.MaxScale) {
		c.add(document.ErrScaleConstraintViolated, "scale", "scale %g outside [%g, %g]", scale, cons.MinScale, limit(cons.MaxScale))
	}

	if !cons.RotationAllowed() && !isUpright(obj.Transform.Rotation) {
		c.add(document.ErrRotationNotAllowed, "rotation", "zone %q does not allow rotation", z.Name)
	}

	if obj.Text != nil && cons.Text != nil {
		checkText(c, cons.Text, obj.Text)
	}
	if obj.Image != nil && cons.Image != nil {
		checkImage(c, cons.Image, obj.Image)
	}
}

func checkText(c *collector, rules *document.TextRules, t *document.TextData) {
	if rules.MaxLength > 0 {
		if n := utf8.RuneCountInString(t.Content); n > rules.MaxLength {
			c.add(document.ErrTextTooLong, "text.content", "text length %d exceeds %d", n, rules.MaxLength)
		}
	}
	if family := strings.TrimSpace(t.FontFamily); family != "" && len(rules.AllowedFonts) > 0 {
		if !containsFold(rules.AllowedFonts, family) {
			c.add(document.ErrFontNotAllowed, "text.fontFamily", "font %q is not allowed", family)
		}
	}
	if (rules.MinFontSize > 0 && t.FontSize < rules.MinFontSize) || (rules.MaxFontSize > 0 && t.FontSize > rules.MaxFontSize) {
		c.add(document.ErrFontSizeOutOfRange, "text.fontSize", "font size %g outside [%g, %g]", t.FontSize, rules.MinFontSize, limit(rules.MaxFontSize))
	}
	if len(rules.AllowedColors) > 0 && t.Fill != "" && !containsFold(rules.AllowedColors, t.Fill) {
		c.add(document.ErrColorNotAllowed, "text.fill", "color %s is not in the allowed list", t.Fill)
	}
}

func checkImage(c *collector, rules *document.ImageRules, img *document.ImageData) {
	if rules.MaxFileSize > 0 && img.FileSize > rules.MaxFileSize {
		c.add(document.ErrImageTooLarge, "image.fileSize", "file size %d exceeds %d bytes", img.FileSize, rules.MaxFileSize)
	}
	if format := strings.ToLower(strings.TrimSpace(img.Format)); format != "" && len(rules.AllowedFormats) > 0 {
		ok := slices.ContainsFunc(rules.AllowedFormats, func(f string) bool {
			f = strings.ToLower(f)
			return strings.Contains(format, f) || strings.Contains(f, format)
		})
		if !ok {
			c.add(document.ErrImageFormatNotAllowed, "image.format", "format %q is not allowed", img.Format)
		}
	}
	w, h := img.NaturalWidth, img.NaturalHeight
	if (rules.MinWidth > 0 && w < rules.MinWidth) || (rules.MaxWidth > 0 && w > rules.MaxWidth) {
		c.add(document.ErrImageDimensions, "image.width", "image width %gpx outside [%g, %g]", w, rules.MinWidth, limit(rules.MaxWidth))
	}
	if (rules.MinHeight > 0 && h < rules.MinHeight) || (rules.MaxHeight > 0 && h > rules.MaxHeight) {
		c.add(document.ErrImageDimensions, "image.height", "image height %gpx outside [%g, %g]", h, rules.MinHeight, limit(rules.MaxHeight))
	}
}

// MissingZone reports objectID as assigned to a zone that does not exist.
func MissingZone(zoneID, objectID string) error {
	c := &collector{zoneID: zoneID, objectID: objectID}
	c.add(document.ErrZoneNotFound, "zoneId", "object assigned to unknown zone %s", zoneID)
	return c.err()
}

// Report is the outcome of ValidateDesign, keyed by zone id.
type Report struct {
	Valid bool                   `json:"valid"`
	Zones map[string][]Violation `json:"zones"`
}

// Err returns the report as a *ValidationError, or nil when valid.
func (r Report) Err() error {
	if r.Valid {
		return nil
	}
	var all []Violation
	for _, vs := range r.Zones {
		all = append(all, vs...)
	}
	slices.SortFunc(all, func(a, b Violation) int {
		return strings.Compare(a.ZoneID+a.ObjectID+a.Field, b.ZoneID+b.ObjectID+b.Field)
	})
	return &ValidationError{Violations: all}
}

// ValidateDesign checks a finished scene: required zones are filled, zone
// counts respect their limits, and every zone-assigned object passes its
// zone's rules.
func ValidateDesign(s *document.Scene) Report {
	r := Report{Valid: true, Zones: map[string][]Violation{}}

	byZone := map[string][]document.Object{}
	for _, id := range sortedIDs(s) {
		obj := s.Objects[id]
		if obj.ZoneID != "" {
			byZone[obj.ZoneID] = append(byZone[obj.ZoneID], obj)
		}
	}

	for _, z := range s.Zones {
		c := &collector{zoneID: z.ID}
		objs := byZone[z.ID]
		delete(byZone, z.ID)

		if cons := z.Constraints; cons != nil {
			minCount := cons.MinElements
			if cons.Required {
				minCount = max(minCount, 1)
			}
			if len(objs) < minCount {
				c.add(document.ErrZoneEmpty, "minElements", "zone %q needs at least %d element(s), has %d", z.Name, minCount, len(objs))
			}
			if cons.MaxElements > 0 && len(objs) > cons.MaxElements {
				c.add(document.ErrZoneCapacityExceeded, "maxElements", "zone %q allows at most %d element(s), has %d", z.Name, cons.MaxElements, len(objs))
			}
		}
		for _, obj := range objs {
			c.objectID = obj.ID
			checkType(c, z, obj)
			checkObject(c, z, obj)
		}
		if len(c.out) > 0 {
			r.Valid = false
			r.Zones[z.ID] = c.out
		}
	}

	for zoneID, objs := range byZone {
		c := &collector{zoneID: zoneID}
		for _, obj := range objs {
			c.objectID = obj.ID
			c.add(document.ErrZoneNotFound, "zoneId", "object assigned to unknown zone %s", zoneID)
		}
		r.Valid = false
		r.Zones[zoneID] = c.out
	}
	return r
}

func sortedIDs(s *document.Scene) []string {
	ids := make([]string, 0, len(s.Objects))
	for id := range s.Objects {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func containsFold(list []string, v string) bool {
	return slices.ContainsFunc(list, func(s string) bool { return strings.EqualFold(strings.TrimSpace(s), v) })
}

func isUpright(deg float64) bool {
	r := math.Mod(deg, 360)
	return math.Abs(r) < 1e-9 || math.Abs(math.Abs(r)-360) < 1e-9
}

func limit(v float64) float64 {
	if v <= 0 {
		return math.Inf(1)
	}
	return v
}
