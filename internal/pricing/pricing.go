// Package pricing quotes a design from its content: a base price, a price per
// object, a surcharge per decorated zone and a price for the printed area.
package pricing

import (
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/geom"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

var thousand = decimal.NewFromInt(1000)

// Tier is a volume discount: orders of at least MinQuantity pay
// (100 - DiscountPercent)% of the unit price.
type Tier struct {
	MinQuantity     int             `json:"minQuantity"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
}

// Rates configure a product's price. Zero values mean "free".
type Rates struct {
	Currency string                                  `json:"currency"`
	Base     decimal.Decimal                         `json:"base"`
	Objects  map[document.ObjectType]decimal.Decimal `json:"objects"`
	// Zone is charged once for every zone holding at least one object.
	// ZoneOverrides replaces it for specific zone ids.
	Zone          decimal.Decimal            `json:"zone"`
	ZoneOverrides map[string]decimal.Decimal `json:"zoneOverrides,omitempty"`
	// AreaPer1000 is charged per 1000 square design units of printed content.
	AreaPer1000 decimal.Decimal `json:"areaPer1000"`
	Minimum     decimal.Decimal `json:"minimum"`
	Tiers       []Tier          `json:"tiers,omitempty"`
}

// DefaultRates is used when a product has no rates of its own.
func DefaultRates() Rates {
	return Rates{
		Currency: "EUR",
		Base:     decimal.RequireFromString("5.00"),
		Objects: map[document.ObjectType]decimal.Decimal{
			document.ObjectTypeText:   decimal.RequireFromString("1.50"),
			document.ObjectTypeImage:  decimal.RequireFromString("3.00"),
			document.ObjectTypeShape:  decimal.RequireFromString("0.50"),
			document.ObjectTypePath:   decimal.RequireFromString("0.50"),
			document.ObjectTypeQRCode: decimal.RequireFromString("1.00"),
		},
		Zone:        decimal.RequireFromString("2.00"),
		AreaPer1000: decimal.RequireFromString("0.02"),
		Minimum:     decimal.RequireFromString("8.00"),
		Tiers: []Tier{
			{MinQuantity: 10, DiscountPercent: decimal.NewFromInt(5)},
			{MinQuantity: 50, DiscountPercent: decimal.NewFromInt(10)},
			{MinQuantity: 100, DiscountPercent: decimal.NewFromInt(15)},
		},
	}
}

type Line struct {
	Code     string          `json:"code"`
	Label    string          `json:"label"`
	Quantity decimal.Decimal `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

// Quote is the price breakdown of one design.
type Quote struct {
	Currency        string          `json:"currency"`
	Lines           []Line          `json:"lines"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	MinimumApplied  bool            `json:"minimumApplied"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	Quantity        int             `json:"quantity"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	Total           decimal.Decimal `json:"total"`
}

// Quote prices quantity copies of the scene. Only visible leaf objects count;
// printed area is each object's bounds clipped to the canvas.
func (r Rates) Quote(s *document.Scene, quantity int) (Quote, error) {
	if s == nil {
		return Quote{}, fmt.Errorf("%w: nil scene", document.ErrInvalidScene)
	}
	if quantity <= 0 {
		return Quote{}, fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}

	counts := map[document.ObjectType]int{}
	zones := map[string]bool{}
	canvas := geom.Rect{Width: s.Width, Height: s.Height}
	area := 0.0
	s.Walk(func(obj document.Object, _ int) {
		if obj.Type == document.ObjectTypeGroup || !obj.Visible || !parentVisible(s, obj) {
			return
		}
		counts[obj.Type]++
		if obj.ZoneID != "" {
			zones[obj.ZoneID] = true
		}
		if b, ok := s.ObjectBounds(obj.ID); ok {
			clipped := b.Intersect(canvas)
			area += clipped.Width * clipped.Height
		}
	})

	q := Quote{Currency: r.Currency, Quantity: quantity}
	q.addLine("base", "Base price", decimal.NewFromInt(1), r.Base)

	for _, t := range objectOrder {
		n := counts[t]
		if n == 0 {
			continue
		}
		qty := decimal.NewFromInt(int64(n))
		q.addLine("object."+string(t), fmt.Sprintf("%s x%d", t, n), qty, r.Objects[t].Mul(qty))
	}

	for _, z := range s.Zones {
		if !zones[z.ID] {
			continue
		}
		price := r.Zone
		if override, ok := r.ZoneOverrides[z.ID]; ok {
			price = override
		}
		label := z.Name
		if label == "" {
			label = z.ID
		}
		q.addLine("zone."+z.ID, "Zone "+label, decimal.NewFromInt(1), price)
	}

	if area > 0 {
		units := decimal.NewFromFloat(area).Div(thousand).Round(3)
		q.addLine("area", "Printed area", units, r.AreaPer1000.Mul(units))
	}

	unit := q.Subtotal
	if unit.LessThan(r.Minimum) {
		unit = r.Minimum
		q.MinimumApplied = true
	}
	q.DiscountPercent = r.discount(quantity)
	factor := decimal.NewFromInt(100).Sub(q.DiscountPercent).Div(decimal.NewFromInt(100))
	q.UnitPrice = unit.Mul(factor).Round(2)
	q.Total = q.UnitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	return q, nil
}

var objectOrder = []document.ObjectType{
	document.ObjectTypeText,
	document.ObjectTypeImage,
	document.ObjectTypeShape,
	document.ObjectTypePath,
	document.ObjectTypeQRCode,
}

func (q *Quote) addLine(code, label string, qty, amount decimal.Decimal) {
	amount = amount.Round(2)
	q.Lines = append(q.Lines, Line{Code: code, Label: label, Quantity: qty, Amount: amount})
	q.Subtotal = q.Subtotal.Add(amount)
}

// discount picks the highest tier reached by quantity.
func (r Rates) discount(quantity int) decimal.Decimal {
	tiers := slices.Clone(r.Tiers)
	slices.SortFunc(tiers, func(a, b Tier) int { return a.MinQuantity - b.MinQuantity })
	pct := decimal.Zero
	for _, t := range tiers {
		if quantity >= t.MinQuantity {
			pct = t.DiscountPercent
		}
	}
	return pct
}

func parentVisible(s *document.Scene, obj document.Object) bool {
	if obj.Parent == nil {
		return true
	}
	parent, ok := s.Objects[*obj.Parent]
	return !ok || parent.Visible
}
