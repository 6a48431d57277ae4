package document

import "slices"

// Clone returns a deep copy of the object. The copy shares no memory with o.
func (o Object) Clone() Object {
	c := o
	if o.Parent != nil {
		p := *o.Parent
		c.Parent = &p
	}
	c.Children = slices.Clone(o.Children)
	if o.Text != nil {
		t := *o.Text
		c.Text = &t
	}
	if o.Image != nil {
		img := *o.Image
		if o.Image.Crop != nil {
			crop := *o.Image.Crop
			img.Crop = &crop
		}
		c.Image = &img
	}
	if o.Shape != nil {
		sh := *o.Shape
		c.Shape = &sh
	}
	if o.Path != nil {
		p := *o.Path
		p.Points = slices.Clone(o.Path.Points)
		c.Path = &p
	}
	if o.QRCode != nil {
		q := *o.QRCode
		c.QRCode = &q
	}
	return c
}

// Clone returns a deep copy of the zone.
func (z Zone) Clone() Zone {
	c := z
	c.Points = slices.Clone(z.Points)
	if z.Constraints != nil {
		cons := *z.Constraints
		if z.Constraints.AllowRotation != nil {
			v := *z.Constraints.AllowRotation
			cons.AllowRotation = &v
		}
		cons.AllowedTypes = slices.Clone(z.Constraints.AllowedTypes)
		if z.Constraints.Text != nil {
			tr := *z.Constraints.Text
			tr.AllowedFonts = slices.Clone(tr.AllowedFonts)
			tr.AllowedColors = slices.Clone(tr.AllowedColors)
			cons.Text = &tr
		}
		if z.Constraints.Image != nil {
			ir := *z.Constraints.Image
			ir.AllowedFormats = slices.Clone(ir.AllowedFormats)
			cons.Image = &ir
		}
		c.Constraints = &cons
	}
	return c
}

// Clone returns a deep copy of the scene, suitable as an immutable snapshot.
func (s *Scene) Clone() *Scene {
	if s == nil {
		return nil
	}
	c := &Scene{
		ID:         s.ID,
		Width:      s.Width,
		Height:     s.Height,
		Background: s.Background,
		Children:   slices.Clone(s.Children),
		Objects:    make(map[string]Object, len(s.Objects)),
		Zones:      make([]Zone, len(s.Zones)),
	}
	if c.Children == nil {
		c.Children = []string{}
	}
	for id, obj := range s.Objects {
		c.Objects[id] = obj.Clone()
	}
	for i, z := range s.Zones {
		c.Zones[i] = z.Clone()
	}
	return c
}
