package document

import (
	"github.com/luneo/canvas-engine/internal/geom"
	"github.com/luneo/canvas-engine/internal/typeid"
)

// NewSampleScene builds a t-shirt front with three print zones and a title
// text in the chest zone. It backs the playground design and fixtures.
func NewSampleScene() *Scene {
	s := NewScene(typeid.NewSceneID(), 600, 700)
	s.Background = Background{Color: "#f4f4f5"}

	chest := Zone{
		ID:     typeid.NewZoneID(),
		Name:   "Chest",
		Shape:  ZoneRect,
		X:      150,
		Y:      120,
		Width:  300,
		Height: 360,
		Constraints: &Constraints{
			MaxElements:  5,
			MaxWidth:     300,
			MaxHeight:    360,
			MinScale:     0.25,
			MaxScale:     4,
			AllowedTypes: []ObjectType{ObjectTypeText, ObjectTypeImage, ObjectTypeShape, ObjectTypePath},
			Required:     true,
			Text: &TextRules{
				MaxLength:   40,
				MinFontSize: 8,
				MaxFontSize: 120,
			},
			Image: &ImageRules{
				MaxFileSize:    10 << 20,
				AllowedFormats: []string{"png", "jpeg", "webp"},
			},
		},
		ClipContent: true,
		Visible:     true,
	}
	pocket := Zone{
		ID:      typeid.NewZoneID(),
		Name:    "Pocket",
		Shape:   ZoneCircle,
		CenterX: 420,
		CenterY: 160,
		Radius:  40,
		Constraints: &Constraints{
			MaxElements:   1,
			AllowRotation: Ptr(false),
			AllowedTypes:  []ObjectType{ObjectTypeText, ObjectTypeShape},
		},
		ClipContent: true,
		Visible:     true,
	}
	sleeve := Zone{
		ID:    typeid.NewZoneID(),
		Name:  "Sleeve",
		Shape: ZonePolygon,
		Points: []geom.Point{
			{X: 20, Y: 140}, {X: 110, Y: 110}, {X: 130, Y: 200}, {X: 40, Y: 230},
		},
		Constraints: &Constraints{MaxElements: 2},
		Visible:     true,
	}
	s.Zones = []Zone{chest, pocket, sleeve}

	title := Object{
		ID:        typeid.NewObjectID(),
		Type:      ObjectTypeText,
		Transform: Transform{X: 200, Y: 180, Width: 200, Height: 36, ScaleX: 1, ScaleY: 1},
		Opacity:   1,
		Draggable: true,
		Visible:   true,
		ZoneID:    chest.ID,
		Text: &TextData{
			Content:    "Your text",
			FontFamily: "Arial",
			FontSize:   30,
			FontStyle:  "normal",
			Align:      "center",
			Fill:       "#000000",
			LineHeight: 1.2,
		},
	}
	_ = s.Insert(title, "", -1)

	return s
}
