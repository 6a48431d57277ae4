package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixScene   = "scene"
	PrefixObject  = "obj"
	PrefixGroup   = "grp"
	PrefixZone    = "zone"
	PrefixDesign  = "design"
	PrefixAsset   = "asset"
	PrefixExport  = "exp"
	PrefixSession = "sess"
	PrefixOp      = "op"
)

// New returns a sortable id: the prefix, then a UUIDv7 (millisecond timestamp
// followed by random bits) in base32.
func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewSceneID() string   { return New(PrefixScene) }
func NewObjectID() string  { return New(PrefixObject) }
func NewGroupID() string   { return New(PrefixGroup) }
func NewZoneID() string    { return New(PrefixZone) }
func NewDesignID() string  { return New(PrefixDesign) }
func NewAssetID() string   { return New(PrefixAsset) }
func NewExportID() string  { return New(PrefixExport) }
func NewSessionID() string { return New(PrefixSession) }
func NewOpID() string      { return New(PrefixOp) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
