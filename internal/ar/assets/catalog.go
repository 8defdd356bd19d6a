// Package assets resolves model references to fresh scene nodes.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/banshee-data/marker.place/internal/ar"
)

// ErrModelNotFound is returned for model names with no asset.
var ErrModelNotFound = errors.New("model not found")

// Catalog maps model names to asset paths. When an asset filesystem is
// set, the asset must also exist there.
type Catalog struct {
	models map[string]string
	fsys   fs.FS
}

// NewCatalog creates a Catalog from a name to asset-path table. fsys may
// be nil to skip the existence check.
func NewCatalog(models map[string]string, fsys fs.FS) *Catalog {
	return &Catalog{models: maps.Clone(models), fsys: fsys}
}

// DefaultModels returns the bundled model table.
func DefaultModels() map[string]string {
	return map[string]string{
		"candle": "Models.scnassets/candle/candle.scn",
		"lamp":   "Models.scnassets/lamp/lamp.scn",
		"vase":   "Models.scnassets/vase/vase.scn",
		"chair":  "Models.scnassets/chair/chair.scn",
		"cup":    "Models.scnassets/cup/cup.scn",
	}
}

// LoadModel returns a new node for the named model.
func (c *Catalog) LoadModel(name string) (*ar.Node, error) {
	path, ok := c.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModelNotFound, name)
	}
	if c.fsys != nil {
		if _, err := fs.Stat(c.fsys, path); err != nil {
			return nil, fmt.Errorf("%w: %q (%s): %v", ErrModelNotFound, name, path, err)
		}
	}
	return &ar.Node{
		ID:    uuid.NewString(),
		Kind:  ar.NodeModel,
		Model: name,
		Asset: path,
	}, nil
}

// Names returns the model names in sorted order.
func (c *Catalog) Names() []string {
	return slices.Sorted(maps.Keys(c.models))
}
