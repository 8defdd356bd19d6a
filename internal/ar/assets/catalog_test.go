package assets

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/marker.place/internal/ar"
)

func TestCatalog_LoadModelReturnsFreshNodes(t *testing.T) {
	c := NewCatalog(DefaultModels(), nil)

	a, err := c.LoadModel("candle")
	require.NoError(t, err)
	b, err := c.LoadModel("candle")
	require.NoError(t, err)

	assert.Equal(t, ar.NodeModel, a.Kind)
	assert.Equal(t, "candle", a.Model)
	assert.Equal(t, "Models.scnassets/candle/candle.scn", a.Asset)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotSame(t, a, b)
}

func TestCatalog_UnknownModel(t *testing.T) {
	c := NewCatalog(DefaultModels(), nil)
	_, err := c.LoadModel("piano")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestCatalog_ChecksAssetFS(t *testing.T) {
	fsys := fstest.MapFS{
		"models/candle.scn": &fstest.MapFile{Data: []byte("scene")},
	}
	c := NewCatalog(map[string]string{
		"candle": "models/candle.scn",
		"lamp":   "models/lamp.scn",
	}, fsys)

	_, err := c.LoadModel("candle")
	require.NoError(t, err)

	_, err = c.LoadModel("lamp")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestCatalog_Names(t *testing.T) {
	c := NewCatalog(map[string]string{"b": "b", "a": "a"}, nil)
	assert.Equal(t, []string{"a", "b"}, c.Names())
}
