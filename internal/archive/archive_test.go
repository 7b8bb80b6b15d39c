package archive

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"lib/util.risor":         {Data: []byte("util")},
		"lib/sub/helper.risor":   {Data: []byte("helper")},
		"vendor/a/textkit.risor": {Data: []byte("kit a")},
		"vendor/b/textkit.risor": {Data: []byte("kit b")},
		"data/table.csv":         {Data: []byte("a,b\n1,2\n")},
	}
}

func TestFS_Exists(t *testing.T) {
	t.Parallel()
	a := NewFS(testFS())

	assert.True(t, a.Exists(":/lib/util.risor"))
	assert.True(t, a.Exists(":/lib/sub/../util.risor"))
	assert.False(t, a.Exists(":/lib"), "directories are not entries")
	assert.False(t, a.Exists(":/lib/missing.risor"))
	assert.False(t, a.Exists("lib/util.risor"), "real paths never exist in the archive")
	assert.False(t, a.Exists(":/"))
}

func TestFS_ReadText(t *testing.T) {
	t.Parallel()
	a := NewFS(testFS())

	data, err := a.ReadText(":/lib/sub/helper.risor")
	require.NoError(t, err)
	assert.Equal(t, "helper", string(data))

	_, err = a.ReadText(":/nope.risor")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestFS_FindFirstByName(t *testing.T) {
	t.Parallel()
	a := NewFS(testFS())

	id, ok := a.FindFirstByName("textkit.risor")
	require.True(t, ok)
	assert.Equal(t, ":/vendor/a/textkit.risor", id)

	_, ok = a.FindFirstByName("absent.risor")
	assert.False(t, ok)
}

func TestFS_FindFirstByName_SmallestIdentifier(t *testing.T) {
	t.Parallel()
	// The walk visits "a/b" before "a.b", but '.' sorts before '/'.
	a := NewFS(fstest.MapFS{
		"a/b/marker.risor": {Data: []byte("walk first")},
		"a.b/marker.risor": {Data: []byte("sorts first")},
	})

	id, ok := a.FindFirstByName("marker.risor")
	require.True(t, ok)
	assert.Equal(t, ":/a.b/marker.risor", id)
}

func TestFS_List(t *testing.T) {
	t.Parallel()
	a := NewFS(testFS())

	ids, err := a.List()
	require.NoError(t, err)
	assert.Len(t, ids, 5)
	assert.Contains(t, ids, ":/data/table.csv")
}
