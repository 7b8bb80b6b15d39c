package loadpath

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapFinder map[string]string

func (m mapFinder) FindFirstByName(name string) (string, bool) {
	id, ok := m[name]
	return id, ok
}

func TestRegistry_FixedOrder(t *testing.T) {
	t.Parallel()

	r := New(Roots(":", ":/lib", "/opt/scripts")...)

	assert.Equal(t, []string{":/", ":/lib"}, r.Virtual())
	assert.Equal(t, []string{"/opt/scripts"}, r.Real())

	entries := r.Entries()
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Virtual)
	assert.False(t, entries[2].Virtual)
}

func TestRegistry_AppendDeduplicates(t *testing.T) {
	t.Parallel()

	r := New(Roots(":/lib")...)
	assert.False(t, r.Append(Entry{Root: ":/lib/"}))
	assert.False(t, r.Append(Entry{Root: ":lib"}))
	assert.True(t, r.Append(Entry{Root: ":/vendor"}))
	assert.Equal(t, []string{":/lib", ":/vendor"}, r.Virtual())
}

func TestRegistry_DiscoverAppendsAfterFixed(t *testing.T) {
	t.Parallel()

	r := New(Roots(":", ":/lib")...)
	f := mapFinder{
		"textkit.risor": ":/vendor/textkit/lib/textkit.risor",
	}

	missing, err := r.Discover(context.Background(), f, "textkit.risor", "absent.risor")
	require.NoError(t, err)
	assert.Equal(t, []string{"absent.risor"}, missing)

	assert.Equal(t, []string{":/", ":/lib", ":/vendor/textkit/lib"}, r.Virtual())
	entries := r.Entries()
	assert.True(t, entries[2].Discovered)
	assert.False(t, entries[0].Discovered)
}

func TestRegistry_DiscoverCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New()
	_, err := r.Discover(ctx, mapFinder{"a.risor": ":/a.risor"}, "a.risor")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.Entries())
}

func TestRegistry_EntriesIsCopy(t *testing.T) {
	t.Parallel()

	r := New(Roots(":/lib")...)
	entries := r.Entries()
	entries[0].Root = ":/mutated"
	assert.Equal(t, []string{":/lib"}, r.Virtual())
}
