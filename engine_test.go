package embedload

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/charmbracelet/log"
	"github.com/risor-io/risor/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/embedload/internal/archive"
	"github.com/jward/embedload/internal/config"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(context.Background(), append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func scenarioFS() fstest.MapFS {
	return fstest.MapFS{
		"lib/foo.risor":                    {Data: []byte(`func name() { return "foo" }`)},
		"lib/bar.risor":                    {Data: []byte(`func name() { return "bar" }`)},
		"lib/baz.risor":                    {Data: []byte(`func name() { return "baz" }`)},
		"lib/shared.risor":                 {Data: []byte(`func origin() { return "fixed" }`)},
		"vendor/textkit/lib/textkit.risor": {Data: []byte(`func shout(s) { return s + "!" }`)},
		"vendor/textkit/lib/shared.risor":  {Data: []byte(`func origin() { return "discovered" }`)},
	}
}

func TestNew_EmbeddedDefaults(t *testing.T) {
	e := newTestEngine(t)

	entries := e.LoadPath()
	require.Len(t, entries, 3)
	assert.Equal(t, ":/", entries[0].Root)
	assert.Equal(t, ":/lib", entries[1].Root)
	assert.Equal(t, ":/vendor/textkit/lib", entries[2].Root)
	assert.True(t, entries[2].Discovered)
}

func TestRun_EmbeddedExample(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.Eval(context.Background(), ":/examples/hello", nil)
	require.NoError(t, err)
	s, ok := result.(*object.String)
	require.True(t, ok, "expected string, got %T", result)
	assert.Equal(t, "hello from the archive!", s.Value())

	assert.Contains(t, e.Loaded(), ":/lib/paths.risor")
	assert.Contains(t, e.Loaded(), ":/vendor/textkit/lib/textkit.risor")
}

// Scenario 1: a blocklisted name is satisfied without touching the loaded set.
func TestScenario_Blocklisted(t *testing.T) {
	e := newTestEngine(t, WithArchiveFS(scenarioFS()))

	res, err := e.Require(context.Background(), "openstudio/energyplus/find_energyplus")
	require.NoError(t, err)
	assert.Equal(t, AlreadySatisfied, res.Kind)
	assert.Empty(t, e.Loaded())
}

// Scenario 2: a native module runs its initializer once.
func TestScenario_NativeHookTwice(t *testing.T) {
	e := newTestEngine(t, WithArchiveFS(scenarioFS()))
	ctx := context.Background()

	first, err := e.Require(ctx, "json/ext/parser")
	require.NoError(t, err)
	assert.Equal(t, NativeHookInvoked, first.Kind)

	second, err := e.Require(ctx, "json/ext/parser")
	require.NoError(t, err)
	assert.Equal(t, AlreadySatisfied, second.Kind)
}

// Scenario 3: relative request from an archive file.
func TestScenario_RelativeRequest(t *testing.T) {
	e := newTestEngine(t, WithArchiveFS(scenarioFS()))
	ctx := context.Background()

	res, err := e.RequireRelative(ctx, "bar", ":/lib/foo.risor")
	require.NoError(t, err)
	assert.Equal(t, ArchiveContent, res.Kind)
	assert.Equal(t, ":/lib/bar.risor", res.ID)

	res, err = e.RequireRelative(ctx, "bar", ":/lib/foo.risor")
	require.NoError(t, err)
	assert.Equal(t, AlreadySatisfied, res.Kind)
}

// Scenario 4: a drive letter left in an archive path is stripped.
func TestScenario_DriveLetter(t *testing.T) {
	e := newTestEngine(t, WithArchiveFS(scenarioFS()))

	res, err := e.Require(context.Background(), ":/C:/lib/baz.risor")
	require.NoError(t, err)
	assert.Equal(t, ":/lib/baz.risor", res.ID)
}

// Scenario 5: a resource found nowhere reads as empty text.
func TestScenario_ResourceSoftMiss(t *testing.T) {
	e := newTestEngine(t, WithArchiveFS(scenarioFS()))

	assert.Equal(t, "", e.ReadResource("absent.csv", ":/lib/foo.risor"))
}

// Scenarios 1 and 2 as seen from a script.
func TestScenario_ScriptImportsBlocklistedAndNative(t *testing.T) {
	e := newTestEngine(t, WithArchiveFS(scenarioFS()))
	ctx := context.Background()

	script := `
import "openstudio/energyplus/find_energyplus" as fe
import "json/ext/parser" as parser
import "json/ext/generator" as generator
generator.marshal(parser.unmarshal("[1, 2]"))
`
	for range 2 {
		result, err := e.EvalSource(ctx, script, nil)
		require.NoError(t, err)
		s, ok := result.(*object.String)
		require.True(t, ok, "expected string, got %T", result)
		assert.Equal(t, "[1,2]", s.Value())
	}
	assert.Empty(t, e.Loaded())
}

func TestRequire_ThenScriptImport(t *testing.T) {
	e := newTestEngine(t, WithArchiveFS(scenarioFS()))
	ctx := context.Background()

	res, err := e.Require(ctx, "foo")
	require.NoError(t, err)
	require.Equal(t, ArchiveContent, res.Kind)

	result, err := e.EvalSource(ctx, "import foo\nfoo.name()", nil)
	require.NoError(t, err)
	s, ok := result.(*object.String)
	require.True(t, ok)
	assert.Equal(t, "foo", s.Value())
}

func TestImport_FixedRootWins(t *testing.T) {
	e := newTestEngine(t, WithArchiveFS(scenarioFS()))

	result, err := e.EvalSource(context.Background(), "import shared\nshared.origin()", nil)
	require.NoError(t, err)
	s, ok := result.(*object.String)
	require.True(t, ok)
	assert.Equal(t, "fixed", s.Value())
}

func TestRequire_NotFound(t *testing.T) {
	e := newTestEngine(t, WithArchiveFS(scenarioFS()))

	_, err := e.Require(context.Background(), "nowhere")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNew_SQLiteArchive(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bundle.db")
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(archive.Schema)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO entries (path, content) VALUES (?, ?), (?, ?)`,
		":/lib/greeter.risor", []byte(`func greet(n) { return "hi " + n }`),
		":/app/main.risor", []byte("import greeter\ngreeter.greet(\"sql\")"),
	)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	cfg := config.DefaultConfig()
	cfg.Archive = dbPath
	e := newTestEngine(t, WithConfig(cfg))

	result, err := e.Eval(context.Background(), ":/app/main", nil)
	require.NoError(t, err)
	s, ok := result.(*object.String)
	require.True(t, ok)
	assert.Equal(t, "hi sql", s.Value())
}

func TestNew_SQLiteArchiveMissing(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Archive = filepath.Join(t.TempDir(), "absent.db")

	_, err := New(context.Background(), WithConfig(cfg), WithLogger(quietLogger()))
	require.Error(t, err)
}

func TestNew_UnknownNativeModule(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NativeModules = []string{"yaml/ext/parser"}

	_, err := New(context.Background(), WithConfig(cfg), WithLogger(quietLogger()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yaml/ext/parser")
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Roots = nil

	_, err := New(context.Background(), WithConfig(cfg), WithLogger(quietLogger()))
	require.Error(t, err)
}

func TestNew_HostDirectoryRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "local.risor"),
		[]byte(`func where() { return "disk" }`), 0o644))

	cfg := config.DefaultConfig()
	cfg.Roots = append(cfg.Roots, dir)
	e := newTestEngine(t, WithConfig(cfg), WithArchiveFS(scenarioFS()))

	result, err := e.EvalSource(context.Background(), "import local\nlocal.where()", nil)
	require.NoError(t, err)
	s, ok := result.(*object.String)
	require.True(t, ok)
	assert.Equal(t, "disk", s.Value())
}
