package resolver

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, files map[string]string) *Resolver {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return New(fs, nil)
}

func TestLoadModule_Basic(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"math.zs": `export fn add(a: i32, b: i32) -> i32 { return a + b; }`,
	})
	m, err := r.LoadModule("math", "")
	require.NoError(t, err)
	require.Contains(t, m.Exports, "add")
	require.Equal(t, ExportFunction, m.Exports["add"].Kind)
}

// TestModuleCacheCoherence is spec.md §8's invariant: two LoadModule calls
// with the same canonical path return the same *Module.
func TestModuleCacheCoherence(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"math.zs": `export fn add(a: i32, b: i32) -> i32 { return a + b; }`,
	})
	m1, err := r.LoadModule("math", "")
	require.NoError(t, err)
	m2, err := r.LoadModule("math", "")
	require.NoError(t, err)
	require.Same(t, m1, m2)
}

// TestCycleDetection is spec.md §8 scenario 3: a imports b, b imports a.
// The resolver itself does not recurse into a module's own imports
// (spec.md §4.3's open question — that walk is the driver's job); what the
// resolver guarantees is that re-entering a path still on its loading
// stack fails with CircularDependency and leaves no partial entry cached.
// This white-box test pushes "a" onto the loading stack directly, the way
// the driver's recursive walk would have by the time it reaches "b"'s
// import of "a".
func TestCycleDetection(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"a.zs": `import { y } from "b";`,
		"b.zs": `import { x } from "a";`,
	})

	canonical, err := r.findFile("a", "")
	require.NoError(t, err)
	abs, err := filepath.Abs(canonical)
	require.NoError(t, err)

	r.mu.Lock()
	r.loading[abs] = true
	r.mu.Unlock()

	_, err = r.LoadModule("a", "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCircularDependency)

	r.mu.RLock()
	_, cached := r.modules[abs]
	r.mu.RUnlock()
	require.False(t, cached, "a failed load must not leave a partial module cached")
}

func TestLoadModule_NotFound(t *testing.T) {
	r := newTestResolver(t, nil)
	_, err := r.LoadModule("missing", "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrModuleNotFound)
}

func TestLoadModule_BuiltinVirtual(t *testing.T) {
	r := newTestResolver(t, nil)
	m, err := r.LoadModule("console", "")
	require.NoError(t, err)
	require.True(t, m.Virtual)
	require.Contains(t, m.Exports, "log")
}

func TestLoadModule_SearchPathOrder(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"stdlib/collections.zs": `export fn size(xs: [i32]) -> i32 { return 0; }`,
	})
	m, err := r.LoadModule("collections", "")
	require.NoError(t, err)
	require.Contains(t, m.Exports, "size")
}

func TestLoadModule_RelativeToBase(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"pkg/util.zs": `export fn helper() -> void {}`,
		"pkg/main.zs": `import { helper } from "util";`,
	})
	_, err := r.LoadModule("util", "pkg/main.zs")
	require.NoError(t, err)
}

func TestGetExport_SuffixMatch(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"examples/math.zs": `export fn add(a: i32, b: i32) -> i32 { return a + b; }`,
	})
	_, err := r.LoadModule("examples/math", "")
	require.NoError(t, err)
	_, ok := r.GetExport("math", "add")
	require.True(t, ok)
}
