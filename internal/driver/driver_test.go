package driver

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/zigscript-lang/zsc/internal/config"
)

func TestCompile_SingleFileIdentityFunction(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "add.zs", []byte(
		`export fn add(a: i32, b: i32) -> i32 { return a + b; }`), 0o644))

	cfg := config.NewCompilerConfig().WithFileSystem(fs)
	res, err := Compile("add.zs", cfg, nil)
	require.NoError(t, err)
	require.Equal(t, "add.wat", res.OutputPath)
	require.Contains(t, res.WAT, `(func $add (export "add")`)

	written, err := afero.ReadFile(fs, "add.wat")
	require.NoError(t, err)
	require.Equal(t, res.WAT, string(written))
}

func TestCompile_ExplicitOutputPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "add.zs", []byte(
		`export fn add(a: i32, b: i32) -> i32 { return a + b; }`), 0o644))

	cfg := config.NewCompilerConfig().WithFileSystem(fs).WithOutputPath("out/custom.wat")
	res, err := Compile("add.zs", cfg, nil)
	require.NoError(t, err)
	require.Equal(t, "out/custom.wat", res.OutputPath)

	exists, err := afero.Exists(fs, "out/custom.wat")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestCompile_HeapStartConfigReachesCodegen(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "arr.zs", []byte(
		`export fn f() -> i32 { let xs = [1, 2, 3]; return xs[0]; }`), 0o644))

	cfg := config.NewCompilerConfig().WithFileSystem(fs).WithHeapStart(65536)
	res, err := Compile("arr.zs", cfg, nil)
	require.NoError(t, err)
	require.Contains(t, res.WAT, "i32.const 65536")
	require.NotContains(t, res.WAT, "i32.const 8192")
}

func TestCompile_ImportedModuleIsInlined(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "math.zs", []byte(
		`export fn square(x: i32) -> i32 { return x * x; }`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "main.zs", []byte(`
import { square } from "math";
export fn main() -> i32 {
	return square(4);
}`), 0o644))

	cfg := config.NewCompilerConfig().WithFileSystem(fs)
	res, err := Compile("main.zs", cfg, nil)
	require.NoError(t, err)
	require.Contains(t, res.WAT, "$square")
}

func TestCompile_ParseErrorAbortsBeforeCheck(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "bad.zs", []byte(`fn (`), 0o644))

	cfg := config.NewCompilerConfig().WithFileSystem(fs)
	_, err := Compile("bad.zs", cfg, nil)
	require.Error(t, err)
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "parse", cerr.Phase)
}

func TestCompile_TypeErrorAbortsBeforeCodegen(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "bad.zs", []byte(
		`fn f() -> i32 { return "not a number"; }`), 0o644))

	cfg := config.NewCompilerConfig().WithFileSystem(fs)
	_, err := Compile("bad.zs", cfg, nil)
	require.Error(t, err)
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "check", cerr.Phase)
}

func TestCompile_MissingFileIsReadError(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := config.NewCompilerConfig().WithFileSystem(fs)
	_, err := Compile("missing.zs", cfg, nil)
	require.Error(t, err)
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "read", cerr.Phase)
}

func TestCompile_CircularImportIsResolveError(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "a.zs", []byte(
		`import { b } from "b"; export fn a() -> i32 { return 1; }`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "b.zs", []byte(
		`import { a } from "a"; export fn b() -> i32 { return 1; }`), 0o644))

	cfg := config.NewCompilerConfig().WithFileSystem(fs)
	_, err := Compile("a.zs", cfg, nil)
	require.Error(t, err)
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "resolve", cerr.Phase)
}
