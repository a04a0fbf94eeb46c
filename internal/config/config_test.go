package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestNewCompilerConfig_Defaults(t *testing.T) {
	c := NewCompilerConfig()
	require.Equal(t, []string{"stdlib", "examples", "."}, c.SearchPaths())
	require.Equal(t, 8192, c.HeapStart())
	require.Equal(t, "", c.OutputPath())
}

func TestCompilerConfig_WithMethodsClone(t *testing.T) {
	base := NewCompilerConfig()
	derived := base.WithHeapStart(16384).WithOutputPath("out.wat")

	require.Equal(t, 8192, base.HeapStart())
	require.Equal(t, 16384, derived.HeapStart())
	require.Equal(t, "", base.OutputPath())
	require.Equal(t, "out.wat", derived.OutputPath())
}

func TestCompilerConfig_WithSearchPaths(t *testing.T) {
	c := NewCompilerConfig().WithSearchPaths("vendor", ".")
	require.Equal(t, []string{"vendor", "."}, c.SearchPaths())
}

func TestCompilerConfig_WithFileSystem(t *testing.T) {
	mem := afero.NewMemMapFs()
	c := NewCompilerConfig().WithFileSystem(mem)
	require.Same(t, mem, c.FileSystem())
}

func TestLoadYAMLFile_MissingFileReturnsDefaults(t *testing.T) {
	c, err := LoadYAMLFile("/nonexistent/.zsconfig.yaml")
	require.NoError(t, err)
	require.Equal(t, 8192, c.HeapStart())
}
