// Package config implements CompilerConfig, a functional-options/clone
// builder modeled on wazero's RuntimeConfig (config.go), with an optional
// seed from a .zsconfig.yaml file.
package config

import (
	"os"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// defaultSearchPaths matches the resolver's own default of spec.md §4.3,
// duplicated here so a CompilerConfig can be constructed and inspected
// before a Resolver exists.
var defaultSearchPaths = []string{"stdlib", "examples", "."}

// CompilerConfig controls driver behavior: where the resolver looks for
// modules, where the bump allocator's heap starts, where output is
// written, and which filesystem backs source reads.
type CompilerConfig struct {
	searchPaths []string
	heapStart   int
	outputPath  string
	fs          afero.Fs
}

// engineLessConfig holds the defaults every clone starts from.
var engineLessConfig = &CompilerConfig{
	searchPaths: defaultSearchPaths,
	heapStart:   8192,
	fs:          afero.NewOsFs(),
}

// NewCompilerConfig returns a config with spec.md's defaults: the
// ["stdlib", "examples", "."] search path order, heap start 8192, no
// explicit output path (the driver derives one), and the real OS
// filesystem.
func NewCompilerConfig() *CompilerConfig {
	return engineLessConfig.clone()
}

func (c *CompilerConfig) clone() *CompilerConfig {
	paths := make([]string, len(c.searchPaths))
	copy(paths, c.searchPaths)
	return &CompilerConfig{
		searchPaths: paths,
		heapStart:   c.heapStart,
		outputPath:  c.outputPath,
		fs:          c.fs,
	}
}

// WithSearchPaths replaces the resolver search path order.
func (c *CompilerConfig) WithSearchPaths(paths ...string) *CompilerConfig {
	ret := c.clone()
	ret.searchPaths = append([]string{}, paths...)
	return ret
}

// WithHeapStart overrides the bump allocator's first address. Must stay
// above the reserved null-check and string-scratch regions (0..8191)
// for the codegen invariant in spec.md §8 ("monotone addresses ... >=
// 8192") to mean anything; this is not itself enforced here.
func (c *CompilerConfig) WithHeapStart(addr int) *CompilerConfig {
	ret := c.clone()
	ret.heapStart = addr
	return ret
}

// WithOutputPath overrides the driver's default output path derivation.
func (c *CompilerConfig) WithOutputPath(path string) *CompilerConfig {
	ret := c.clone()
	ret.outputPath = path
	return ret
}

// WithFileSystem swaps the afero.Fs backing all resolver reads, letting
// tests run against afero.NewMemMapFs() with no real I/O.
func (c *CompilerConfig) WithFileSystem(fs afero.Fs) *CompilerConfig {
	ret := c.clone()
	ret.fs = fs
	return ret
}

func (c *CompilerConfig) SearchPaths() []string { return c.searchPaths }
func (c *CompilerConfig) HeapStart() int        { return c.heapStart }
func (c *CompilerConfig) OutputPath() string    { return c.outputPath }
func (c *CompilerConfig) FileSystem() afero.Fs  { return c.fs }

// zsConfigFile is the on-disk shape of an optional .zsconfig.yaml. This is
// an ambient developer convenience, not the package-manifest format of
// spec.md §6 (which stays JSON and is out of scope for this pipeline).
type zsConfigFile struct {
	SearchPaths []string `yaml:"searchPaths"`
	HeapStart   int      `yaml:"heapStart"`
	OutputPath  string   `yaml:"outputPath"`
}

// LoadYAMLFile seeds a CompilerConfig from a .zsconfig.yaml at path, on
// top of NewCompilerConfig's defaults. A missing file is not an error —
// the config file is optional.
func LoadYAMLFile(path string) (*CompilerConfig, error) {
	cfg := NewCompilerConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	var file zsConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.SearchPaths) > 0 {
		cfg = cfg.WithSearchPaths(file.SearchPaths...)
	}
	if file.HeapStart != 0 {
		cfg = cfg.WithHeapStart(file.HeapStart)
	}
	if file.OutputPath != "" {
		cfg = cfg.WithOutputPath(file.OutputPath)
	}
	return cfg, nil
}
