package config

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/importer"
)

// AssetDefinitionExt is the extension of asset definition files.
const AssetDefinitionExt = ".toml"

// AssetConfig is the definition of one mesh asset, stored next to the
// model it points at.
//
//	name = "hero"
//	mesh_file = "models/hero.gltf"
type AssetConfig struct {
	Name     string `toml:"name"`
	MeshFile string `toml:"mesh_file"`
}

// ImportConfig toggles the import post-process steps.
type ImportConfig struct {
	Triangulate      bool `toml:"triangulate"`
	FlipWindingOrder bool `toml:"flip_winding_order"`
	FlipUVs          bool `toml:"flip_uvs"`
	CalcTangentSpace bool `toml:"calc_tangent_space"`
	// Accepted so that Validate can reject it with a clear message.
	FindInstances bool `toml:"find_instances"`
}

// PipelineConfig drives the asset manager and the CLI.
type PipelineConfig struct {
	CacheDir string `toml:"cache_dir"`
	AssetDir string `toml:"asset_dir"`
	LogLevel string `toml:"log_level"`
	// Load assets on the job system instead of inline.
	BackgroundImport bool `toml:"background_import"`
	ImportWorkers    int  `toml:"import_workers"`
	// Reimport assets when their source file changes.
	WatchSources bool         `toml:"watch_sources"`
	Import       ImportConfig `toml:"import"`
}

func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		CacheDir:      "cache",
		AssetDir:      "assets",
		LogLevel:      "info",
		ImportWorkers: runtime.NumCPU(),
		Import: ImportConfig{
			Triangulate:      true,
			FlipWindingOrder: true,
			FlipUVs:          true,
			CalcTangentSpace: true,
		},
	}
}

// LoadPipelineConfig reads a pipeline file over the defaults. Unknown keys
// are an error.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read pipeline config '%s'", path)
	}
	return ParsePipelineConfig(buf)
}

func ParsePipelineConfig(buf []byte) (*PipelineConfig, error) {
	cfg := DefaultPipelineConfig()
	dec := toml.NewDecoder(bytes.NewReader(buf))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, describe(err, "pipeline config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *PipelineConfig) Validate() error {
	if c.Import.FindInstances {
		return errors.Wrap(core.ErrInvalidImportFlags, "find_instances breaks per-mesh bone indices")
	}
	if c.ImportWorkers < 0 {
		return errors.Errorf("import_workers must not be negative, got %d", c.ImportWorkers)
	}
	if c.ImportWorkers == 0 {
		c.ImportWorkers = 1
	}
	if _, err := core.ParseLogLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "log_level '%s'", c.LogLevel)
	}
	return nil
}

// ImportFlags converts the import section into importer flags.
func (c *PipelineConfig) ImportFlags() importer.Flags {
	var f importer.Flags
	if c.Import.Triangulate {
		f |= importer.FlagTriangulate
	}
	if c.Import.FlipWindingOrder {
		f |= importer.FlagFlipWindingOrder
	}
	if c.Import.FlipUVs {
		f |= importer.FlagFlipUVs
	}
	if c.Import.CalcTangentSpace {
		f |= importer.FlagCalcTangentSpace
	}
	return f
}

// LoadAssetConfig reads an asset definition. A relative mesh_file is
// resolved against the definition's directory.
func LoadAssetConfig(path string) (*AssetConfig, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read asset config '%s'", path)
	}

	cfg := &AssetConfig{}
	dec := toml.NewDecoder(bytes.NewReader(buf))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, describe(err, path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "asset config '%s'", path)
	}
	if !filepath.IsAbs(cfg.MeshFile) {
		cfg.MeshFile = filepath.Join(filepath.Dir(path), cfg.MeshFile)
	}
	return cfg, nil
}

func (c *AssetConfig) Validate() error {
	if c.Name == "" {
		return errors.New("asset name is empty")
	}
	if c.MeshFile == "" {
		return errors.Errorf("asset '%s' has no mesh_file", c.Name)
	}
	return nil
}

// WriteAssetConfig creates the definition file for a new mesh asset. The
// mesh path is stored relative to the file when possible. An existing file
// is never overwritten.
func WriteAssetConfig(path string, cfg *AssetConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	out := *cfg
	if filepath.IsAbs(out.MeshFile) {
		if rel, err := filepath.Rel(filepath.Dir(path), out.MeshFile); err == nil {
			out.MeshFile = filepath.ToSlash(rel)
		}
	}

	buf, err := toml.Marshal(&out)
	if err != nil {
		return errors.Wrap(err, "encode asset config")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for '%s'", path)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return errors.Wrapf(err, "create asset config '%s'", path)
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return errors.Wrapf(err, "write asset config '%s'", path)
	}
	return f.Close()
}

// describe adds the line and column go-toml reports for syntax and
// unknown-key errors.
func describe(err error, what string) error {
	var decErr *toml.DecodeError
	if errors.As(err, &decErr) {
		row, col := decErr.Position()
		return errors.Errorf("%s:%d:%d: %s", what, row, col, decErr.Error())
	}
	var strictErr *toml.StrictMissingError
	if errors.As(err, &strictErr) {
		return errors.Errorf("%s: %s", what, strictErr.String())
	}
	return errors.Wrap(err, what)
}
