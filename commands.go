package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spaghettifunk/skinmesh/engine/config"
	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/importer"
	"github.com/spaghettifunk/skinmesh/engine/math"
	"github.com/spaghettifunk/skinmesh/engine/mesh"
	"github.com/spaghettifunk/skinmesh/engine/renderer/headless"
	"gopkg.in/yaml.v3"
)

type subMeshSummary struct {
	Name      string     `yaml:"name"`
	Node      string     `yaml:"node,omitempty"`
	Material  uint32     `yaml:"material"`
	Vertices  int        `yaml:"vertices"`
	Indices   int        `yaml:"indices"`
	Triangles int        `yaml:"triangles"`
	BoundsMin [3]float32 `yaml:"bounds_min,flow"`
	BoundsMax [3]float32 `yaml:"bounds_max,flow"`
}

type animationSummary struct {
	Index    int     `yaml:"index"`
	Name     string  `yaml:"name"`
	Duration float64 `yaml:"duration_seconds"`
}

type assetSummary struct {
	Name       string             `yaml:"name"`
	ID         string             `yaml:"id"`
	Source     string             `yaml:"source"`
	State      string             `yaml:"state"`
	Cache      string             `yaml:"cache,omitempty"`
	LoadTimeUS int64              `yaml:"load_time_us"`
	Materials  uint32             `yaml:"materials"`
	Animated   bool               `yaml:"animated"`
	BoundsMin  [3]float32         `yaml:"bounds_min,flow"`
	BoundsMax  [3]float32         `yaml:"bounds_max,flow"`
	Bones      []string           `yaml:"bones,omitempty"`
	Animations []animationSummary `yaml:"animations,omitempty"`
	SubMeshes  []subMeshSummary   `yaml:"submeshes"`
}

type boneSample struct {
	Bone   string        `yaml:"bone"`
	Matrix [4][4]float32 `yaml:"matrix,flow"`
}

type sampleSummary struct {
	Asset     string       `yaml:"asset"`
	Animation string       `yaml:"animation"`
	Time      float64      `yaml:"time_seconds"`
	Bones     []boneSample `yaml:"bones"`
}

type raycastSummary struct {
	Hit   bool        `yaml:"hit"`
	Point *[3]float32 `yaml:"point,flow,omitempty"`
}

func vec3Array(v math.Vec3) [3]float32 {
	return [3]float32{v.X, v.Y, v.Z}
}

func mat4Rows(m math.Mat4) [4][4]float32 {
	var rows [4][4]float32
	for r := 0; r < 4; r++ {
		copy(rows[r][:], m.Data[r*4:r*4+4])
	}
	return rows
}

// parseVec3 reads "x,y,z".
func parseVec3(s string) (math.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return math.Vec3{}, errors.Errorf("expected x,y,z, got %q", s)
	}
	var v [3]float32
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return math.Vec3{}, errors.Wrapf(err, "component %d of %q", i, s)
		}
		v[i] = float32(f)
	}
	return math.NewVec3(v[0], v[1], v[2]), nil
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func assetName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// loadAsset loads a model file the way the asset manager would, against
// the headless renderer.
func loadAsset(path string, cfg *config.PipelineConfig) (*mesh.MeshAsset, error) {
	opts := mesh.DefaultOptions()
	opts.CacheDir = cfg.CacheDir
	opts.Flags = cfg.ImportFlags()
	a := mesh.NewMeshAsset(assetName(path), path, headless.NewBackend(), opts)
	if err := a.Load(); err != nil {
		return nil, err
	}
	return a, nil
}

func summarize(a *mesh.MeshAsset, cacheDir string) assetSummary {
	bounds := a.Bounds()
	s := assetSummary{
		Name:       a.Name,
		ID:         a.ID.String(),
		Source:     a.MeshFile(),
		State:      a.State().String(),
		LoadTimeUS: a.LoadTime(),
		Materials:  a.MaterialCount(),
		Animated:   a.IsAnimated(),
		BoundsMin:  vec3Array(bounds.Min),
		BoundsMax:  vec3Array(bounds.Max),
		Bones:      a.BoneNames(),
	}
	if cacheDir != "" && !a.IsAnimated() {
		s.Cache = mesh.CachePath(cacheDir, a.MeshFile())
	}
	for i, name := range a.AnimationNames() {
		d, _ := a.AnimationDuration(i)
		s.Animations = append(s.Animations, animationSummary{Index: i, Name: name, Duration: d})
	}
	for _, sm := range a.SubMeshes() {
		s.SubMeshes = append(s.SubMeshes, subMeshSummary{
			Name:      sm.Name,
			Node:      sm.NodeName,
			Material:  sm.MaterialIndex,
			Vertices:  len(sm.Vertices),
			Indices:   len(sm.Indices),
			Triangles: len(sm.Faces),
			BoundsMin: vec3Array(sm.Bounds.Min),
			BoundsMax: vec3Array(sm.Bounds.Max),
		})
	}
	return s
}

func runCreate(args []string, stdout io.Writer) error {
	fs := newFlagSet("create")
	name := fs.String("name", "", "asset name")
	meshFile := fs.String("mesh", "", "model file the asset is built from")
	out := fs.String("out", "", "definition file to write, defaults to <name>.toml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *meshFile != "" && !importer.SupportedExtension(*meshFile) {
		return errors.Wrapf(core.ErrUnsupportedFormat, "'%s'", *meshFile)
	}
	path := *out
	if path == "" {
		path = *name + config.AssetDefinitionExt
	}
	if err := config.WriteAssetConfig(path, &config.AssetConfig{Name: *name, MeshFile: *meshFile}); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "created %s\n", path)
	return nil
}

func runImport(args []string, stdout io.Writer) error {
	fs := newFlagSet("import")
	p := addPipelineFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := p.load()
	if err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("no model files given")
	}

	failed := 0
	for _, path := range fs.Args() {
		a, err := loadAsset(path, cfg)
		if err != nil {
			core.LogError("%s: %v", path, err)
			failed++
			continue
		}
		fmt.Fprintf(stdout, "%s: %s, %d submeshes, %d bones, %d animations (%d us)\n",
			path, a.State(), a.SubMeshCount(), len(a.BoneNames()), a.AnimationCount(), a.LoadTime())
		a.Close()
	}
	if failed > 0 {
		return errors.Errorf("%d of %d imports failed", failed, fs.NArg())
	}
	return nil
}

func runInspect(args []string, stdout io.Writer) error {
	fs := newFlagSet("inspect")
	p := addPipelineFlags(fs)
	dump := fs.Bool("dump", false, "dump the imported scene graph instead of the asset summary")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := p.load()
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("inspect takes exactly one model file")
	}
	path := fs.Arg(0)

	if *dump {
		s, err := importer.Import(path, cfg.ImportFlags())
		if err != nil {
			return err
		}
		s.Dump(stdout)
		return nil
	}

	a, err := loadAsset(path, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return writeYAML(stdout, summarize(a, cfg.CacheDir))
}

func runSample(args []string, stdout io.Writer) error {
	fs := newFlagSet("sample")
	p := addPipelineFlags(fs)
	anim := fs.Int("anim", 0, "animation index")
	seconds := fs.Float64("time", 0, "time in seconds, wrapped into the animation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := p.load()
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("sample takes exactly one model file")
	}

	a, err := loadAsset(fs.Arg(0), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	bones, err := a.Sample(*anim, *seconds)
	if err != nil {
		return err
	}
	names := a.BoneNames()
	out := sampleSummary{
		Asset:     a.Name,
		Animation: a.AnimationNames()[*anim],
		Time:      *seconds,
	}
	for i, m := range bones {
		out.Bones = append(out.Bones, boneSample{Bone: names[i], Matrix: mat4Rows(m)})
	}
	return writeYAML(stdout, out)
}

func runRaycast(args []string, stdout io.Writer) error {
	fs := newFlagSet("raycast")
	p := addPipelineFlags(fs)
	from := fs.String("from", "", "segment start as x,y,z")
	to := fs.String("to", "", "segment end as x,y,z")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := p.load()
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("raycast takes exactly one model file")
	}
	start, err := parseVec3(*from)
	if err != nil {
		return errors.Wrap(err, "-from")
	}
	end, err := parseVec3(*to)
	if err != nil {
		return errors.Wrap(err, "-to")
	}

	a, err := loadAsset(fs.Arg(0), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	hit, point := a.Raycast(start, end)
	out := raycastSummary{Hit: hit}
	if hit {
		pt := vec3Array(point)
		out.Point = &pt
	}
	return writeYAML(stdout, out)
}
