package mesh

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/importer"
	"github.com/spaghettifunk/skinmesh/engine/math"
	"github.com/spaghettifunk/skinmesh/engine/renderer"
	"github.com/spaghettifunk/skinmesh/engine/scene"
)

type State uint8

const (
	StateUnloaded State = iota
	StateImporting
	StateCacheHit
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateImporting:
		return "importing"
	case StateCacheHit:
		return "cache-hit"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Options controls how a MeshAsset loads.
type Options struct {
	// CacheDir is the root of the binary cache. Empty disables caching.
	CacheDir string
	// Flags are the import post-process flags.
	Flags importer.Flags
	// Codec reads and writes the cache. Nil means NewCodec().
	Codec *Codec
}

func DefaultOptions() Options {
	return Options{Flags: importer.DefaultFlags}
}

// SubMeshBuffers holds the GPU buffers created for one submesh.
type SubMeshBuffers struct {
	Vertex renderer.BufferHandle
	Index  renderer.BufferHandle
}

// MeshAsset is a skinned mesh loaded from a model file, through the binary
// cache when possible. Once Ready it can be sampled and raycast from any
// number of goroutines; Reimport and SetMeshFile swap the data under a
// write lock.
type MeshAsset struct {
	ID   uuid.UUID
	Name string

	backend renderer.RendererBackend
	opts    Options

	// serializes loads
	loadMu sync.Mutex

	mu            sync.RWMutex
	meshFile      string
	state         State
	generation    uint64
	subMeshes     []*SubMesh
	bones         *BoneTable
	bounds        math.Extents3D
	materialCount uint32
	animated      bool
	// only kept while the asset is animated
	scene    *scene.Scene
	sampler  *Sampler
	buffers  []SubMeshBuffers
	lastErr  error
	metrics  *core.Metrics
	loadTime int64
}

// loaded is the result of one load, built without holding any lock.
type loaded struct {
	subMeshes     []*SubMesh
	bones         *BoneTable
	bounds        math.Extents3D
	materialCount uint32
	animated      bool
	scene         *scene.Scene
	sampler       *Sampler
	fromCache     bool
}

func NewMeshAsset(name, meshFile string, backend renderer.RendererBackend, opts Options) *MeshAsset {
	if opts.Codec == nil {
		opts.Codec = NewCodec()
	}
	return &MeshAsset{
		ID:       uuid.New(),
		Name:     name,
		backend:  backend,
		opts:     opts,
		meshFile: meshFile,
		bones:    NewBoneTable(),
		metrics:  core.NewMetrics(),
	}
}

// Load brings the asset to Ready unless it already is. Failures are logged
// and recorded in LastError; the asset stays usable either way.
func (a *MeshAsset) Load() error {
	a.loadMu.Lock()
	defer a.loadMu.Unlock()

	if a.State() == StateReady {
		return nil
	}
	return a.load(false)
}

// Reimport reads the source file again, ignoring the cache, and replaces
// the asset data once the new data is ready.
func (a *MeshAsset) Reimport() error {
	a.loadMu.Lock()
	defer a.loadMu.Unlock()

	return a.load(true)
}

// SetMeshFile points the asset at another source file. An asset that was
// already loaded, or failed to, is loaded again from the new file. Assets
// owned by an AssetManager change sources through AssetManager.SetMeshFile
// so that the source watch follows.
func (a *MeshAsset) SetMeshFile(path string) error {
	a.loadMu.Lock()
	defer a.loadMu.Unlock()

	a.mu.Lock()
	if a.meshFile == path {
		a.mu.Unlock()
		return nil
	}
	a.meshFile = path
	state := a.state
	a.mu.Unlock()

	if state == StateUnloaded {
		return nil
	}
	return a.load(false)
}

func (a *MeshAsset) load(forceImport bool) error {
	clock := core.NewClock()
	clock.Start()

	path := a.MeshFile()
	l, err := a.build(path, forceImport)
	if err != nil {
		core.LogError("mesh asset '%s': %v", a.Name, err)
		a.swap(&loaded{bones: NewBoneTable()}, nil, StateFailed, err)
		return err
	}

	buffers, err := a.upload(l.subMeshes)
	if err != nil {
		core.LogError("mesh asset '%s': %v", a.Name, err)
		a.swap(l, nil, StateFailed, err)
		return err
	}

	a.swap(l, buffers, StateReady, nil)
	clock.Stop()

	a.mu.Lock()
	a.loadTime = clock.Microseconds()
	a.mu.Unlock()

	source := "import"
	if l.fromCache {
		source = "cache"
	}
	core.LogInfo("mesh asset '%s' ready from %s: %d submeshes, %d bones, animated=%t (%d us).",
		a.Name, source, len(l.subMeshes), l.bones.Len(), l.animated, clock.Microseconds())
	return nil
}

func (a *MeshAsset) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// build produces new asset data from the cache or the importer.
func (a *MeshAsset) build(path string, forceImport bool) (*loaded, error) {
	cachePath := ""
	if a.opts.CacheDir != "" {
		cachePath = CachePath(a.opts.CacheDir, path)
	}

	if cachePath != "" && !forceImport {
		data, err := a.opts.Codec.Read(cachePath)
		if err == nil {
			a.setState(StateCacheHit)
			l := &loaded{
				subMeshes:     data.SubMeshes,
				bones:         NewBoneTable(),
				bounds:        math.NewExtents3DZero(),
				materialCount: data.MaterialCount,
				fromCache:     true,
			}
			for _, sm := range l.subMeshes {
				l.bounds = l.bounds.Union(sm.Bounds)
			}
			return l, nil
		}
		if errors.Is(err, core.ErrCacheVersion) {
			core.LogDebug("mesh asset '%s': cache version changed, reimporting.", a.Name)
		} else {
			core.LogDebug("mesh asset '%s': %v", a.Name, err)
		}
	}

	a.setState(StateImporting)
	s, err := importer.Import(path, a.opts.Flags)
	if err != nil {
		return nil, err
	}

	ex := Extract(s)
	l := &loaded{
		subMeshes:     ex.SubMeshes,
		bones:         ex.Bones,
		bounds:        ex.Bounds,
		materialCount: ex.MaterialCount,
		animated:      ex.Animated,
	}

	if l.animated {
		// Sampling walks the imported node tree, so it stays resident.
		l.scene = s
		l.sampler = NewSampler(s, l.bones)
		return l, nil
	}

	if cachePath != "" {
		err := a.opts.Codec.Write(cachePath, &CacheData{SubMeshes: l.subMeshes, MaterialCount: l.materialCount})
		if err != nil {
			core.LogError("mesh asset '%s': cache not written: %v", a.Name, err)
		} else {
			core.LogDebug("mesh asset '%s': cache written to '%s'.", a.Name, cachePath)
		}
	}
	return l, nil
}

// upload creates GPU buffers for every submesh. On failure the buffers
// created so far are destroyed.
func (a *MeshAsset) upload(subMeshes []*SubMesh) ([]SubMeshBuffers, error) {
	if a.backend == nil {
		return nil, nil
	}

	buffers := make([]SubMeshBuffers, 0, len(subMeshes))
	for i, sm := range subMeshes {
		name := fmt.Sprintf("%s#%d", a.Name, i)
		vb, err := a.backend.CreateVertexBuffer(name, SkinVertexLayout, uint32(len(sm.Vertices)), sm.Vertices)
		if err != nil {
			a.destroyBuffers(buffers)
			return nil, fmt.Errorf("create vertex buffer for submesh %d: %w", i, err)
		}
		ib, err := a.backend.CreateIndexBuffer(name, sm.Indices)
		if err != nil {
			a.destroyBuffers(append(buffers, SubMeshBuffers{Vertex: vb}))
			return nil, fmt.Errorf("create index buffer for submesh %d: %w", i, err)
		}
		buffers = append(buffers, SubMeshBuffers{Vertex: vb, Index: ib})
	}
	return buffers, nil
}

func (a *MeshAsset) destroyBuffers(buffers []SubMeshBuffers) {
	if a.backend == nil {
		return
	}
	for _, b := range buffers {
		for _, h := range []renderer.BufferHandle{b.Vertex, b.Index} {
			if h == renderer.InvalidBufferHandle {
				continue
			}
			if err := a.backend.DestroyBuffer(h); err != nil {
				core.LogWarn("mesh asset '%s': %v", a.Name, err)
			}
		}
	}
}

// swap installs new data under the write lock and destroys the buffers it
// replaces once readers are out.
func (a *MeshAsset) swap(l *loaded, buffers []SubMeshBuffers, state State, lastErr error) {
	a.mu.Lock()
	old := a.buffers
	a.subMeshes = l.subMeshes
	a.bones = l.bones
	a.bounds = l.bounds
	a.materialCount = l.materialCount
	a.animated = l.animated
	a.scene = l.scene
	a.sampler = l.sampler
	a.buffers = buffers
	a.state = state
	a.lastErr = lastErr
	a.generation++
	a.mu.Unlock()

	a.destroyBuffers(old)
}

// Close releases the GPU buffers and all asset data.
func (a *MeshAsset) Close() {
	a.loadMu.Lock()
	defer a.loadMu.Unlock()

	a.swap(&loaded{bones: NewBoneTable()}, nil, StateUnloaded, nil)
}

func (a *MeshAsset) MeshFile() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.meshFile
}

func (a *MeshAsset) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// IsLoaded reports whether the asset holds any geometry.
func (a *MeshAsset) IsLoaded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state == StateReady && len(a.subMeshes) > 0
}

// Generation increases every time the asset data is replaced.
func (a *MeshAsset) Generation() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.generation
}

func (a *MeshAsset) LastError() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastErr
}

// LoadTime returns how long the last successful load took, in microseconds.
func (a *MeshAsset) LoadTime() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loadTime
}

func (a *MeshAsset) SubMeshCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.subMeshes)
}

// SubMeshes returns the current submeshes. They must not be modified.
func (a *MeshAsset) SubMeshes() []*SubMesh {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*SubMesh, len(a.subMeshes))
	copy(out, a.subMeshes)
	return out
}

func (a *MeshAsset) Buffers() []SubMeshBuffers {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]SubMeshBuffers, len(a.buffers))
	copy(out, a.buffers)
	return out
}

// Bounds returns the union of the submesh bounding boxes.
func (a *MeshAsset) Bounds() math.Extents3D {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bounds
}

func (a *MeshAsset) MaterialCount() uint32 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.materialCount
}

func (a *MeshAsset) IsAnimated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.animated
}

// BoneNames returns the bone names in index order. Assets loaded from the
// cache have none.
func (a *MeshAsset) BoneNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bones.Names()
}

func (a *MeshAsset) AnimationCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sampler.AnimationCount()
}

// AnimationNames lists the animations in index order.
func (a *MeshAsset) AnimationNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.scene == nil {
		return nil
	}
	names := make([]string, len(a.scene.Animations))
	for i, anim := range a.scene.Animations {
		names[i] = anim.Name
	}
	return names
}

// AnimationDuration returns the duration of an animation in seconds.
func (a *MeshAsset) AnimationDuration(animationIndex int) (float64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.scene == nil {
		return 0, core.ErrNotAnimated
	}
	if animationIndex < 0 || animationIndex >= len(a.scene.Animations) {
		return 0, core.ErrAnimationIndex
	}
	anim := a.scene.Animations[animationIndex]
	tps := anim.TicksPerSecond
	if tps == 0 {
		tps = DefaultTicksPerSecond
	}
	return anim.Duration / tps, nil
}

// Sample returns the skinning matrix of every bone, up to the highest bone
// reached by the animation, at the given time.
func (a *MeshAsset) Sample(animationIndex int, seconds float64) ([]math.Mat4, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.animated || a.sampler == nil {
		return nil, core.ErrNotAnimated
	}

	clock := core.NewClock()
	clock.Start()

	out := make([]math.Mat4, a.bones.Len())
	for i := range out {
		out[i] = math.NewMat4Identity()
	}
	n, err := a.sampler.Sample(animationIndex, seconds, out)
	if err != nil {
		return nil, err
	}

	clock.Stop()
	a.metrics.Update(clock.Elapsed().Seconds())
	return out[:n], nil
}

// SkinningPalette returns the array the renderer expects: model in slot 0
// and bone i in slot i+1, matching the bone indices stored in vertices.
func (a *MeshAsset) SkinningPalette(animationIndex int, seconds float64, model math.Mat4) ([]math.Mat4, error) {
	bones, err := a.Sample(animationIndex, seconds)
	if err != nil {
		return nil, err
	}
	palette := make([]math.Mat4, 0, len(bones)+1)
	palette = append(palette, model)
	return append(palette, bones...), nil
}

// UploadSkinningPalette samples the animation and hands the palette to the
// renderer.
func (a *MeshAsset) UploadSkinningPalette(animationIndex int, seconds float64, model math.Mat4) error {
	if a.backend == nil {
		return errors.New("mesh asset has no renderer backend")
	}
	palette, err := a.SkinningPalette(animationIndex, seconds, model)
	if err != nil {
		return err
	}
	return a.backend.SetBoneTransforms(palette)
}

// SampleTimeMS is the rolling average cost of Sample in milliseconds.
func (a *MeshAsset) SampleTimeMS() float64 {
	return a.metrics.AverageMS()
}

// Raycast tests the segment start-end against the asset's triangles and
// returns the first hit found.
func (a *MeshAsset) Raycast(start, end math.Vec3) (bool, math.Vec3) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Raycast(a.subMeshes, start, end)
}
