package assets

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/skinmesh/engine/config"
	"github.com/spaghettifunk/skinmesh/engine/containers"
	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/importer"
	"github.com/spaghettifunk/skinmesh/engine/mesh"
	"github.com/spaghettifunk/skinmesh/engine/renderer"
	"github.com/spaghettifunk/skinmesh/engine/systems"
)

// reimportQueueSize bounds how many changed sources can wait for Update.
const reimportQueueSize = 256

type AssetInfo struct {
	Name string
	// Path is the model file the asset is built from.
	Path string
	// Definition is the file the asset was registered from, if any.
	Definition string
	CachePath  string
	LastLoaded time.Time
}

type assetEntry struct {
	info  AssetInfo
	asset *mesh.MeshAsset
}

// AssetManager owns every mesh asset of a pipeline, keyed by name. With
// source watching enabled it queues assets whose model file changed and
// reimports them on Update.
type AssetManager struct {
	cfg     *config.PipelineConfig
	backend renderer.RendererBackend
	loader  *systems.MeshLoaderSystem

	assets  map[string]*assetEntry
	sources map[string]string
	watched map[string]int

	mutex sync.RWMutex

	done     chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	changed  *containers.RingQueue[string]
}

func NewAssetManager(cfg *config.PipelineConfig, backend renderer.RendererBackend, loader *systems.MeshLoaderSystem) (*AssetManager, error) {
	if loader == nil {
		var err error
		if loader, err = systems.NewMeshLoaderSystem(nil); err != nil {
			return nil, err
		}
	}

	am := &AssetManager{
		cfg:     cfg,
		backend: backend,
		loader:  loader,
		assets:  make(map[string]*assetEntry),
		sources: make(map[string]string),
		watched: make(map[string]int),
		done:    make(chan struct{}),
		changed: containers.NewRingQueue[string](reimportQueueSize),
	}

	if cfg.WatchSources {
		fsWatch, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		am.fsnotify = fsWatch
		go am.start()
	}
	return am, nil
}

// Initialize registers every asset definition found under the asset
// directory. A missing directory is not an error.
func (am *AssetManager) Initialize() error {
	dir := am.cfg.AssetDir
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		core.LogDebug("asset directory '%s' does not exist, no definitions loaded.", dir)
		return nil
	}

	return filepath.Walk(dir, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() || !strings.EqualFold(filepath.Ext(walkPath), config.AssetDefinitionExt) {
			return nil
		}
		if _, err := am.RegisterDefinition(walkPath); err != nil {
			core.LogWarn("skipping asset definition '%s': %v", walkPath, err)
		}
		return nil
	})
}

// RegisterDefinition reads an asset definition file and registers it.
func (am *AssetManager) RegisterDefinition(path string) (*mesh.MeshAsset, error) {
	cfg, err := config.LoadAssetConfig(path)
	if err != nil {
		return nil, err
	}
	a, err := am.Register(cfg.Name, cfg.MeshFile)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	am.assets[cfg.Name].info.Definition = path
	am.mutex.Unlock()
	return a, nil
}

// Register creates an unloaded asset for meshFile under name.
func (am *AssetManager) Register(name, meshFile string) (*mesh.MeshAsset, error) {
	if !importer.SupportedExtension(meshFile) {
		return nil, errors.Wrapf(core.ErrUnsupportedFormat, "asset '%s': '%s'", name, meshFile)
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()

	if am.isClosed {
		return nil, errors.New("asset manager already closed")
	}
	if _, ok := am.assets[name]; ok {
		return nil, errors.Errorf("asset '%s' already registered", name)
	}

	opts := mesh.DefaultOptions()
	opts.CacheDir = am.cfg.CacheDir
	opts.Flags = am.cfg.ImportFlags()
	a := mesh.NewMeshAsset(name, meshFile, am.backend, opts)
	am.assets[name] = &assetEntry{
		info: AssetInfo{
			Name:      name,
			Path:      meshFile,
			CachePath: am.cachePath(meshFile),
		},
		asset: a,
	}
	am.trackSource(name, meshFile)
	return a, nil
}

func (am *AssetManager) cachePath(meshFile string) string {
	if am.cfg.CacheDir == "" {
		return ""
	}
	return mesh.CachePath(am.cfg.CacheDir, meshFile)
}

// trackSource maps the source to its asset and watches its directory.
// Callers hold the mutex.
func (am *AssetManager) trackSource(name, meshFile string) {
	key := sourceKey(meshFile)
	am.sources[key] = name

	if am.fsnotify == nil {
		return
	}
	dir := filepath.Dir(key)
	if am.watched[dir] == 0 {
		// Editors often replace files, so the directory is what gets watched.
		if err := am.fsnotify.Add(dir); err != nil {
			core.LogWarn("cannot watch '%s': %v", dir, err)
			return
		}
	}
	am.watched[dir]++
}

// untrackSource reverses trackSource. Callers hold the mutex.
func (am *AssetManager) untrackSource(meshFile string) {
	key := sourceKey(meshFile)
	delete(am.sources, key)

	if am.fsnotify == nil {
		return
	}
	dir := filepath.Dir(key)
	if am.watched[dir] == 0 {
		return
	}
	am.watched[dir]--
	if am.watched[dir] == 0 {
		delete(am.watched, dir)
		am.fsnotify.Remove(dir)
	}
}

func sourceKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Get returns the asset registered under name.
func (am *AssetManager) Get(name string) (*mesh.MeshAsset, error) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	e, ok := am.assets[name]
	if !ok {
		return nil, errors.Wrapf(core.ErrAssetNotFound, "asset '%s'", name)
	}
	return e.asset, nil
}

func (am *AssetManager) Info(name string) (AssetInfo, error) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	e, ok := am.assets[name]
	if !ok {
		return AssetInfo{}, errors.Wrapf(core.ErrAssetNotFound, "asset '%s'", name)
	}
	return e.info, nil
}

// Names returns the registered asset names, sorted.
func (am *AssetManager) Names() []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	names := make([]string, 0, len(am.assets))
	for name := range am.assets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadAsset loads the named asset. With background imports the load is
// only queued and done, if set, reports the result.
func (am *AssetManager) LoadAsset(name string, done func(error)) error {
	return am.load(name, false, done)
}

// LoadAll loads every registered asset and waits for background loads.
// Failed assets stay registered; the first error is returned.
func (am *AssetManager) LoadAll() error {
	var (
		mu    sync.Mutex
		first error
	)
	record := func(err error) {
		mu.Lock()
		if first == nil {
			first = err
		}
		mu.Unlock()
	}

	for _, name := range am.Names() {
		if err := am.load(name, false, func(err error) {
			if err != nil {
				record(err)
			}
		}); err != nil {
			record(err)
		}
	}
	am.loader.Wait()
	return first
}

// Reimport rebuilds the named asset from its source.
func (am *AssetManager) Reimport(name string, done func(error)) error {
	return am.load(name, true, done)
}

// SetMeshFile points the named asset at another model file. The source
// watch moves to the new file, and an asset that was loaded is loaded again
// from it.
func (am *AssetManager) SetMeshFile(name, meshFile string) error {
	if !importer.SupportedExtension(meshFile) {
		return errors.Wrapf(core.ErrUnsupportedFormat, "asset '%s': '%s'", name, meshFile)
	}

	am.mutex.Lock()
	e, ok := am.assets[name]
	if !ok {
		am.mutex.Unlock()
		return errors.Wrapf(core.ErrAssetNotFound, "asset '%s'", name)
	}
	if sourceKey(e.info.Path) != sourceKey(meshFile) {
		am.untrackSource(e.info.Path)
		am.trackSource(name, meshFile)
	}
	e.info.Path = meshFile
	e.info.CachePath = am.cachePath(meshFile)
	am.mutex.Unlock()

	if err := e.asset.SetMeshFile(meshFile); err != nil {
		return err
	}
	if e.asset.IsLoaded() {
		am.mutex.Lock()
		e.info.LastLoaded = time.Now()
		am.mutex.Unlock()
	}
	return nil
}

func (am *AssetManager) load(name string, reimport bool, done func(error)) error {
	am.mutex.RLock()
	e, ok := am.assets[name]
	am.mutex.RUnlock()
	if !ok {
		return errors.Wrapf(core.ErrAssetNotFound, "asset '%s'", name)
	}

	return am.loader.Load(e.asset, reimport, func(err error) {
		if err == nil {
			am.mutex.Lock()
			e.info.LastLoaded = time.Now()
			am.mutex.Unlock()
		}
		if done != nil {
			done(err)
		}
	})
}

// Update reimports the assets whose sources changed since the last call
// and returns how many were started.
func (am *AssetManager) Update() int {
	seen := map[string]bool{}
	for {
		name, err := am.changed.Dequeue()
		if err != nil {
			break
		}
		if seen[name] {
			continue
		}
		seen[name] = true
	}

	started := 0
	for name := range seen {
		a, err := am.Get(name)
		if err != nil {
			// Unregistered after the change was queued.
			continue
		}
		if a.State() == mesh.StateUnloaded {
			continue
		}
		core.LogInfo("source of asset '%s' changed, reimporting.", name)
		if err := am.Reimport(name, nil); err != nil && !am.loader.Background() {
			core.LogError("reimport of '%s' failed: %v", name, err)
		}
		started++
	}
	return started
}

// NotifySourceChanged queues the asset built from path for reimport, if
// any. The watcher calls it for every write.
func (am *AssetManager) NotifySourceChanged(path string) bool {
	am.mutex.RLock()
	name, ok := am.sources[sourceKey(path)]
	am.mutex.RUnlock()
	if !ok {
		return false
	}
	if err := am.changed.Enqueue(name); err != nil {
		core.LogWarn("reimport queue full, change to '%s' dropped.", path)
		return false
	}
	return true
}

// UnloadAsset releases the named asset and forgets it.
func (am *AssetManager) UnloadAsset(name string) error {
	am.mutex.Lock()
	e, ok := am.assets[name]
	if ok {
		delete(am.assets, name)
		am.untrackSource(e.info.Path)
	}
	am.mutex.Unlock()

	if !ok {
		return errors.Wrapf(core.ErrAssetNotFound, "asset '%s'", name)
	}
	e.asset.Close()
	return nil
}

// Shutdown waits for pending loads, stops watching and releases every
// asset.
func (am *AssetManager) Shutdown() error {
	am.loader.Wait()

	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	entries := am.assets
	am.assets = make(map[string]*assetEntry)
	am.sources = make(map[string]string)
	am.mutex.Unlock()

	if am.fsnotify != nil {
		close(am.done)
	}
	for _, e := range entries {
		e.asset.Close()
	}
	return nil
}

func (am *AssetManager) start() {
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				am.NotifySourceChanged(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}
