package importer

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/scene"
)

// Loader reads one model format into a scene graph.
type Loader interface {
	// Extensions lists the lower case file extensions, dot included.
	Extensions() []string
	Load(path string) (*scene.Scene, error)
}

var (
	loadersMu sync.RWMutex
	loaders   = map[string]Loader{}
)

func init() {
	Register(&GLTFLoader{})
	Register(&OBJLoader{})
}

// Register makes l the loader for each of its extensions, replacing any
// loader registered before.
func Register(l Loader) {
	loadersMu.Lock()
	defer loadersMu.Unlock()
	for _, ext := range l.Extensions() {
		loaders[strings.ToLower(ext)] = l
	}
}

// LoaderFor returns the loader registered for path's extension.
func LoaderFor(path string) (Loader, bool) {
	loadersMu.RLock()
	defer loadersMu.RUnlock()
	l, ok := loaders[strings.ToLower(filepath.Ext(path))]
	return l, ok
}

// SupportedExtension reports whether a loader exists for path.
func SupportedExtension(path string) bool {
	_, ok := LoaderFor(path)
	return ok
}

// Import reads path with the matching loader and post-processes the result.
// A scene without meshes counts as a failed import.
func Import(path string, flags Flags) (*scene.Scene, error) {
	if flags.Has(FlagFindInstances) {
		core.LogDebug("import '%s': find_instances requested and ignored.", path)
	}
	flags = flags.Sanitize()

	l, ok := LoaderFor(path)
	if !ok {
		return nil, errors.Wrapf(core.ErrUnsupportedFormat, "import '%s'", path)
	}

	clock := core.NewClock()
	clock.Start()

	s, err := l.Load(path)
	if err != nil {
		return nil, errors.Wrapf(core.ErrImportFailed, "import '%s': %v", path, err)
	}
	if !s.HasMeshes() {
		return nil, errors.Wrapf(core.ErrImportFailed, "import '%s': scene has no meshes", path)
	}
	clock.Update()
	core.LogDebug("import '%s': read %d meshes in %d us.", path, len(s.Meshes), clock.Microseconds())

	clock.Start()
	PostProcess(s, flags)
	clock.Stop()
	core.LogDebug("import '%s': post-process [%s] took %d us.", path, flags, clock.Microseconds())

	return s, nil
}
