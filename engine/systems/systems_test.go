package systems

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/spaghettifunk/skinmesh/engine/config"
	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/mesh"
	"github.com/spaghettifunk/skinmesh/engine/renderer/headless"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	core.SetLogOutput(io.Discard)
}

const triangleOBJ = `o tri
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`

func TestNewJobSystemErrors(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobSystemRunsHandlers(t *testing.T) {
	js, err := NewJobSystem(4, 8)
	require.NoError(t, err)

	var ok, failed, finished atomic.Int32
	for i := 0; i < 20; i++ {
		i := i
		require.NoError(t, js.Submit(JobTask{
			InputParams: i,
			OnStart: func(params interface{}, results chan<- interface{}) error {
				n := params.(int)
				results <- n * 2
				if n%5 == 0 {
					return errors.Errorf("job %d failed", n)
				}
				return nil
			},
			OnComplete: func(results <-chan interface{}) {
				if v := (<-results).(int); v%2 == 0 {
					ok.Add(1)
				}
			},
			OnFailure: func(results <-chan interface{}) {
				failed.Add(1)
			},
			OnCompletionCallback: func() {
				finished.Add(1)
			},
		}))
	}

	require.NoError(t, js.Shutdown())
	assert.Equal(t, int32(16), ok.Load())
	assert.Equal(t, int32(4), failed.Load())
	assert.Equal(t, int32(20), finished.Load())

	assert.ErrorIs(t, js.Shutdown(), ErrJobSystemShutdown)
	assert.ErrorIs(t, js.Submit(JobTask{OnStart: func(interface{}, chan<- interface{}) error { return nil }}), ErrJobSystemShutdown)
}

func TestJobSystemRejectsJobWithoutEntryPoint(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	require.NoError(t, err)
	defer js.Shutdown()

	assert.Error(t, js.Submit(JobTask{}))
}

func writeOBJ(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(triangleOBJ), 0o644))
	return path
}

func TestMeshLoaderSystemInline(t *testing.T) {
	sm, err := NewSystemManager(config.DefaultPipelineConfig())
	require.NoError(t, err)
	defer sm.Shutdown()

	mls := sm.MeshLoader()
	assert.False(t, mls.Background())

	asset := mesh.NewMeshAsset("tri", writeOBJ(t, "tri.obj"), headless.NewBackend(), mesh.DefaultOptions())
	var got error = errors.New("not called")
	require.NoError(t, mls.Load(asset, false, func(err error) { got = err }))
	assert.NoError(t, got)
	assert.Equal(t, mesh.StateReady, asset.State())
}

func TestMeshLoaderSystemBackground(t *testing.T) {
	cfg := config.DefaultPipelineConfig()
	cfg.BackgroundImport = true
	cfg.ImportWorkers = 2
	sm, err := NewSystemManager(cfg)
	require.NoError(t, err)

	mls := sm.MeshLoader()
	assert.True(t, mls.Background())

	backend := headless.NewBackend()
	good := mesh.NewMeshAsset("tri", writeOBJ(t, "tri.obj"), backend, mesh.DefaultOptions())
	bad := mesh.NewMeshAsset("missing", filepath.Join(t.TempDir(), "missing.obj"), backend, mesh.DefaultOptions())

	var mu sync.Mutex
	results := map[string]error{}
	record := func(name string) func(error) {
		return func(err error) {
			mu.Lock()
			results[name] = err
			mu.Unlock()
		}
	}

	require.NoError(t, mls.Load(good, false, record("tri")))
	require.NoError(t, mls.Load(bad, false, record("missing")))
	require.NoError(t, sm.Shutdown())

	assert.Equal(t, mesh.StateReady, good.State())
	assert.Equal(t, mesh.StateFailed, bad.State())
	require.Len(t, results, 2)
	assert.NoError(t, results["tri"])
	assert.ErrorIs(t, results["missing"], core.ErrImportFailed)
}
