package systems

import (
	"github.com/spaghettifunk/skinmesh/engine/config"
	"github.com/spaghettifunk/skinmesh/engine/core"
)

// jobQueueSize bounds how many loads can wait for a worker.
const jobQueueSize = 64

type SystemManager struct {
	jobSystem        *JobSystem
	meshLoaderSystem *MeshLoaderSystem
}

// NewSystemManager starts the job system when background imports are
// enabled. Otherwise mesh loads run inline.
func NewSystemManager(cfg *config.PipelineConfig) (*SystemManager, error) {
	var js *JobSystem
	if cfg.BackgroundImport {
		var err error
		js, err = NewJobSystem(cfg.ImportWorkers, jobQueueSize)
		if err != nil {
			return nil, err
		}
		core.LogDebug("job system started with %d workers.", cfg.ImportWorkers)
	}

	mls, err := NewMeshLoaderSystem(js)
	if err != nil {
		return nil, err
	}
	return &SystemManager{
		jobSystem:        js,
		meshLoaderSystem: mls,
	}, nil
}

func (sm *SystemManager) MeshLoader() *MeshLoaderSystem {
	return sm.meshLoaderSystem
}

func (sm *SystemManager) Shutdown() error {
	if err := sm.meshLoaderSystem.Shutdown(); err != nil {
		return err
	}
	if sm.jobSystem != nil {
		if err := sm.jobSystem.Shutdown(); err != nil {
			return err
		}
	}
	return nil
}
