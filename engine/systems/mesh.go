package systems

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/mesh"
)

// MeshLoadParams travels with a mesh load job.
type MeshLoadParams struct {
	Asset    *mesh.MeshAsset
	Reimport bool
	// Done, if set, receives the load result once the job has finished.
	Done func(error)
}

// MeshLoaderSystem loads mesh assets on the job system. Without one it
// loads inline on the caller's goroutine.
type MeshLoaderSystem struct {
	jobSystem *JobSystem
	pending   sync.WaitGroup
}

func NewMeshLoaderSystem(js *JobSystem) (*MeshLoaderSystem, error) {
	return &MeshLoaderSystem{
		jobSystem: js,
	}, nil
}

// Background reports whether loads run on the job system.
func (mls *MeshLoaderSystem) Background() bool {
	return mls.jobSystem != nil
}

// Load loads asset, or reimports it when reimport is set. With a job
// system it returns once the job is queued.
func (mls *MeshLoaderSystem) Load(asset *mesh.MeshAsset, reimport bool, done func(error)) error {
	params := MeshLoadParams{Asset: asset, Reimport: reimport, Done: done}

	if mls.jobSystem == nil {
		err := meshLoadJobStart(params, nil)
		if done != nil {
			done(err)
		}
		return err
	}

	mls.pending.Add(1)
	err := mls.jobSystem.Submit(JobTask{
		InputParams: params,
		OnStart:     meshLoadJobStart,
		OnComplete:  mls.meshLoadJobSuccess,
		OnFailure:   mls.meshLoadJobFail,
		OnCompletionCallback: func() {
			mls.pending.Done()
		},
	})
	if err != nil {
		mls.pending.Done()
		return err
	}
	return nil
}

// Wait blocks until every queued load has finished.
func (mls *MeshLoaderSystem) Wait() {
	mls.pending.Wait()
}

func (mls *MeshLoaderSystem) Shutdown() error {
	mls.Wait()
	return nil
}

func meshLoadJobStart(params interface{}, results chan<- interface{}) error {
	p, ok := params.(MeshLoadParams)
	if !ok {
		return fmt.Errorf("failed to cast params to MeshLoadParams")
	}

	var err error
	if p.Reimport {
		err = p.Asset.Reimport()
	} else {
		err = p.Asset.Load()
	}
	if results != nil {
		results <- p
	}
	if err != nil {
		return fmt.Errorf("mesh load job '%s': %w", p.Asset.Name, err)
	}
	return nil
}

/**
 * @brief Called when the job completes successfully.
 *
 * @param results The parameters passed from the job after completion.
 */
func (mls *MeshLoaderSystem) meshLoadJobSuccess(results <-chan interface{}) {
	p, ok := (<-results).(MeshLoadParams)
	if !ok {
		core.LogError("failed to cast results to MeshLoadParams")
		return
	}
	core.LogDebug("Successfully loaded mesh '%s' (generation %d).", p.Asset.Name, p.Asset.Generation())
	if p.Done != nil {
		p.Done(nil)
	}
}

/**
 * @brief Called when the job fails.
 *
 * @param results Parameters passed when a job fails.
 */
func (mls *MeshLoaderSystem) meshLoadJobFail(results <-chan interface{}) {
	p, ok := (<-results).(MeshLoadParams)
	if !ok {
		core.LogError("failed to cast results to MeshLoadParams")
		return
	}
	core.LogError("Failed to load mesh '%s'.", p.Asset.Name)
	if p.Done != nil {
		p.Done(p.Asset.LastError())
	}
}
