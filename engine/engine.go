package engine

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spaghettifunk/skinmesh/engine/assets"
	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/renderer"
	"github.com/spaghettifunk/skinmesh/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine has shut down
	EngineStageShutdown
)

// Engine ties the asset pipeline together: the job system, the asset
// manager and the renderer the assets upload to. Run keeps reimporting
// changed sources until the context ends.
type Engine struct {
	mu            sync.Mutex
	currentStage  Stage
	appConfig     *ApplicationConfig
	assetManager  *assets.AssetManager
	systemManager *systems.SystemManager
	backend       renderer.RendererBackend
	clock         *core.Clock
	metrics       *core.Metrics
}

func New(cfg *ApplicationConfig, backend renderer.RendererBackend) (*Engine, error) {
	core.SetLogLevel(cfg.LogLevel)

	sm, err := systems.NewSystemManager(cfg.Pipeline)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	am, err := assets.NewAssetManager(cfg.Pipeline, backend, sm.MeshLoader())
	if err != nil {
		core.LogError(err.Error())
		sm.Shutdown()
		return nil, err
	}

	return &Engine{
		currentStage:  EngineStageUninitialized,
		appConfig:     cfg,
		assetManager:  am,
		systemManager: sm,
		backend:       backend,
		clock:         core.NewClock(),
		metrics:       core.NewMetrics(),
	}, nil
}

func (e *Engine) Stage() Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentStage
}

func (e *Engine) setStage(s Stage) {
	e.mu.Lock()
	e.currentStage = s
	e.mu.Unlock()
}

func (e *Engine) Assets() *assets.AssetManager {
	return e.assetManager
}

// Initialize registers the asset definitions and loads every asset. Assets
// that fail to load are logged and stay registered.
func (e *Engine) Initialize() error {
	if e.Stage() != EngineStageUninitialized {
		return errors.New("engine already initialized")
	}
	e.setStage(EngineStageInitializing)

	if err := e.assetManager.Initialize(); err != nil {
		return err
	}

	e.clock.Start()
	if err := e.assetManager.LoadAll(); err != nil {
		core.LogWarn("%s: some assets failed to load: %v", e.appConfig.Name, err)
	}
	e.clock.Stop()
	core.LogInfo("%s: %d assets loaded in %d us.", e.appConfig.Name, len(e.assetManager.Names()), e.clock.Microseconds())

	e.setStage(EngineStageInitialized)
	return nil
}

// Run picks up changed sources every update interval until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	if e.Stage() != EngineStageInitialized {
		return errors.New("engine not initialized")
	}
	e.setStage(EngineStageRunning)

	ticker := time.NewTicker(e.appConfig.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.clock.Start()
			if n := e.assetManager.Update(); n > 0 {
				e.clock.Stop()
				e.metrics.Update(e.clock.Elapsed().Seconds())
				core.LogDebug("update reimported %d assets (avg %.3f ms).", n, e.metrics.AverageMS())
			}
		}
	}
}

func (e *Engine) Shutdown() error {
	e.setStage(EngineStageShuttingDown)
	if err := e.assetManager.Shutdown(); err != nil {
		return err
	}
	if err := e.systemManager.Shutdown(); err != nil {
		return err
	}
	e.setStage(EngineStageShutdown)
	return nil
}
