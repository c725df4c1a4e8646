package engine

import (
	"time"

	"github.com/spaghettifunk/skinmesh/engine/config"
	"github.com/spaghettifunk/skinmesh/engine/core"
)

type ApplicationConfig struct {
	// The application name used in logs.
	Name     string
	LogLevel core.LogLevel
	// How often changed sources are picked up while running.
	UpdateInterval time.Duration
	Pipeline       *config.PipelineConfig
}

// NewApplicationConfig builds an application config around a pipeline
// config, taking the log level from it.
func NewApplicationConfig(name string, pipeline *config.PipelineConfig) (*ApplicationConfig, error) {
	level, err := core.ParseLogLevel(pipeline.LogLevel)
	if err != nil {
		return nil, err
	}
	return &ApplicationConfig{
		Name:           name,
		LogLevel:       level,
		UpdateInterval: 250 * time.Millisecond,
		Pipeline:       pipeline,
	}, nil
}
