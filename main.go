/*
skinmesh imports skinned meshes, caches them and answers animation and
ray queries against them from the command line.

	skinmesh create  -name hero -mesh models/hero.gltf -out assets/hero.toml
	skinmesh import  [-config pipeline.toml] models/hero.gltf ...
	skinmesh inspect [-dump] models/hero.gltf
	skinmesh sample  -anim 0 -time 1.5 models/hero.gltf
	skinmesh raycast -from 0,0,-5 -to 0,0,5 models/hero.gltf
	skinmesh watch   -config pipeline.toml
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/skinmesh/engine"
	"github.com/spaghettifunk/skinmesh/engine/config"
	"github.com/spaghettifunk/skinmesh/engine/core"
	"github.com/spaghettifunk/skinmesh/engine/renderer/headless"
)

type command struct {
	name    string
	summary string
	run     func(args []string, stdout io.Writer) error
}

var commands = []command{
	{"create", "write an asset definition file", runCreate},
	{"import", "import model files and fill the cache", runImport},
	{"inspect", "print a summary of a mesh asset", runInspect},
	{"sample", "print the bone transforms of an animation at a time", runSample},
	{"raycast", "intersect a segment with a mesh asset", runRaycast},
	{"watch", "load every asset definition and reimport on change", runWatch},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: skinmesh <command> [flags] [args]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	name := os.Args[1]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(os.Args[2:], os.Stdout); err != nil {
			core.LogFatal("%s: %v", name, err)
		}
		return
	}

	if name == "-h" || name == "--help" || name == "help" {
		usage(os.Stdout)
		return
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
	usage(os.Stderr)
	os.Exit(2)
}

func runWatch(args []string, stdout io.Writer) error {
	fs := newFlagSet("watch")
	p := addPipelineFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := p.load()
	if err != nil {
		return err
	}
	cfg.WatchSources = true

	appCfg, err := engine.NewApplicationConfig("skinmesh", cfg)
	if err != nil {
		return err
	}
	e, err := engine.New(appCfg, headless.NewBackend())
	if err != nil {
		return err
	}
	if err := e.Initialize(); err != nil {
		e.Shutdown()
		return err
	}

	// signal channel to capture system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	fmt.Fprintf(stdout, "watching %d assets, press ctrl-c to stop\n", len(e.Assets().Names()))
	if err := e.Run(ctx); err != nil {
		e.Shutdown()
		return err
	}
	return e.Shutdown()
}

// pipelineFlags are the flags every command that loads meshes accepts.
type pipelineFlags struct {
	configPath *string
	cacheDir   *string
	noCache    *bool
	logLevel   *string
	quiet      *bool
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func addPipelineFlags(fs *flag.FlagSet) *pipelineFlags {
	return &pipelineFlags{
		configPath: fs.String("config", "", "pipeline config file (TOML)"),
		cacheDir:   fs.String("cache", "", "cache directory, overrides the config"),
		noCache:    fs.Bool("no-cache", false, "neither read nor write the cache"),
		logLevel:   fs.String("log-level", "", "debug, info, warn or error, overrides the config"),
		quiet:      fs.Bool("quiet", false, "only log errors"),
	}
}

func (p *pipelineFlags) load() (*config.PipelineConfig, error) {
	cfg := config.DefaultPipelineConfig()
	if *p.configPath != "" {
		var err error
		if cfg, err = config.LoadPipelineConfig(*p.configPath); err != nil {
			return nil, err
		}
	}
	if *p.cacheDir != "" {
		cfg.CacheDir = *p.cacheDir
	}
	if *p.noCache {
		cfg.CacheDir = ""
	}
	if *p.logLevel != "" {
		cfg.LogLevel = *p.logLevel
	}
	if *p.quiet {
		cfg.LogLevel = "error"
	}

	level, err := core.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	core.SetLogLevel(level)
	return cfg, nil
}
