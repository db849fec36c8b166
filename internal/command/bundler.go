package command

import (
	"cmp"
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"github.com/opencode-ai/tails/internal/supervisor"
	"mvdan.cc/sh/v3/shell"
)

const defaultBundlerConfig = "webpack.config.js"

// bundlerSpec builds the bundler invocation for dir. It reports false when
// the directory has nothing to bundle or the bundler is disabled.
//
// Without a configured command, a directory is bundled when it holds a
// webpack config; the project's local webpack is preferred over one on PATH.
// Production builds set NODE_ENV=production and pass -p; watch builds pass
// --watch.
func bundlerSpec(env *Env, dir string, production, watch bool) (supervisor.InvocationSpec, bool, error) {
	var path string
	var args []string
	vars := maps.Clone(env.ChildEnv)
	if vars == nil {
		vars = make(map[string]string)
	}

	cfg := env.Config
	switch {
	case cfg != nil && cfg.Bundler != nil && cfg.Bundler.Disable:
		return supervisor.InvocationSpec{}, false, nil

	case cfg != nil && cfg.Bundler != nil && cfg.Bundler.Command != "":
		fields, err := shell.Fields(cfg.Bundler.Command, lookupEnv(vars))
		if err != nil {
			return supervisor.InvocationSpec{}, false, fmt.Errorf("parse bundler command: %w", err)
		}
		if len(fields) == 0 {
			return supervisor.InvocationSpec{}, false, fmt.Errorf("bundler command is empty")
		}
		path, args = fields[0], fields[1:]
		if watch {
			args = append(args, "--watch")
		}

	default:
		configFile := defaultBundlerConfig
		if cfg != nil && cfg.Bundler != nil {
			configFile = cmp.Or(cfg.Bundler.ConfigFile, defaultBundlerConfig)
		}
		if _, err := os.Stat(filepath.Join(dir, configFile)); err != nil {
			return supervisor.InvocationSpec{}, false, nil
		}

		path = "webpack"
		local := filepath.Join(dir, "node_modules", "webpack", "bin", "webpack.js")
		if _, err := os.Stat(local); err == nil {
			path = local
		}
		args = []string{"--progress"}
		if configFile != defaultBundlerConfig {
			args = append(args, "--config", configFile)
		}
		if production {
			args = append(args, "-p")
		}
		if watch {
			args = append(args, "--watch")
		}
	}

	if production {
		vars["NODE_ENV"] = "production"
	}
	return supervisor.InvocationSpec{
		Name: "bundler",
		Path: path,
		Args: args,
		Env:  vars,
		Dir:  dir,
	}, true, nil
}

// lookupEnv expands variables in command strings from the child
// environment first, then the orchestrator's.
func lookupEnv(vars map[string]string) func(string) string {
	return func(name string) string {
		if v, ok := vars[name]; ok {
			return v
		}
		return os.Getenv(name)
	}
}
