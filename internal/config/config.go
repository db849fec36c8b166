package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/opencode-ai/tails/pkg/types"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ProjectFiles are the config file names looked up in a project directory, in order.
var ProjectFiles = []string{"tails.json", "tails.jsonc", "tails.yaml", "tails.yml"}

var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/tails/)
// 2. Project config (tails.json, tails.jsonc, tails.yaml, tails.yml in directory)
// 3. TAILS_CONFIG file
// 4. explicit file (the --config flag)
// 5. Environment variables
//
// Missing files are skipped. A file that exists but cannot be parsed is an error.
func Load(directory, explicit string) (*types.Config, error) {
	config := &types.Config{}

	loaded := make(map[string]bool)
	loadOnce := func(path string) error {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil
		}
		if loaded[absPath] {
			return nil
		}
		err = loadConfigFile(absPath, config)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		loaded[absPath] = true
		log.Debug().Str("path", absPath).Msg("loaded config file")
		return nil
	}

	globalPath := GetPaths().Config
	for _, name := range ProjectFiles {
		if err := loadOnce(filepath.Join(globalPath, name)); err != nil {
			return nil, err
		}
	}

	if directory != "" {
		for _, name := range ProjectFiles {
			if err := loadOnce(filepath.Join(directory, name)); err != nil {
				return nil, err
			}
		}
	}

	if configPath := os.Getenv("TAILS_CONFIG"); configPath != "" {
		if err := loadOnce(configPath); err != nil {
			return nil, err
		}
	}

	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			log.Warn().Str("path", explicit).Msg("config file not found, ignoring")
		} else if err := loadOnce(explicit); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// loadConfigFile loads a single config file, picking the decoder by extension.
func loadConfigFile(path string, config *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = interpolate(data)

	var fileConfig types.Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
	default:
		// Strip JSONC comments using tidwall/jsonc
		if err := json.Unmarshal(jsonc.ToJSON(data), &fileConfig); err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolate processes {env:VAR} placeholders.
func interpolate(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(varName)))
	})
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.EnvFile != "" {
		target.EnvFile = source.EnvFile
	}
	if source.StateDir != "" {
		target.StateDir = source.StateDir
	}

	// Merge command defaults key by key
	for name, defaults := range source.Commands {
		if target.Commands == nil {
			target.Commands = make(map[string]map[string]any)
		}
		if target.Commands[name] == nil {
			target.Commands[name] = make(map[string]any)
		}
		maps.Copy(target.Commands[name], defaults)
	}

	if source.Env != nil {
		if target.Env == nil {
			target.Env = make(map[string]string)
		}
		maps.Copy(target.Env, source.Env)
	}

	if source.Bundler != nil {
		target.Bundler = source.Bundler
	}
	if source.Watcher != nil {
		target.Watcher = source.Watcher
	}
	if source.Supervisor != nil {
		target.Supervisor = source.Supervisor
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) {
	if level := os.Getenv("TAILS_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
	if dir := os.Getenv("TAILS_STATE_DIR"); dir != "" {
		config.StateDir = dir
	}
}

// LoadEnv returns the environment overrides for child processes started
// for an application in dir: the dotenv file (config.EnvFile, default .env)
// overlaid with config.Env. A missing default .env is not an error; a
// missing explicitly configured file is.
func LoadEnv(dir string, config *types.Config) (map[string]string, error) {
	env := make(map[string]string)

	path := ".env"
	explicit := config != nil && config.EnvFile != ""
	if explicit {
		path = config.EnvFile
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}

	values, err := godotenv.Read(path)
	switch {
	case err == nil:
		maps.Copy(env, values)
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("env file %s: %w", path, err)
	}

	if config != nil {
		maps.Copy(env, config.Env)
	}
	return env, nil
}
