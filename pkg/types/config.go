package types

import "time"

// DefaultKillGrace is how long a terminated child may take to exit after
// SIGTERM before the supervisor sends SIGKILL.
const DefaultKillGrace = 5 * time.Second

// Config represents the tails configuration file (tails.json, tails.jsonc or tails.yaml).
type Config struct {
	// Schema reference (for editor support)
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Log level used when --log-level is not given
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`

	// Per-command option defaults, keyed by command then option name.
	// Values only fill options that were not set on the command line.
	Commands map[string]map[string]any `json:"commands,omitempty" yaml:"commands,omitempty"`

	// Bundler invocation
	Bundler *BundlerConfig `json:"bundler,omitempty" yaml:"bundler,omitempty"`

	// Change watcher
	Watcher *WatcherConfig `json:"watcher,omitempty" yaml:"watcher,omitempty"`

	// Process supervision
	Supervisor *SupervisorConfig `json:"supervisor,omitempty" yaml:"supervisor,omitempty"`

	// Dotenv file merged into every child process environment.
	// Relative paths resolve against the application directory.
	EnvFile string `json:"envFile,omitempty" yaml:"envFile,omitempty"`

	// Environment overrides for every child process
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// Directory holding applied schema state; defaults to the XDG state dir.
	StateDir string `json:"stateDir,omitempty" yaml:"stateDir,omitempty"`
}

// BundlerConfig holds bundler configuration.
type BundlerConfig struct {
	// Command overrides bundler detection, e.g. "npx vite build".
	Command string `json:"command,omitempty" yaml:"command,omitempty"`
	// ConfigFile marks a directory as bundled; defaults to webpack.config.js.
	ConfigFile string `json:"configFile,omitempty" yaml:"configFile,omitempty"`
	// Disable skips the bundler entirely.
	Disable bool `json:"disable,omitempty" yaml:"disable,omitempty"`
}

// WatcherConfig holds file watcher configuration.
type WatcherConfig struct {
	Pattern string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Ignore  []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`
}

// SupervisorConfig holds process supervision settings.
type SupervisorConfig struct {
	// KillGrace is a Go duration string, e.g. "3s".
	KillGrace string `json:"killGrace,omitempty" yaml:"killGrace,omitempty"`
}

// KillGrace returns the configured grace period or DefaultKillGrace.
func (c *Config) KillGrace() time.Duration {
	if c == nil || c.Supervisor == nil || c.Supervisor.KillGrace == "" {
		return DefaultKillGrace
	}
	d, err := time.ParseDuration(c.Supervisor.KillGrace)
	if err != nil || d <= 0 {
		return DefaultKillGrace
	}
	return d
}

// CommandDefaults returns the option defaults configured for a command.
func (c *Config) CommandDefaults(command string) map[string]any {
	if c == nil || c.Commands == nil {
		return nil
	}
	return c.Commands[command]
}
