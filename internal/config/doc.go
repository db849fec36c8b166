// Package config provides configuration loading, merging, and path management for tails.
//
// # Configuration Loading
//
// Load merges configuration from, in increasing priority:
//
//  1. Global config (~/.config/tails/tails.{json,jsonc,yaml,yml})
//  2. Project config in the working directory
//  3. TAILS_CONFIG file
//  4. The file passed with --config
//  5. Environment variables (TAILS_LOG_LEVEL, TAILS_STATE_DIR)
//
// JSON files may carry comments (processed with tidwall/jsonc); .yaml and
// .yml files are decoded with gopkg.in/yaml.v3. All formats support
// {env:VAR_NAME} interpolation.
//
// Example:
//
//	{
//	  // defaults for options not given on the command line
//	  "commands": {
//	    "server": {"port": 8000, "watch": true}
//	  },
//	  "watcher": {"pattern": "**/*.{go,tmpl}", "ignore": ["node_modules/**"]},
//	  "supervisor": {"killGrace": "3s"},
//	  "env": {"DATABASE_URL": "{env:DEV_DATABASE_URL}"}
//	}
//
// Command defaults only fill options that were not set on the command line;
// flags always win.
//
// # Child Environment
//
// LoadEnv reads the application's .env file (or the configured envFile) with
// joho/godotenv and overlays the "env" map. The result is applied to every
// process the orchestrator starts for that application.
//
// # Path Management
//
// Paths follows the XDG Base Directory Specification:
//   - Config: ~/.config/tails (XDG_CONFIG_HOME)
//   - State: ~/.local/state/tails (XDG_STATE_HOME), holding applied schema state
package config
