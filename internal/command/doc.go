// Package command parses orchestrator command lines and runs the commands.
//
// # Command Line
//
// A command line names one or more applications followed by a command and
// its flags:
//
//	tails ./apps/blog server --port 8000 --watch
//	tails blog shop migrate --dry-run
//
// The first argument that names a command ends the application list. Flags
// are parsed with spf13/pflag against the option schema of the command's
// Spec; anything that does not fit is an *ArgumentError and nothing runs.
//
// # Command Table
//
// Specs are collected once into a Table, which is immutable and handed to a
// Dispatcher. DefaultTable holds the built-in commands:
//
//   - build: run the bundler (webpack by default), waiting for it unless --watch
//   - migrate: apply pending schema changes, or show them with --dry-run
//   - reset: drop all tables and re-apply the schema
//   - server: run the application in a child process, reloading it with --watch
//   - test: run go test with TEST=1
//
// The hidden run and work commands are what the orchestrator executes in its
// own child processes to serve the application or run a worker.
//
// # Defaults From Configuration
//
// Values under "commands" in the configuration file fill options that were
// not given on the command line:
//
//	{"commands": {"server": {"port": 8000, "watch": true}}}
//
// # Blocking
//
// After Run returns, Outcome.Blocking tells the caller whether to stay up
// until interrupted. Commands register cleanups with Env.OnShutdown; the
// caller runs them with Env.Shutdown before the supervisor sweep.
package command
