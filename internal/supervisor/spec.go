package supervisor

import (
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// InvocationSpec describes how to launch a process. Spawn copies it, so
// later changes by the caller do not affect a running process.
type InvocationSpec struct {
	// Name labels the process in logs and events; defaults to the base of Path.
	Name string
	// Path is the executable, resolved through PATH when it has no separator.
	Path string
	Args []string
	// Env overrides entries of the orchestrator's own environment.
	Env map[string]string
	// Dir is the working directory; empty means the orchestrator's.
	Dir string

	// Stdout and Stderr default to the orchestrator's.
	Stdout io.Writer
	Stderr io.Writer
}

// Label returns the name used for the process in logs.
func (s InvocationSpec) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return filepath.Base(s.Path)
}

// String renders the command line.
func (s InvocationSpec) String() string {
	return strings.Join(append([]string{s.Path}, s.Args...), " ")
}

func (s InvocationSpec) clone() InvocationSpec {
	s.Args = slices.Clone(s.Args)
	s.Env = maps.Clone(s.Env)
	return s
}

// environ returns the orchestrator environment with Env applied on top.
// exec.Cmd keeps the last value of a duplicated key.
func (s InvocationSpec) environ() []string {
	env := os.Environ()
	for _, key := range slices.Sorted(maps.Keys(s.Env)) {
		env = append(env, key+"="+s.Env[key])
	}
	return env
}
