package app

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
)

// NotFoundError reports a target that names no registered application.
type NotFoundError struct {
	Target     string
	Suggestion string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("unknown application %q", e.Target)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

// Registry is an immutable, ordered set of applications.
type Registry struct {
	apps []App
}

// NewRegistry registers apps in order. Names must be unique and non-empty.
func NewRegistry(apps ...App) (*Registry, error) {
	seen := make(map[string]bool, len(apps))
	for _, a := range apps {
		name := a.Name()
		if name == "" {
			return nil, fmt.Errorf("application with empty name")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate application %q", name)
		}
		seen[name] = true
	}
	return &Registry{apps: slices.Clone(apps)}, nil
}

// Lookup resolves a command-line target. A target may be the application
// name or a path whose last element is the name ("./apps/blog").
func (r *Registry) Lookup(target string) (App, error) {
	name := filepath.Base(filepath.Clean(target))
	for _, a := range r.apps {
		if a.Name() == name {
			return a, nil
		}
	}
	return nil, &NotFoundError{Target: target, Suggestion: Suggest(name, r.Names())}
}

// Has reports whether target resolves to an application.
func (r *Registry) Has(target string) bool {
	_, err := r.Lookup(target)
	return err == nil
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.apps))
	for _, a := range r.apps {
		names = append(names, a.Name())
	}
	return names
}

// Suggest returns the candidate closest to input, or "" when none is close
// enough to be a likely typo.
func Suggest(input string, candidates []string) string {
	best, bestDist := "", -1
	for _, c := range candidates {
		dist := levenshtein.ComputeDistance(strings.ToLower(input), strings.ToLower(c))
		if bestDist < 0 || dist < bestDist {
			best, bestDist = c, dist
		}
	}
	if bestDist < 0 || bestDist > max(2, len(input)/3) {
		return ""
	}
	return best
}
