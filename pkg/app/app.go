// Package app defines what a host application exposes to the orchestrator.
//
// Applications are registered explicitly with a Registry; the orchestrator
// never loads code by name. An App only has to serve HTTP. Schema handling
// and background workers are optional capabilities discovered with type
// assertions.
package app

import (
	"context"
	"net"
	"strconv"

	"github.com/opencode-ai/tails/pkg/schema"
)

// App is a web application the orchestrator can run.
type App interface {
	// Name identifies the application on the command line.
	Name() string
	// Serve runs the application until ctx is cancelled.
	Serve(ctx context.Context, cfg RunConfig) error
}

// SchemaProvider is implemented by applications with persisted tables.
type SchemaProvider interface {
	Schema() schema.Definition
}

// MigratorProvider is implemented by applications that bring their own
// migration engine. Others get the orchestrator's file-backed migrator.
type MigratorProvider interface {
	Migrator() schema.Migrator
}

// Worker is a long-running background job.
type Worker func(ctx context.Context) error

// WorkerProvider is implemented by applications with background workers.
type WorkerProvider interface {
	Worker(name string) (Worker, bool)
}

// RunConfig is how a server generation is started. Every reload reuses the
// same values.
type RunConfig struct {
	App        string `json:"app"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Production bool   `json:"production"`
}

// Addr returns host:port.
func (c RunConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Mode returns "production" or "development".
func (c RunConfig) Mode() string {
	if c.Production {
		return "production"
	}
	return "development"
}
