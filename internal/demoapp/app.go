// Package demoapp is the application bundled with the tails binary. It
// serves a small JSON API and exists so the orchestrator can be run end to
// end without a project of its own.
package demoapp

import (
	"context"
	"time"

	"github.com/opencode-ai/tails/pkg/app"
	"github.com/opencode-ai/tails/pkg/schema"
	"github.com/rs/zerolog"
)

// Name is the application's command-line name.
const Name = "demo"

// App is the demo application.
type App struct {
	// TickInterval is how often the clock worker logs.
	TickInterval time.Duration
}

// New creates the demo application.
func New() *App {
	return &App{TickInterval: 10 * time.Second}
}

func (a *App) Name() string { return Name }

// Serve runs the HTTP server until ctx is cancelled.
func (a *App) Serve(ctx context.Context, cfg app.RunConfig) error {
	return NewServer(cfg, a.Schema()).Run(ctx)
}

// Schema returns the demo tables.
func (a *App) Schema() schema.Definition {
	return schema.Definition{Tables: []schema.Table{
		{Name: "users", Columns: []schema.Column{
			{Name: "id", Type: "integer", PrimaryKey: true},
			{Name: "email", Type: "text"},
			{Name: "created_at", Type: "timestamp"},
		}},
		{Name: "posts", Columns: []schema.Column{
			{Name: "id", Type: "integer", PrimaryKey: true},
			{Name: "user_id", Type: "integer"},
			{Name: "title", Type: "text"},
			{Name: "body", Type: "text", Nullable: true},
		}},
	}}
}

// Worker returns the named background worker. The demo has one, "clock".
func (a *App) Worker(name string) (app.Worker, bool) {
	if name != "clock" {
		return nil, false
	}
	return a.clock, true
}

func (a *App) clock(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	ticker := time.NewTicker(a.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			logger.Info().Time("tick", t).Msg("clock")
		}
	}
}
