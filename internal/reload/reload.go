// Package reload keeps exactly one server process current and replaces it
// when sources change.
package reload

import (
	"context"
	"errors"
	"sync"

	"github.com/opencode-ai/tails/internal/event"
	"github.com/opencode-ai/tails/internal/supervisor"
	"github.com/opencode-ai/tails/internal/watcher"
	"github.com/opencode-ai/tails/pkg/app"
	"github.com/rs/zerolog/log"
)

// ErrStarted is returned by Start when a server generation is already current.
var ErrStarted = errors.New("server already started")

// Spawner starts and stops processes. *supervisor.Supervisor implements it.
type Spawner interface {
	Spawn(ctx context.Context, spec supervisor.InvocationSpec) (*supervisor.ManagedProcess, error)
	Terminate(ctx context.Context, p *supervisor.ManagedProcess) error
}

// Factory builds the invocation for a server generation.
type Factory func(cfg app.RunConfig) supervisor.InvocationSpec

// Option configures a Controller.
type Option func(*Controller)

// WithBus publishes reload.* events to bus.
func WithBus(bus *event.Bus) Option {
	return func(c *Controller) {
		c.bus = bus
	}
}

// Controller owns the current server process. Start and Reload are
// serialized, so overlapping triggers always act on the newest handle.
type Controller struct {
	spawner Spawner
	factory Factory
	cfg     app.RunConfig
	bus     *event.Bus

	mu         sync.Mutex
	current    *supervisor.ManagedProcess
	generation int
	stopped    bool
}

// New creates a Controller that runs cfg through factory.
func New(spawner Spawner, factory Factory, cfg app.RunConfig, opts ...Option) *Controller {
	c := &Controller{
		spawner: spawner,
		factory: factory,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start spawns the first server generation.
func (c *Controller) Start(ctx context.Context) (*supervisor.ManagedProcess, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return nil, ErrStarted
	}
	if err := c.spawn(ctx); err != nil {
		return nil, err
	}
	return c.current, nil
}

// Reload terminates the current server, waits until it has exited, and
// spawns a replacement from the same RunConfig. If the replacement cannot be
// started there is no current server until the next Reload succeeds.
func (c *Controller) Reload(ctx context.Context, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return nil
	}

	log.Info().Str("app", c.cfg.App).Str("reason", reason).Msg("reloading server")
	c.bus.Publish(event.Event{
		Type: event.ReloadStarted,
		Data: event.ReloadData{App: c.cfg.App, Reason: reason, Generation: c.generation},
	})

	if c.current != nil {
		if err := c.spawner.Terminate(ctx, c.current); err != nil {
			c.failed(reason, err)
			return err
		}
		c.current = nil
	}

	if err := c.spawn(ctx); err != nil {
		c.failed(reason, err)
		return err
	}

	c.bus.Publish(event.Event{
		Type: event.ReloadCompleted,
		Data: event.ReloadData{App: c.cfg.App, Reason: reason, Generation: c.generation, Pid: c.current.Pid()},
	})
	return nil
}

// spawn starts a generation. Callers hold mu.
func (c *Controller) spawn(ctx context.Context) error {
	p, err := c.spawner.Spawn(ctx, c.factory(c.cfg))
	if err != nil {
		return err
	}
	c.current = p
	c.generation++

	log.Debug().
		Str("app", c.cfg.App).
		Int("generation", c.generation).
		Int("pid", p.Pid()).
		Str("addr", c.cfg.Addr()).
		Msg("server started")
	return nil
}

func (c *Controller) failed(reason string, err error) {
	log.Error().Err(err).Str("app", c.cfg.App).Msg("reload failed")
	c.bus.Publish(event.Event{
		Type: event.ReloadFailed,
		Data: event.ReloadData{App: c.cfg.App, Reason: reason, Generation: c.generation, Error: err.Error()},
	})
}

// OnChange returns a watcher handler that reloads on every event. Errors are
// logged; the next change tries again.
func (c *Controller) OnChange(ctx context.Context) watcher.Handler {
	return func(ev watcher.Event) {
		// failures are already logged and published
		_ = c.Reload(ctx, ev.Rel)
	}
}

// Stop terminates the current server. Later reloads do nothing.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	if c.current == nil {
		return nil
	}
	err := c.spawner.Terminate(ctx, c.current)
	c.current = nil
	return err
}

// Current returns the current server process, or nil.
func (c *Controller) Current() *supervisor.ManagedProcess {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Generation returns how many server processes have been started.
func (c *Controller) Generation() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Config returns the RunConfig every generation is started with.
func (c *Controller) Config() app.RunConfig {
	return c.cfg
}
