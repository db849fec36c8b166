//go:build unix

package reload

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/opencode-ai/tails/internal/supervisor"
	"github.com/opencode-ai/tails/internal/watcher"
	"github.com/opencode-ai/tails/pkg/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "TAILS_RELOAD_HELPER"

// bindFailed is the helper's exit status when the port is taken.
const bindFailed = 98

// TestMain doubles as a fake server: with helperEnv set the test binary binds
// ADDR and serves until killed.
func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "listen" {
		ln, err := net.Listen("tcp", os.Getenv("ADDR"))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(bindFailed)
		}
		for {
			conn, err := ln.Accept()
			if err != nil {
				os.Exit(1)
			}
			conn.Close()
		}
	}
	os.Exit(m.Run())
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// recordingSpawner wraps a Supervisor, remembers every process and config it
// was asked for, and counts spawns that happened while an earlier server was
// still alive.
type recordingSpawner struct {
	*supervisor.Supervisor

	mu       sync.Mutex
	procs    []*supervisor.ManagedProcess
	overlaps int
}

func (r *recordingSpawner) Spawn(ctx context.Context, spec supervisor.InvocationSpec) (*supervisor.ManagedProcess, error) {
	r.mu.Lock()
	for _, p := range r.procs {
		if p.Alive() {
			r.overlaps++
		}
	}
	r.mu.Unlock()

	p, err := r.Supervisor.Spawn(ctx, spec)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.procs = append(r.procs, p)
	r.mu.Unlock()
	return p, nil
}

func (r *recordingSpawner) all() []*supervisor.ManagedProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*supervisor.ManagedProcess(nil), r.procs...)
}

type configLog struct {
	mu      sync.Mutex
	configs []app.RunConfig
}

func (l *configLog) factory(cfg app.RunConfig) supervisor.InvocationSpec {
	l.mu.Lock()
	l.configs = append(l.configs, cfg)
	l.mu.Unlock()
	return supervisor.InvocationSpec{
		Name: "server",
		Path: os.Args[0],
		Env:  map[string]string{helperEnv: "listen", "ADDR": cfg.Addr()},
	}
}

func newController(t *testing.T, cfg app.RunConfig) (*Controller, *recordingSpawner, *configLog) {
	t.Helper()
	sup := supervisor.New(supervisor.WithKillGrace(2 * time.Second))
	t.Cleanup(func() { sup.TerminateAll() })

	spawner := &recordingSpawner{Supervisor: sup}
	configs := &configLog{}
	return New(spawner, configs.factory, cfg), spawner, configs
}

func dialable(addr string) func() bool {
	return func() bool {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}
}

func TestStartSpawnsFirstGeneration(t *testing.T) {
	cfg := app.RunConfig{App: "blog", Host: "127.0.0.1", Port: freePort(t)}
	c, _, _ := newController(t, cfg)

	p, err := c.Start(context.Background())
	require.NoError(t, err)
	assert.Same(t, p, c.Current())
	assert.Equal(t, 1, c.Generation())
	assert.Equal(t, cfg, c.Config())

	require.Eventually(t, dialable(cfg.Addr()), 5*time.Second, 20*time.Millisecond)

	_, err = c.Start(context.Background())
	assert.ErrorIs(t, err, ErrStarted)
}

func TestReloadReplacesServer(t *testing.T) {
	cfg := app.RunConfig{App: "blog", Host: "127.0.0.1", Port: freePort(t)}
	c, _, _ := newController(t, cfg)

	first, err := c.Start(context.Background())
	require.NoError(t, err)
	require.Eventually(t, dialable(cfg.Addr()), 5*time.Second, 20*time.Millisecond)

	require.NoError(t, c.Reload(context.Background(), "main.go"))

	second := c.Current()
	require.NotNil(t, second)
	assert.NotEqual(t, first.Pid(), second.Pid())
	assert.False(t, first.Alive(), "old generation must have exited before the swap")
	assert.Equal(t, 2, c.Generation())

	require.Eventually(t, dialable(cfg.Addr()), 5*time.Second, 20*time.Millisecond)
	assert.True(t, second.Alive(), "replacement must bind the freed port")
}

// Rapid change events serialize: at settle exactly one server is alive, no
// two generations ever overlapped, and every generation got the startup
// config.
func TestRapidReloadsSettleOnOneServer(t *testing.T) {
	cfg := app.RunConfig{App: "blog", Host: "127.0.0.1", Port: freePort(t), Production: true}
	c, spawner, configs := newController(t, cfg)

	_, err := c.Start(context.Background())
	require.NoError(t, err)

	const n = 12
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.Reload(context.Background(), fmt.Sprintf("file%d.go", i)))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n+1, c.Generation())
	assert.Zero(t, spawner.overlaps)

	var live []*supervisor.ManagedProcess
	for _, p := range spawner.all() {
		if p.Alive() {
			live = append(live, p)
		}
	}
	require.Len(t, live, 1)
	assert.Same(t, c.Current(), live[0])

	configs.mu.Lock()
	for _, got := range configs.configs {
		assert.Equal(t, cfg, got)
	}
	configs.mu.Unlock()

	require.Eventually(t, dialable(cfg.Addr()), 5*time.Second, 20*time.Millisecond)
}

// Reloading before the previous generation finished starting must still wait
// for it to exit, so no replacement ever fails to bind the port.
func TestReloadMidStartupNeverDoubleBinds(t *testing.T) {
	cfg := app.RunConfig{App: "blog", Host: "127.0.0.1", Port: freePort(t)}
	c, spawner, _ := newController(t, cfg)

	_, err := c.Start(context.Background())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Reload(context.Background(), "startup"))
	}

	require.Eventually(t, dialable(cfg.Addr()), 5*time.Second, 20*time.Millisecond)

	// let a late bind failure surface before inspecting exit codes
	time.Sleep(200 * time.Millisecond)
	for _, p := range spawner.all() {
		assert.NotEqual(t, bindFailed, p.ExitCode(), "generation pid %d could not bind", p.Pid())
	}
	assert.True(t, c.Current().Alive())
}

func TestReloadAfterFailedSpawnRetries(t *testing.T) {
	sup := supervisor.New()
	t.Cleanup(func() { sup.TerminateAll() })

	var mu sync.Mutex
	path := "/nonexistent/server"
	factory := func(app.RunConfig) supervisor.InvocationSpec {
		mu.Lock()
		defer mu.Unlock()
		return supervisor.InvocationSpec{Path: path, Args: []string{"30"}}
	}
	c := New(sup, factory, app.RunConfig{App: "blog"})

	_, err := c.Start(context.Background())
	var spawnErr *supervisor.SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Nil(t, c.Current())

	mu.Lock()
	path = "sleep"
	mu.Unlock()

	require.NoError(t, c.Reload(context.Background(), "fixed.go"))
	require.NotNil(t, c.Current())
	assert.True(t, c.Current().Alive())
}

func TestStopPreventsFurtherReloads(t *testing.T) {
	sup := supervisor.New()
	t.Cleanup(func() { sup.TerminateAll() })

	factory := func(app.RunConfig) supervisor.InvocationSpec {
		return supervisor.InvocationSpec{Path: "sleep", Args: []string{"30"}}
	}
	c := New(sup, factory, app.RunConfig{App: "blog"})

	p, err := c.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Stop(context.Background()))
	assert.False(t, p.Alive())
	assert.Nil(t, c.Current())

	require.NoError(t, c.Reload(context.Background(), "late.go"))
	assert.Nil(t, c.Current())
	assert.Empty(t, sup.Processes())
}

func TestReloadCancelledContext(t *testing.T) {
	c := New(nil, nil, app.RunConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Reload(ctx, "main.go")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestOnChangeReloads(t *testing.T) {
	sup := supervisor.New()
	t.Cleanup(func() { sup.TerminateAll() })

	factory := func(app.RunConfig) supervisor.InvocationSpec {
		return supervisor.InvocationSpec{Path: "sleep", Args: []string{"30"}}
	}
	c := New(sup, factory, app.RunConfig{App: "blog"})
	_, err := c.Start(context.Background())
	require.NoError(t, err)

	handler := c.OnChange(context.Background())
	handler(watcher.Event{Rel: "handlers/health.go"})
	handler(watcher.Event{Rel: "handlers/health.go"})

	assert.Equal(t, 3, c.Generation())
	assert.Len(t, sup.Processes(), 1)
}
