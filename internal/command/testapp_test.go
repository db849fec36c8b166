package command

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/opencode-ai/tails/pkg/app"
	"github.com/opencode-ai/tails/pkg/schema"
)

// testApp serves a tiny HTTP handler, has a two-table schema and one worker.
type testApp struct {
	name string
}

func (a *testApp) Name() string { return a.name }

func (a *testApp) Serve(ctx context.Context, cfg app.RunConfig) error {
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(cfg.Mode()))
	})}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *testApp) Schema() schema.Definition {
	return schema.Definition{Tables: []schema.Table{
		{Name: "users", Columns: []schema.Column{
			{Name: "id", Type: "integer", PrimaryKey: true},
			{Name: "email", Type: "text"},
		}},
		{Name: "posts", Columns: []schema.Column{
			{Name: "id", Type: "integer", PrimaryKey: true},
			{Name: "title", Type: "text"},
		}},
	}}
}

func (a *testApp) Worker(name string) (app.Worker, bool) {
	if name != "mailer" {
		return nil, false
	}
	return func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}, true
}
