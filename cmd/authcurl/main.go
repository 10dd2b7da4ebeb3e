// authcurl sends requests through the credential pipeline described by a
// config file and reports, for each path, the response status and whether a
// credential was attached.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/authpipe/internal/client"
	"github.com/tjfontaine/authpipe/internal/core/domain"
	"github.com/tjfontaine/authpipe/internal/core/ports"
	"github.com/tjfontaine/authpipe/internal/pkg/config"
	"github.com/tjfontaine/authpipe/internal/runtime"
	"github.com/tjfontaine/authpipe/internal/telemetry"
)

type args struct {
	Config     string   `arg:"-c,--config" default:"config.yaml" help:"path to the config file"`
	Method     string   `arg:"-X,--request" default:"GET" help:"HTTP method"`
	Concurrent bool     `arg:"--concurrent" help:"send all paths at the same time"`
	Verbose    bool     `arg:"-v,--verbose" help:"debug logging"`
	Paths      []string `arg:"positional,required" help:"paths relative to client.base_url"`
}

func (args) Description() string {
	return `authcurl - send requests through the credential pipeline

Credentials are attached according to the auth section of the config file.
Environment variables prefixed with AUTHPIPE_ override config values and a
.env file in the working directory is loaded first.`
}

// result is what authcurl prints for each path.
type result struct {
	path   string
	status string
	authed bool
	err    error
}

func main() {
	var a args
	arg.MustParse(&a)

	// Load .env file if it exists
	_ = godotenv.Load()

	level := slog.LevelInfo
	if a.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(a.Config)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var opts []runtime.Option
	if cfg.Telemetry.Tracing {
		tp, shutdown, err := telemetry.InitTracer("authcurl", os.Stderr, logger)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
		opts = append(opts, runtime.WithTracerProvider(tp))
	}

	// Record whether the credential header left the client for each request.
	var mu sync.Mutex
	attached := make(map[string]bool)
	header := cfg.Auth.Header
	if header == "" {
		header = "Authorization"
	}
	opts = append(opts, runtime.WithStage(ports.StagePostResolve, "report",
		ports.HandlerFunc(func(ctx context.Context, rc *domain.RequestContext, next ports.Proceed) (*http.Response, error) {
			mu.Lock()
			attached[rc.ID] = rc.Header.Get(header) != ""
			mu.Unlock()
			return next(ctx)
		})))

	c, closeFn, err := runtime.NewClient(ctx, cfg, logger, opts...)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer closeFn()

	results := make([]result, len(a.Paths))
	send := func(ctx context.Context, i int) {
		path := a.Paths[i]
		id := fmt.Sprintf("authcurl-%d", i+1)
		results[i] = result{path: path}

		resp, err := c.Do(client.WithRequestID(ctx, id), &client.Request{Method: strings.ToUpper(a.Method), Path: path})
		if err != nil {
			results[i].err = err
			return
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		mu.Lock()
		results[i].authed = attached[id]
		mu.Unlock()
		results[i].status = resp.Status
	}

	if a.Concurrent {
		var g errgroup.Group
		for i := range a.Paths {
			g.Go(func() error {
				send(ctx, i)
				return nil
			})
		}
		g.Wait()
	} else {
		for i := range a.Paths {
			send(ctx, i)
		}
	}

	failed := false
	for _, r := range results {
		if r.err != nil {
			failed = true
			fmt.Printf("%s\terror\t%v\n", r.path, r.err)
			continue
		}
		fmt.Printf("%s\t%s\tcredential=%t\n", r.path, r.status, r.authed)
	}
	if failed {
		closeFn()
		os.Exit(1)
	}
}
