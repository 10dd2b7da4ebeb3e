package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/authpipe/internal/adapters/credentials/sqlite"
	"github.com/tjfontaine/authpipe/internal/core/domain"
	"github.com/tjfontaine/authpipe/internal/core/ports"
	"github.com/tjfontaine/authpipe/internal/pkg/config"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// newAPIServer serves /oauth/token and reports the Authorization header of
// every other request.
func newAPIServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var tokenCalls atomic.Int32

	r := chi.NewRouter()
	r.Post("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "oauth-token",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	r.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("Authorization")))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, &tokenCalls
}

func baseConfig(baseURL string) *config.Config {
	return &config.Config{
		Client: config.ClientConfig{BaseURL: baseURL, Timeout: "5s"},
		Auth: config.AuthConfig{
			Header:    "Authorization",
			Scheme:    "Bearer",
			OnError:   "abort",
			DenyPaths: []string{"/auth/login"},
		},
		Credentials: config.CredentialsConfig{Type: "static", Token: "static-token"},
	}
}

func authHeaderFor(t *testing.T, ctx context.Context, get func(context.Context, string) (*http.Response, error), path string) string {
	t.Helper()
	resp, err := get(ctx, path)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestNewClient_CredentialTypes(t *testing.T) {
	srv, tokenCalls := newAPIServer(t)

	dbPath := filepath.Join(t.TempDir(), "creds.db")
	store, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("sqlite.New() error = %v", err)
	}
	if err := store.Put(context.Background(), "api", "sqlite-token", time.Time{}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	store.Close()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "static",
			mutate: func(*config.Config) {},
			want:   "Bearer static-token",
		},
		{
			name: "sqlite with cache",
			mutate: func(c *config.Config) {
				c.Credentials = config.CredentialsConfig{
					Type:     "sqlite",
					CacheTTL: "1m",
					SQLite:   config.SQLiteConfig{Path: dbPath, Name: "api"},
				}
			},
			want: "Bearer sqlite-token",
		},
		{
			name: "oauth2",
			mutate: func(c *config.Config) {
				c.Credentials = config.CredentialsConfig{
					Type: "oauth2",
					OAuth2: config.OAuth2Config{
						ClientID:     "client",
						ClientSecret: "secret",
						TokenURL:     srv.URL + "/oauth/token",
					},
				}
			},
			want: "Bearer oauth-token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig(srv.URL)
			tt.mutate(cfg)

			c, closeFn, err := NewClient(context.Background(), cfg, discardLogger, WithHTTPClient(srv.Client()))
			if err != nil {
				t.Fatalf("NewClient() error = %v", err)
			}
			defer func() {
				if err := closeFn(); err != nil {
					t.Errorf("close error = %v", err)
				}
			}()

			ctx := context.Background()
			if got := authHeaderFor(t, ctx, c.Get, "/users/me"); got != tt.want {
				t.Errorf("Authorization = %q, want %q", got, tt.want)
			}
			if got := authHeaderFor(t, ctx, c.Get, "/auth/login"); got != "" {
				t.Errorf("Authorization on deny-listed path = %q, want none", got)
			}
		})
	}

	if n := tokenCalls.Load(); n != 1 {
		t.Errorf("token endpoint called %d times, want 1", n)
	}
}

func TestNewClient_Predicate(t *testing.T) {
	srv, _ := newAPIServer(t)

	cfg := baseConfig(srv.URL)
	cfg.Auth.DenyPaths = nil
	cfg.Auth.Predicate = config.PredicateConfig{Globs: []string{"/api/**"}}

	c, closeFn, err := NewClient(context.Background(), cfg, discardLogger, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer closeFn()

	ctx := context.Background()
	if got := authHeaderFor(t, ctx, c.Get, "/api/items"); got != "Bearer static-token" {
		t.Errorf("Authorization = %q", got)
	}
	if got := authHeaderFor(t, ctx, c.Get, "/public"); got != "" {
		t.Errorf("Authorization on unmatched path = %q", got)
	}
}

// Without a predicate or deny list nothing is attached.
func TestNewClient_FailsClosedWithoutRules(t *testing.T) {
	srv, _ := newAPIServer(t)

	cfg := baseConfig(srv.URL)
	cfg.Auth.DenyPaths = nil

	c, closeFn, err := NewClient(context.Background(), cfg, discardLogger, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer closeFn()

	if got := authHeaderFor(t, context.Background(), c.Get, "/users/me"); got != "" {
		t.Errorf("Authorization = %q, want none", got)
	}
}

func TestNewClient_FetchPolicy(t *testing.T) {
	srv, _ := newAPIServer(t)
	failing := ports.CredentialSourceFunc(func(context.Context) (string, error) {
		return "", errors.New("vault sealed")
	})

	t.Run("abort", func(t *testing.T) {
		c, closeFn, err := NewClient(context.Background(), baseConfig(srv.URL), discardLogger,
			WithHTTPClient(srv.Client()), WithCredentialSource(failing))
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		defer closeFn()

		if _, err := c.Get(context.Background(), "/users/me"); !domain.IsCredentialFetch(err) {
			t.Errorf("Get() error = %v, want CredentialFetchError", err)
		}
	})

	t.Run("proceed", func(t *testing.T) {
		cfg := baseConfig(srv.URL)
		cfg.Auth.OnError = "proceed"

		c, closeFn, err := NewClient(context.Background(), cfg, discardLogger,
			WithHTTPClient(srv.Client()), WithCredentialSource(failing))
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		defer closeFn()

		if got := authHeaderFor(t, context.Background(), c.Get, "/users/me"); got != "" {
			t.Errorf("Authorization = %q, want none", got)
		}
	})
}

func TestNewClient_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{name: "missing base url", mutate: func(c *config.Config) { c.Client.BaseURL = "" }, field: "client.base_url"},
		{name: "relative base url", mutate: func(c *config.Config) { c.Client.BaseURL = "/api" }, field: "base_url"},
		{name: "bad policy", mutate: func(c *config.Config) { c.Auth.OnError = "retry" }, field: "on_error"},
		{name: "bad glob", mutate: func(c *config.Config) { c.Auth.Predicate.Globs = []string{"[a-"} }, field: "auth.predicate.globs"},
		{name: "bad header", mutate: func(c *config.Config) { c.Auth.Header = "Bad Header" }, field: "header"},
		{name: "static without token", mutate: func(c *config.Config) { c.Credentials.Token = "" }, field: "credentials.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig("https://api.example.com")
			tt.mutate(cfg)

			_, _, err := NewClient(context.Background(), cfg, discardLogger)
			var cfgErr *domain.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("NewClient() error = %v, want ConfigurationError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}

// Default query parameters are merged before resolution, so the predicate
// sees them.
func TestNewClient_DefaultQuery(t *testing.T) {
	srv, _ := newAPIServer(t)

	cfg := baseConfig(srv.URL)
	cfg.Auth.DenyPaths = nil
	cfg.Auth.Predicate = config.PredicateConfig{Expression: `"api_version" in query`}
	cfg.Client.Query = map[string]string{"api_version": "2"}
	cfg.Client.Headers = map[string]string{"Accept": "application/json"}

	c, closeFn, err := NewClient(context.Background(), cfg, discardLogger, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer closeFn()

	if got := authHeaderFor(t, context.Background(), c.Get, "/users/me"); got != "Bearer static-token" {
		t.Errorf("Authorization = %q, want Bearer static-token", got)
	}

	steps := c.Steps()
	want := []string{"request-id", "user-agent", "default-headers", "default-query", "resolve", "bearer-auth"}
	if len(steps) != len(want) {
		t.Fatalf("Steps() = %v, want %v", steps, want)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("Steps()[%d] = %q, want %q", i, steps[i], want[i])
		}
	}
}
