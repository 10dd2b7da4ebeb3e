package domain

import (
	"errors"
	"net/http"
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q) error = %v", raw, err)
	}
	return u
}

func TestRequestContext_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		target   string
		wantURL  string
		wantPath string
		wantErr  bool
	}{
		{
			name:     "relative path against base",
			base:     "https://api.example.com/v1/",
			target:   "users/me",
			wantURL:  "https://api.example.com/v1/users/me",
			wantPath: "/v1/users/me",
		},
		{
			name:     "absolute path replaces base path",
			base:     "https://api.example.com/v1/",
			target:   "/auth/login",
			wantURL:  "https://api.example.com/auth/login",
			wantPath: "/auth/login",
		},
		{
			name:     "absolute target ignores base",
			base:     "https://api.example.com",
			target:   "https://other.example.com/x?a=1",
			wantURL:  "https://other.example.com/x?a=1",
			wantPath: "/x",
		},
		{
			name:     "empty path normalises to slash",
			base:     "https://api.example.com",
			target:   "",
			wantURL:  "https://api.example.com/",
			wantPath: "/",
		},
		{
			name:    "relative target without base",
			target:  "/users/me",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := NewRequestContext(http.MethodGet, tt.target, nil)
			if err != nil {
				t.Fatalf("NewRequestContext() error = %v", err)
			}

			var base *url.URL
			if tt.base != "" {
				base = mustParse(t, tt.base)
			}

			err = rc.Resolve(base)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrNotResolved) {
					t.Errorf("Resolve() error = %v, want ErrNotResolved", err)
				}
				if rc.Resolved() {
					t.Error("context should stay unresolved after failure")
				}
				return
			}

			if got := rc.URL().String(); got != tt.wantURL {
				t.Errorf("URL() = %q, want %q", got, tt.wantURL)
			}
			if got := rc.View().Path; got != tt.wantPath {
				t.Errorf("View().Path = %q, want %q", got, tt.wantPath)
			}
		})
	}
}

func TestRequestContext_URLIsFinalAfterResolve(t *testing.T) {
	rc, err := NewRequestContext(http.MethodGet, "/users/me", nil)
	if err != nil {
		t.Fatalf("NewRequestContext() error = %v", err)
	}
	if err := rc.SetQuery(url.Values{"page": {"2"}}); err != nil {
		t.Fatalf("SetQuery() before resolve error = %v", err)
	}
	if err := rc.Resolve(mustParse(t, "https://api.example.com")); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if err := rc.SetTarget("/other"); !errors.Is(err, ErrURLFinal) {
		t.Errorf("SetTarget() error = %v, want ErrURLFinal", err)
	}
	if err := rc.SetQuery(url.Values{"x": {"y"}}); !errors.Is(err, ErrURLFinal) {
		t.Errorf("SetQuery() error = %v, want ErrURLFinal", err)
	}
	if err := rc.Resolve(mustParse(t, "https://evil.example.com")); !errors.Is(err, ErrURLFinal) {
		t.Errorf("second Resolve() error = %v, want ErrURLFinal", err)
	}

	got := rc.URL()
	if got.String() != "https://api.example.com/users/me?page=2" {
		t.Errorf("URL() = %q", got)
	}

	// Mutating the returned copy must not leak into the context.
	got.Path = "/mutated"
	if rc.URL().Path != "/users/me" {
		t.Errorf("URL() copy leaked mutation: %q", rc.URL().Path)
	}
}

func TestRequestContext_ViewBeforeResolveIsPlaceholder(t *testing.T) {
	rc, err := NewRequestContext(http.MethodPost, "/users/me", nil)
	if err != nil {
		t.Fatalf("NewRequestContext() error = %v", err)
	}

	v := rc.View()
	if v.Resolved {
		t.Error("View().Resolved = true before resolution")
	}
	if v.Path != "" || v.Host != "" || v.RawQuery != "" {
		t.Errorf("View() URL fields = %q %q %q, want empty placeholder", v.Host, v.Path, v.RawQuery)
	}
	if v.Method != http.MethodPost {
		t.Errorf("View().Method = %q, want POST", v.Method)
	}
	if rc.URL() != nil {
		t.Error("URL() should be nil before resolution")
	}
}

func TestRequestContext_ViewIsSnapshot(t *testing.T) {
	rc, err := NewRequestContext("", "https://api.example.com/a%2Fb?q=1", nil)
	if err != nil {
		t.Fatalf("NewRequestContext() error = %v", err)
	}
	if rc.Method != http.MethodGet {
		t.Errorf("default method = %q, want GET", rc.Method)
	}
	rc.Header.Set("X-Trace", "1")
	if err := rc.Resolve(nil); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	v := rc.View()
	v.Header.Set("X-Trace", "changed")
	v.Query.Set("q", "changed")

	if rc.Header.Get("X-Trace") != "1" {
		t.Error("View().Header mutation leaked into context")
	}
	if rc.URL().Query().Get("q") != "1" {
		t.Error("View().Query mutation leaked into context")
	}
	if v.Path != "/a/b" {
		t.Errorf("View().Path = %q, want decoded /a/b", v.Path)
	}
	if v.RawPath != "/a%2Fb" {
		t.Errorf("View().RawPath = %q, want /a%%2Fb", v.RawPath)
	}
}

func TestFromHTTPRequest(t *testing.T) {
	req, err := http.NewRequest(http.MethodDelete, "https://api.example.com/items/7", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Accept", "application/json")

	rc, err := FromHTTPRequest(req)
	if err != nil {
		t.Fatalf("FromHTTPRequest() error = %v", err)
	}
	if !rc.Resolved() {
		t.Fatal("context from http request should be resolved")
	}
	rc.Header.Set("Authorization", "Bearer x")
	if req.Header.Get("Authorization") != "" {
		t.Error("header mutation leaked into source request")
	}
	if rc.View().Path != "/items/7" || rc.Method != http.MethodDelete {
		t.Errorf("unexpected view %+v", rc.View())
	}

	relative := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: "/x"}}
	if _, err := FromHTTPRequest(relative); !errors.Is(err, ErrNotResolved) {
		t.Errorf("FromHTTPRequest(relative) error = %v, want ErrNotResolved", err)
	}
}
