package static

import (
	"context"
	"errors"
	"testing"

	"github.com/tjfontaine/authpipe/internal/core/domain"
)

func TestSource_Credential(t *testing.T) {
	got, err := New("abc123").Credential(context.Background())
	if err != nil {
		t.Fatalf("Credential() error = %v", err)
	}
	if got != "abc123" {
		t.Errorf("Credential() = %q, want abc123", got)
	}
}

func TestSource_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New("abc").Credential(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Credential() error = %v, want context.Canceled", err)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("AUTHPIPE_STATIC_TEST_TOKEN", "from-env")

	src, err := FromEnv("AUTHPIPE_STATIC_TEST_TOKEN")
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}

	// The value is captured at construction time.
	t.Setenv("AUTHPIPE_STATIC_TEST_TOKEN", "changed")
	got, err := src.Credential(context.Background())
	if err != nil {
		t.Fatalf("Credential() error = %v", err)
	}
	if got != "from-env" {
		t.Errorf("Credential() = %q, want from-env", got)
	}
}

func TestFromEnv_Unset(t *testing.T) {
	t.Setenv("AUTHPIPE_STATIC_TEST_BLANK", "  ")

	for _, name := range []string{"AUTHPIPE_STATIC_TEST_UNSET", "AUTHPIPE_STATIC_TEST_BLANK"} {
		_, err := FromEnv(name)
		var cfgErr *domain.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Errorf("FromEnv(%q) error = %v, want ConfigurationError", name, err)
		}
	}
}
