package pipeline

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tjfontaine/authpipe/internal/core/domain"
	"github.com/tjfontaine/authpipe/internal/core/ports"
)

// Doer is implemented by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPTransmitter converts a processed request context into an
// *http.Request and sends it.
type HTTPTransmitter struct {
	client Doer
}

// NewHTTPTransmitter creates a transmitter. A nil client uses
// http.DefaultClient.
func NewHTTPTransmitter(client Doer) *HTTPTransmitter {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransmitter{client: client}
}

// Transmit implements ports.Transmitter.
func (t *HTTPTransmitter) Transmit(ctx context.Context, rc *domain.RequestContext) (*http.Response, error) {
	u := rc.URL()
	if u == nil {
		return nil, fmt.Errorf("transmit: %w", domain.ErrNotResolved)
	}

	req, err := http.NewRequestWithContext(ctx, rc.Method, u.String(), rc.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = rc.Header.Clone()

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

var _ ports.Transmitter = (*HTTPTransmitter)(nil)
