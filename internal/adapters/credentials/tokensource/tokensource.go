// Package tokensource adapts golang.org/x/oauth2 token sources into
// credential sources.
package tokensource

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Source yields the access token of an oauth2.TokenSource. Token reuse and
// refresh are left to the wrapped source.
type Source struct {
	ts oauth2.TokenSource
}

// New wraps ts. Tokens are reused until they expire.
func New(ts oauth2.TokenSource) *Source {
	return &Source{ts: oauth2.ReuseTokenSource(nil, ts)}
}

// ClientCredentialsConfig configures a client credentials grant.
type ClientCredentialsConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// ClientCredentials returns a source obtaining tokens with the client
// credentials grant. Token requests use httpClient when it is non-nil.
func ClientCredentials(ctx context.Context, cfg ClientCredentialsConfig, httpClient *http.Client) *Source {
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	// clientcredentials already reuses tokens until expiry.
	return &Source{ts: cc.TokenSource(ctx)}
}

type result struct {
	tok *oauth2.Token
	err error
}

// Credential returns the current access token. oauth2.TokenSource has no
// context parameter, so the call is abandoned (not cancelled) when ctx ends.
func (s *Source) Credential(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ch := make(chan result, 1)
	go func() {
		tok, err := s.ts.Token()
		ch <- result{tok: tok, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("failed to obtain token: %w", r.err)
		}
		return r.tok.AccessToken, nil
	}
}
