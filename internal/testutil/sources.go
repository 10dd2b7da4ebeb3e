// Package testutil holds helpers shared by tests: VCR recorders and fake
// credential sources.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// StaticSource always returns Token.
type StaticSource struct {
	Token string
	calls atomic.Int32
}

// Credential implements ports.CredentialSource.
func (s *StaticSource) Credential(context.Context) (string, error) {
	s.calls.Add(1)
	return s.Token, nil
}

// Calls returns how often Credential was called.
func (s *StaticSource) Calls() int { return int(s.calls.Load()) }

// FailingSource always returns Err.
type FailingSource struct {
	Err   error
	calls atomic.Int32
}

// Credential implements ports.CredentialSource.
func (s *FailingSource) Credential(context.Context) (string, error) {
	s.calls.Add(1)
	return "", s.Err
}

// Calls returns how often Credential was called.
func (s *FailingSource) Calls() int { return int(s.calls.Load()) }

// SequenceSource returns Prefix followed by a counter, so every fetch yields
// a distinct credential. It records every value it handed out.
type SequenceSource struct {
	Prefix string

	mu     sync.Mutex
	issued []string
}

// Credential implements ports.CredentialSource.
func (s *SequenceSource) Credential(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := fmt.Sprintf("%s%d", s.Prefix, len(s.issued)+1)
	s.issued = append(s.issued, v)
	return v, nil
}

// Issued returns the credentials handed out so far.
func (s *SequenceSource) Issued() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.issued...)
}
