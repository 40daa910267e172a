package schwab

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/elkingarcia11/market-data-api/internal/ports"
)

// EnvTokenProvider implements ports.TokenProvider from an environment
// variable. External tooling (the OAuth module) is expected to keep the
// variable's backing value current; Refresh re-reads it, which picks up a
// token rotated by that tooling without restarting the process.
type EnvTokenProvider struct {
	envVar string

	mu     sync.Mutex
	cached string
}

// NewEnvTokenProvider creates a provider reading the named env var.
func NewEnvTokenProvider(envVar string) *EnvTokenProvider {
	return &EnvTokenProvider{envVar: envVar}
}

// Token returns the cached token, reading the env var on first use.
func (p *EnvTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != "" {
		return p.cached, nil
	}
	return p.readLocked()
}

// Refresh discards the cached token and re-reads the env var.
func (p *EnvTokenProvider) Refresh(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = ""
	return p.readLocked()
}

func (p *EnvTokenProvider) readLocked() (string, error) {
	token := os.Getenv(p.envVar)
	if token == "" {
		return "", fmt.Errorf("%w: %s is not set", ports.ErrAuth, p.envVar)
	}
	p.cached = token
	return token, nil
}

// StaticTokenProvider serves a fixed token. Useful for tests and one-off
// runs with a short-lived token pasted into the job invocation.
type StaticTokenProvider struct {
	AccessToken string
}

func (p *StaticTokenProvider) Token(ctx context.Context) (string, error) {
	if p.AccessToken == "" {
		return "", fmt.Errorf("%w: empty static token", ports.ErrAuth)
	}
	return p.AccessToken, nil
}

func (p *StaticTokenProvider) Refresh(ctx context.Context) (string, error) {
	return p.Token(ctx)
}
