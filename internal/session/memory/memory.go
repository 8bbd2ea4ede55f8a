// Package memory is an in-process session backend. Values are lost when
// the process exits.
package memory

import (
	"context"
	"sync"

	"expensedash/internal/session"
)

type Backend struct {
	mu     sync.RWMutex
	values map[string]string
}

func New() *Backend {
	return &Backend{values: make(map[string]string)}
}

func (b *Backend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	return v, ok, nil
}

func (b *Backend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	return nil
}

func (b *Backend) Delete(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.values, k)
	}
	return nil
}

// Provider keeps one Backend per namespace.
type Provider struct {
	mu       sync.Mutex
	backends map[string]*Backend
}

func NewProvider() *Provider {
	return &Provider{backends: make(map[string]*Backend)}
}

func (p *Provider) Backend(namespace string) session.Backend {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.backends[namespace]
	if !ok {
		b = New()
		p.backends[namespace] = b
	}
	return b
}

var (
	_ session.Backend  = (*Backend)(nil)
	_ session.Provider = (*Provider)(nil)
)
