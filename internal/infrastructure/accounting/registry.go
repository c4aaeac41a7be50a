package accounting

import (
	stdsync "sync"

	"go.uber.org/zap"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/config"
)

// Registry holds the configured provider clients, keyed by provider code.
type Registry struct {
	mu      stdsync.RWMutex
	clients map[accounting.ProviderCode]accounting.ProviderClient
}

// NewRegistry builds a registry from provider configuration. Disabled
// providers are skipped; misconfigured enabled providers fail construction so
// a bad deploy is caught at startup rather than on the first sync.
func NewRegistry(cfg config.ProvidersConfig, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{clients: make(map[accounting.ProviderCode]accounting.ProviderClient)}

	if cfg.Xero.Enabled {
		client, err := NewXeroClient(cfg.Xero)
		if err != nil {
			return nil, err
		}
		r.register(client)
	}
	if cfg.QuickBooks.Enabled {
		client, err := NewQuickBooksClient(cfg.QuickBooks)
		if err != nil {
			return nil, err
		}
		r.register(client)
	}
	if cfg.MYOB.Enabled {
		client, err := NewMYOBClient(cfg.MYOB)
		if err != nil {
			return nil, err
		}
		r.register(client)
	}

	for code := range r.clients {
		logger.Info("Accounting provider configured", zap.String("provider", code.String()))
	}
	return r, nil
}

// NewRegistryWithClients builds a registry from pre-constructed clients.
// Used by tests and by tooling that injects fake providers.
func NewRegistryWithClients(clients ...accounting.ProviderClient) *Registry {
	r := &Registry{clients: make(map[accounting.ProviderCode]accounting.ProviderClient)}
	for _, c := range clients {
		r.register(c)
	}
	return r
}

func (r *Registry) register(client accounting.ProviderClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.ProviderCode()] = client
}

// Client returns the provider client for the specified code.
func (r *Registry) Client(code accounting.ProviderCode) (accounting.ProviderClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[code]
	if !ok {
		return nil, accounting.ErrProviderNotConfigured
	}
	return client, nil
}

// Clients returns all registered provider clients.
func (r *Registry) Clients() []accounting.ProviderClient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]accounting.ProviderClient, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

// Ensure Registry implements ProviderRegistry interface
var _ accounting.ProviderRegistry = (*Registry)(nil)
