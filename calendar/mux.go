package calendar

import (
	"fmt"
	"sync"

	"github.com/larksync/larksync/internal"
)

// Mux resolves providers by role. One Mux is built per session so providers
// stay bound to that session's token store.
type Mux struct {
	mu        sync.Mutex
	providers map[internal.ProviderRole]internal.Provider
}

func NewMux() *Mux {
	return &Mux{
		providers: make(map[internal.ProviderRole]internal.Provider),
	}
}

func (m *Mux) Get(role internal.ProviderRole) (internal.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	provider, ok := m.providers[role]
	if !ok {
		return nil, fmt.Errorf("calendar provider %q is not registered", role)
	}
	return provider, nil
}

func (m *Mux) Register(role internal.ProviderRole, provider internal.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.providers[role] = provider
}
