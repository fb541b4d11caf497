// Package token manages the OAuth credential lifecycle for one
// configuration. Each session owns one Store; nothing is shared across
// sessions.
package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/larksync/larksync/internal"
)

// Storage persists a configuration after its credentials change. A refreshed
// token is saved before it is handed to any caller, so a crash right after a
// refresh never loses a freshly issued token.
type Storage interface {
	Save(ctx context.Context, cfg *internal.Config) error
}

// Refresher exchanges a refresh token for a new credential at one provider's
// token endpoint.
type Refresher interface {
	Refresh(ctx context.Context, cred internal.Credential) (internal.Credential, error)
}

// Store hands out valid credentials for both providers of one
// configuration, refreshing expired ones on demand. Refreshes are
// single-flight per provider: the per-role mutex serializes them, and
// waiters re-check validity under the lock so only the first caller pays
// the network call.
type Store struct {
	cfg        *internal.Config
	storage    Storage
	refreshers map[internal.ProviderRole]Refresher

	mu  map[internal.ProviderRole]*sync.Mutex
	now func() time.Time
}

func NewStore(cfg *internal.Config, storage Storage, refreshers map[internal.ProviderRole]Refresher) *Store {
	mu := make(map[internal.ProviderRole]*sync.Mutex, len(refreshers))
	for role := range refreshers {
		mu[role] = new(sync.Mutex)
	}
	return &Store{
		cfg:        cfg,
		storage:    storage,
		refreshers: refreshers,
		mu:         mu,
		now:        time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Token returns a valid credential for role, refreshing it first when
// expired. A credential that cannot be refreshed fails with an *AuthError
// satisfying errors.Is(err, internal.ErrReauthRequired).
func (s *Store) Token(ctx context.Context, role internal.ProviderRole) (internal.Credential, error) {
	mu, ok := s.mu[role]
	if !ok {
		return internal.Credential{}, fmt.Errorf("token: no refresher registered for %s", role)
	}

	mu.Lock()
	defer mu.Unlock()

	cred := s.cfg.Credential(role)
	if cred.Valid(s.now()) {
		return cred, nil
	}
	if cred.RefreshToken == "" {
		return internal.Credential{}, internal.NewReauthRequired(role, nil)
	}

	fresh, err := s.refreshers[role].Refresh(ctx, cred)
	if err != nil {
		return internal.Credential{}, err
	}
	if fresh.RefreshToken == "" {
		// Providers that do not rotate refresh tokens omit them from the
		// refresh response; carry the old one forward.
		fresh.RefreshToken = cred.RefreshToken
	}

	s.cfg.SetCredential(role, fresh)
	if err := s.storage.Save(ctx, s.cfg); err != nil {
		return internal.Credential{}, fmt.Errorf("token: persisting refreshed %s credential: %w", role, err)
	}
	return fresh, nil
}
