package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/larksync/larksync/internal"
)

// TokenStore hands out valid credentials for one configuration.
type TokenStore interface {
	Token(ctx context.Context, role internal.ProviderRole) (internal.Credential, error)
}

// Journal records reconcile outcomes for later inspection. Recording is
// best-effort; a journal failure never fails a pass.
type Journal interface {
	RecordRun(ctx context.Context, configID string, startedAt time.Time, res ReconcileResult) error
}

// Session owns one tenant's configuration: its token store, its providers
// and its calendar pairs. Sessions are independent; nothing is shared
// between them and no ordering holds across them.
type Session struct {
	output  io.Writer
	cfg     *internal.Config
	tokens  TokenStore
	mux     internal.Mux
	journal Journal
	retry   RetryPolicy

	now  func() time.Time
	stop <-chan struct{}

	busy        sync.Mutex
	needsReauth atomic.Bool
}

func NewSession(output io.Writer, cfg *internal.Config, tokens TokenStore, mux internal.Mux) *Session {
	if output == nil {
		output = os.Stdout
	}
	return &Session{
		output: output,
		cfg:    cfg,
		tokens: tokens,
		mux:    mux,
		retry:  DefaultRetryPolicy(),
		now:    time.Now,
	}
}

// SetJournal enables run journaling.
func (s *Session) SetJournal(journal Journal) {
	s.journal = journal
}

// SetRetryPolicy overrides the per-call retry behavior.
func (s *Session) SetRetryPolicy(policy RetryPolicy) {
	s.retry = policy
}

// SetStop installs the graceful-shutdown channel consulted between provider
// calls.
func (s *Session) SetStop(stop <-chan struct{}) {
	s.stop = stop
}

// SetClock overrides the time source, for tests.
func (s *Session) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Session) ID() string {
	return s.cfg.ID
}

// NeedsReauth reports whether the session is parked waiting for an operator
// to re-authorize one of its providers.
func (s *Session) NeedsReauth() bool {
	return s.needsReauth.Load()
}

// SessionResult is the outcome of one RunOnce.
type SessionResult struct {
	ConfigID    string
	PairResults []ReconcileResult
	AuthFailed  bool
	// Skipped means a previous run of this session was still in flight
	// and this tick was dropped, not queued.
	Skipped bool
	Err     error
}

// RunOnce executes one reconciliation pass across every calendar pair of
// the configuration. Credentials for both providers are obtained before any
// pair is touched; a re-authorization failure marks the whole session and
// performs zero calendar calls. A session never runs concurrently with
// itself.
func (s *Session) RunOnce(ctx context.Context) SessionResult {
	res := SessionResult{ConfigID: s.cfg.ID}

	if !s.busy.TryLock() {
		res.Skipped = true
		return res
	}
	defer s.busy.Unlock()

	if s.needsReauth.Load() {
		res.AuthFailed = true
		return res
	}

	startedAt := s.now()

	for _, role := range []internal.ProviderRole{internal.RoleFeishu, internal.RoleOutlook} {
		if _, err := s.tokens.Token(ctx, role); err != nil {
			if errors.Is(err, internal.ErrReauthRequired) {
				s.needsReauth.Store(true)
				res.AuthFailed = true
				s.logf("%s requires re-authorization, pausing session: %v", role, err)
			} else {
				s.logf("unable to obtain %s credential: %v", role, err)
			}
			res.Err = err
			return res
		}
	}

	source, err := s.mux.Get(internal.RoleFeishu)
	if err != nil {
		res.Err = err
		return res
	}
	dest, err := s.mux.Get(internal.RoleOutlook)
	if err != nil {
		res.Err = err
		return res
	}

	if err := s.ResolvePairs(ctx); err != nil {
		if errors.Is(err, internal.ErrReauthRequired) {
			s.needsReauth.Store(true)
			res.AuthFailed = true
			s.logf("re-authorization required, pausing session: %v", err)
		} else {
			s.logf("unable to resolve calendar pairs: %v", err)
		}
		res.Err = err
		return res
	}

	for _, pair := range s.cfg.CalendarPairs {
		if ctx.Err() != nil || s.stopped() {
			break
		}

		r := NewReconciler(s.output, s.cfg.ID, source, dest)
		r.retry = s.retry
		r.now = s.now
		r.stop = s.stop

		pairRes := r.Reconcile(ctx, pair)
		res.PairResults = append(res.PairResults, pairRes)

		for _, err := range pairRes.Errors {
			s.logf("pair %s: %v", pair, err)
		}
		if s.journal != nil {
			if err := s.journal.RecordRun(ctx, s.cfg.ID, startedAt, pairRes); err != nil {
				s.logf("unable to journal pair %s: %v", pair, err)
			}
		}

		// A credential rejected mid-pass fails every remaining call the
		// same way, so the session parks instead of grinding through them.
		if err := reauthFailure(pairRes.Errors); err != nil {
			s.needsReauth.Store(true)
			res.AuthFailed = true
			res.Err = err
			s.logf("re-authorization required, pausing session: %v", err)
			break
		}
	}

	created, preserved, deleted, failed := res.totals()
	s.logf("pass complete: %d created, %d preserved, %d deleted, %d failed",
		created, preserved, deleted, failed)
	return res
}

// ResolvePairs fills in calendar pairs whose IDs are empty with the
// provider's primary calendar. Resolved IDs are written back to the
// configuration, so each provider is asked at most once.
func (s *Session) ResolvePairs(ctx context.Context) error {
	needSource, needDest := false, false
	for _, pair := range s.cfg.CalendarPairs {
		needSource = needSource || pair.FeishuCalendarID == ""
		needDest = needDest || pair.OutlookCalendarID == ""
	}
	if !needSource && !needDest {
		return nil
	}

	var sourcePrimary, destPrimary internal.CalendarRef
	var err error
	if needSource {
		if sourcePrimary, err = s.primaryCalendar(ctx, internal.RoleFeishu); err != nil {
			return err
		}
	}
	if needDest {
		if destPrimary, err = s.primaryCalendar(ctx, internal.RoleOutlook); err != nil {
			return err
		}
	}

	for i := range s.cfg.CalendarPairs {
		pair := &s.cfg.CalendarPairs[i]
		resolved := false
		if pair.FeishuCalendarID == "" {
			pair.FeishuCalendarID = sourcePrimary.ID
			if pair.FeishuCalendarName == "" {
				pair.FeishuCalendarName = sourcePrimary.Name
			}
			resolved = true
		}
		if pair.OutlookCalendarID == "" {
			pair.OutlookCalendarID = destPrimary.ID
			if pair.OutlookCalendarName == "" {
				pair.OutlookCalendarName = destPrimary.Name
			}
			resolved = true
		}
		if resolved {
			s.logf("resolved primary calendar pair %s", pair)
		}
	}
	return nil
}

func (s *Session) primaryCalendar(ctx context.Context, role internal.ProviderRole) (internal.CalendarRef, error) {
	provider, err := s.mux.Get(role)
	if err != nil {
		return internal.CalendarRef{}, err
	}

	var refs []internal.CalendarRef
	err = s.retry.Do(ctx, func() error {
		var lerr error
		refs, lerr = provider.ListCalendars(ctx)
		return lerr
	})
	if err != nil {
		return internal.CalendarRef{}, fmt.Errorf("listing %s calendars: %w", role, err)
	}
	for _, ref := range refs {
		if ref.Primary {
			return ref, nil
		}
	}
	return internal.CalendarRef{}, fmt.Errorf("%s has no primary calendar", role)
}

// reauthFailure picks a re-authorization failure out of a pair's errors.
func reauthFailure(errs []error) error {
	for _, err := range errs {
		if errors.Is(err, internal.ErrReauthRequired) {
			return err
		}
	}
	return nil
}

func (res SessionResult) totals() (created, preserved, deleted, failed int) {
	for _, pr := range res.PairResults {
		created += pr.Created
		preserved += pr.Preserved
		deleted += pr.Deleted
		failed += len(pr.Errors)
	}
	return created, preserved, deleted, failed
}

func (s *Session) stopped() bool {
	if s.stop == nil {
		return false
	}
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *Session) logf(format string, a ...any) {
	internal.Logf(s.output, "", s.cfg.ID, format, a...)
}
