package syncer

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larksync/larksync/internal"
)

func sessionConfig(pairs ...internal.CalendarPair) *internal.Config {
	if len(pairs) == 0 {
		pairs = []internal.CalendarPair{testPair}
	}
	return &internal.Config{
		ID:            "alice",
		CalendarPairs: pairs,
	}
}

func newTestSession(cfg *internal.Config, tokens TokenStore, source, dest internal.Provider) *Session {
	s := NewSession(io.Discard, cfg, tokens, fakeMux{source: source, dest: dest})
	s.SetRetryPolicy(instantRetry())
	s.SetClock(func() time.Time { return passTime })
	return s
}

func TestRunOnceSyncsAllPairs(t *testing.T) {
	source := newFakeProvider()
	dest := newFakeProvider()
	start := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	source.add("feishu-cal", futureEvent("Standup", start))
	source.add("feishu-team", futureEvent("Team Sync", start))

	cfg := sessionConfig(
		internal.CalendarPair{FeishuCalendarID: "feishu-cal", OutlookCalendarID: "outlook-cal"},
		internal.CalendarPair{FeishuCalendarID: "feishu-team", OutlookCalendarID: "outlook-team"},
	)
	session := newTestSession(cfg, &fakeTokens{}, source, dest)

	res := session.RunOnce(context.Background())

	assert.False(t, res.AuthFailed)
	assert.False(t, res.Skipped)
	require.Len(t, res.PairResults, 2)
	assert.Len(t, dest.eventsIn("outlook-cal"), 1)
	assert.Len(t, dest.eventsIn("outlook-team"), 1)
}

func TestRunOnceFailsFastOnReauthRequired(t *testing.T) {
	source := newFakeProvider()
	dest := newFakeProvider()
	source.add("feishu-cal", futureEvent("Standup", passTime.Add(time.Hour)))

	tokens := &fakeTokens{errs: map[internal.ProviderRole]error{
		internal.RoleFeishu: internal.NewReauthRequired(internal.RoleFeishu, errors.New("invalid_grant")),
	}}
	session := newTestSession(sessionConfig(), tokens, source, dest)

	res := session.RunOnce(context.Background())

	assert.True(t, res.AuthFailed)
	assert.Empty(t, res.PairResults)
	assert.ErrorIs(t, res.Err, internal.ErrReauthRequired)
	// Zero provider calls for calendar pairs.
	assert.Equal(t, 0, source.listCalls)
	assert.Equal(t, 0, dest.listCalls)
	assert.Equal(t, 0, dest.createCalls)
}

func TestRunOnceStaysPausedUntilReauthorized(t *testing.T) {
	tokens := &fakeTokens{errs: map[internal.ProviderRole]error{
		internal.RoleOutlook: internal.NewReauthRequired(internal.RoleOutlook, nil),
	}}
	session := newTestSession(sessionConfig(), tokens, newFakeProvider(), newFakeProvider())

	first := session.RunOnce(context.Background())
	assert.True(t, first.AuthFailed)
	assert.True(t, session.NeedsReauth())
	callsAfterFirst := tokens.calls

	// Future ticks are declined without touching the token store again.
	second := session.RunOnce(context.Background())
	assert.True(t, second.AuthFailed)
	assert.Equal(t, callsAfterFirst, tokens.calls)
}

func TestRunOnceProviderReauthMidPassPausesSession(t *testing.T) {
	source := newFakeProvider()
	dest := newFakeProvider()
	source.add("feishu-cal", futureEvent("Standup", passTime.Add(time.Hour)))

	dest.failNextCreate("Standup", internal.NewReauthRequired(internal.RoleOutlook, errors.New("http 401")))

	session := newTestSession(sessionConfig(), &fakeTokens{}, source, dest)

	first := session.RunOnce(context.Background())
	assert.True(t, first.AuthFailed)
	assert.True(t, session.NeedsReauth())
	assert.ErrorIs(t, first.Err, internal.ErrReauthRequired)

	// Future ticks decline without touching the providers again.
	listCalls := source.listCalls
	second := session.RunOnce(context.Background())
	assert.True(t, second.AuthFailed)
	assert.Empty(t, second.PairResults)
	assert.Equal(t, listCalls, source.listCalls)
}

func TestRunOnceResolvesEmptyPairIDsToPrimary(t *testing.T) {
	source := newFakeProvider()
	dest := newFakeProvider()
	source.calendars = []internal.CalendarRef{
		{ID: "feishu-side", Name: "Side"},
		{ID: "feishu-primary", Name: "Work", Primary: true},
	}
	dest.calendars = []internal.CalendarRef{
		{ID: "outlook-primary", Name: "Calendar", Primary: true},
	}
	source.add("feishu-primary", futureEvent("Standup", passTime.Add(time.Hour)))

	cfg := sessionConfig(internal.CalendarPair{})
	session := newTestSession(cfg, &fakeTokens{}, source, dest)

	res := session.RunOnce(context.Background())

	require.Len(t, res.PairResults, 1)
	assert.Len(t, dest.eventsIn("outlook-primary"), 1)
	assert.Equal(t, "feishu-primary", cfg.CalendarPairs[0].FeishuCalendarID)
	assert.Equal(t, "Work", cfg.CalendarPairs[0].FeishuCalendarName)
	assert.Equal(t, "outlook-primary", cfg.CalendarPairs[0].OutlookCalendarID)

	// Resolution sticks on the configuration; the next pass does not list
	// calendars again.
	session.RunOnce(context.Background())
	assert.Equal(t, 1, source.listCalendarsCalls)
	assert.Equal(t, 1, dest.listCalendarsCalls)
}

func TestRunOnceTransientTokenFailureDoesNotPause(t *testing.T) {
	tokens := &fakeTokens{errs: map[internal.ProviderRole]error{
		internal.RoleFeishu: &internal.NetworkError{Provider: internal.RoleFeishu, Err: errors.New("eof")},
	}}
	session := newTestSession(sessionConfig(), tokens, newFakeProvider(), newFakeProvider())

	res := session.RunOnce(context.Background())
	assert.False(t, res.AuthFailed)
	assert.Error(t, res.Err)
	assert.False(t, session.NeedsReauth())
}

func TestRunOncePairFailureDoesNotBlockOtherPairs(t *testing.T) {
	source := newFakeProvider()
	dest := newFakeProvider()
	start := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	source.add("feishu-bad", futureEvent("Unreachable", start))
	source.add("feishu-good", futureEvent("Reachable", start))

	for i := 0; i < 3; i++ {
		source.failNextList("feishu-bad", &internal.NetworkError{Err: errors.New("eof")})
	}

	cfg := sessionConfig(
		internal.CalendarPair{FeishuCalendarID: "feishu-bad", OutlookCalendarID: "outlook-bad"},
		internal.CalendarPair{FeishuCalendarID: "feishu-good", OutlookCalendarID: "outlook-good"},
	)
	session := newTestSession(cfg, &fakeTokens{}, source, dest)

	res := session.RunOnce(context.Background())

	require.Len(t, res.PairResults, 2)
	assert.True(t, res.PairResults[0].Failed())
	assert.False(t, res.PairResults[1].Failed())
	assert.Len(t, dest.eventsIn("outlook-good"), 1)
}

func TestRunOnceNeverOverlapsItself(t *testing.T) {
	source := newFakeProvider()
	dest := newFakeProvider()

	release := make(chan struct{})
	entered := make(chan struct{})
	blockingTokens := &blockingTokenStore{entered: entered, release: release}

	session := newTestSession(sessionConfig(), blockingTokens, source, dest)

	var wg sync.WaitGroup
	var first SessionResult
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = session.RunOnce(context.Background())
	}()

	<-entered
	second := session.RunOnce(context.Background())
	assert.True(t, second.Skipped)

	close(release)
	wg.Wait()
	assert.False(t, first.Skipped)
}

type blockingTokenStore struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingTokenStore) Token(ctx context.Context, role internal.ProviderRole) (internal.Credential, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return internal.Credential{AccessToken: "token"}, nil
}

type recordingJournal struct {
	mu      sync.Mutex
	records []ReconcileResult
}

func (j *recordingJournal) RecordRun(ctx context.Context, configID string, startedAt time.Time, res ReconcileResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, res)
	return nil
}

func TestRunOnceJournalsEveryPair(t *testing.T) {
	source := newFakeProvider()
	dest := newFakeProvider()
	source.add("feishu-cal", futureEvent("Standup", passTime.Add(time.Hour)))

	journal := &recordingJournal{}
	session := newTestSession(sessionConfig(), &fakeTokens{}, source, dest)
	session.SetJournal(journal)

	session.RunOnce(context.Background())

	require.Len(t, journal.records, 1)
	assert.Equal(t, 1, journal.records[0].Created)
}
