package syncer

import (
	"context"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/larksync/larksync/internal"
)

// DefaultInterval is how often every session is reconciled unless
// configured otherwise.
const DefaultInterval = 5 * time.Minute

// Scheduler drives any number of sessions on a fixed cadence. Sessions run
// concurrently with each other but never with themselves: robfig/cron's
// SkipIfStillRunning wrapper drops (does not queue) a tick whose previous
// run is still in flight, and Recover keeps one session's panic from
// terminating the scheduler.
type Scheduler struct {
	output   io.Writer
	every    time.Duration
	sessions []*Session

	quit chan struct{}
}

func NewScheduler(output io.Writer, every time.Duration) *Scheduler {
	if output == nil {
		output = os.Stdout
	}
	if every <= 0 {
		every = DefaultInterval
	}
	return &Scheduler{
		output: output,
		every:  every,
		quit:   make(chan struct{}),
	}
}

func (s *Scheduler) Add(session *Session) {
	session.SetStop(s.quit)
	s.sessions = append(s.sessions, session)
}

// Run performs one immediate pass for every session, then keeps
// reconciling on the configured interval until ctx is cancelled. Shutdown
// is graceful: ticks stop, and in-flight sessions finish their current
// provider call before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cron.PrintfLogger(log.New(s.output, "scheduler: ", 0))

	c := cron.New(
		cron.WithLogger(cron.DiscardLogger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	// Jobs get a context detached from the shutdown signal; stopping
	// mid-call would leave nothing half-applied, but finishing the call is
	// cheaper than retrying it next start.
	jobCtx := context.WithoutCancel(ctx)

	// Sessions watch quit between provider calls. Closing it the moment
	// shutdown is requested lets an in-flight pass stop after its current
	// call instead of draining the rest of the pass.
	go func() {
		<-ctx.Done()
		close(s.quit)
	}()

	for _, session := range s.sessions {
		session := session
		c.Schedule(cron.Every(s.every), cron.FuncJob(func() {
			s.runSession(jobCtx, session)
		}))
	}

	var initial sync.WaitGroup
	for _, session := range s.sessions {
		initial.Add(1)
		go func(session *Session) {
			defer initial.Done()
			s.runSession(jobCtx, session)
		}(session)
	}
	initial.Wait()

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (s *Scheduler) runSession(ctx context.Context, session *Session) {
	defer func() {
		if r := recover(); r != nil {
			internal.Logf(s.output, "", session.ID(), "panic during sync pass: %v", r)
		}
	}()

	res := session.RunOnce(ctx)
	switch {
	case res.Skipped:
		internal.Logf(s.output, "", session.ID(), "previous pass still running, tick skipped")
	case res.AuthFailed:
		internal.Logf(s.output, "", session.ID(), "paused until re-authorized")
	}
}
