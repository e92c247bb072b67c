package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner is the work fired on each tick.
type Runner interface {
	Run(ctx context.Context) Summary
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Scheduler fires the runner on a cron schedule. A tick that arrives while
// the previous run is still in progress is skipped.
type Scheduler struct {
	cron     *cron.Cron
	entryID  cron.EntryID
	spec     string
	location *time.Location
	logger   *zap.Logger

	mu      sync.Mutex
	stopped bool
	manual  sync.WaitGroup
}

// NewScheduler registers runner under spec (standard 5-field cron) in the
// named time zone. An unknown zone falls back to UTC.
func NewScheduler(ctx context.Context, spec, timezone string, runner Runner, logger *zap.Logger) (*Scheduler, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		logger.Warn("Invalid timezone, using UTC",
			zap.String("timezone", timezone),
			zap.Error(err))
		location = time.UTC
	}

	cl := cronLogger{sugar: logger.Sugar()}
	c := cron.New(
		cron.WithLocation(location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	id, err := c.AddFunc(spec, func() { runner.Run(ctx) })
	if err != nil {
		return nil, fmt.Errorf("failed to register briefing schedule %q: %w", spec, err)
	}

	return &Scheduler{
		cron:     c,
		entryID:  id,
		spec:     spec,
		location: location,
		logger:   logger,
	}, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started",
		zap.String("schedule", s.spec),
		zap.String("timezone", s.location.String()),
		zap.Time("next_run", s.Next()))
}

// Stop prevents further ticks and RunNow calls, then waits for in-flight runs
// (scheduled or RunNow) or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.manual.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running briefing: %w", ctx.Err())
	}
}

// Next returns the next scheduled fire time.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Schedule.Next(time.Now().In(s.location))
}

// RunNow runs the job immediately through the same wrappers as a tick, so it
// is skipped if a run is already in progress. It blocks until the run ends and
// does nothing once Stop has been called.
func (s *Scheduler) RunNow() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.logger.Warn("Scheduler stopped, ignoring run request")
		return
	}
	s.manual.Add(1)
	s.mu.Unlock()
	defer s.manual.Done()

	s.cron.Entry(s.entryID).WrappedJob.Run()
}
