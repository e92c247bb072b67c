// Package job runs the daily briefing batch and schedules it.
package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/daily-brief/internal/metrics"
	"github.com/xaenox/daily-brief/internal/models"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Directory interface {
	Refresh(ctx context.Context) error
	Profiles() []models.UserProfile
}

type RequestStore interface {
	Take(phone string) (string, bool)
}

type Generator interface {
	Generate(ctx context.Context, profile models.UserProfile, specialRequest string) string
}

type Renderer interface {
	Render(text, path string, date time.Time) (string, error)
}

type Notifier interface {
	Send(ctx context.Context, profile models.UserProfile, path string, date time.Time) error
}

// Alerter receives the run summary. Optional.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// Outcome of one user's briefing.
type Outcome string

const (
	Sent    Outcome = metrics.OutcomeSent
	Skipped Outcome = metrics.OutcomeSkipped
	Failed  Outcome = metrics.OutcomeFailed
)

// Summary describes one run.
type Summary struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Users    int
	Sent     int
	Skipped  int
	Failed   int
}

func (s Summary) String() string {
	return fmt.Sprintf("Daily briefing run %s finished in %s: %d users, %d sent, %d skipped, %d failed",
		s.RunID, s.Duration.Round(time.Second), s.Users, s.Sent, s.Skipped, s.Failed)
}

func (s *Summary) add(o Outcome) {
	switch o {
	case Sent:
		s.Sent++
	case Skipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

type Config struct {
	OutputDir string
}

// DailyJob generates, renders, and emails a briefing for every user in the directory.
type DailyJob struct {
	directory Directory
	requests  RequestStore
	generator Generator
	renderer  Renderer
	notifier  Notifier
	alerter   Alerter
	outputDir string
	logger    *zap.Logger
	now       func() time.Time
}

func NewDailyJob(cfg Config, directory Directory, requests RequestStore, generator Generator,
	renderer Renderer, notifier Notifier, logger *zap.Logger) *DailyJob {
	return &DailyJob{
		directory: directory,
		requests:  requests,
		generator: generator,
		renderer:  renderer,
		notifier:  notifier,
		outputDir: cfg.OutputDir,
		logger:    logger,
		now:       time.Now,
	}
}

// WithAlerter posts each run's summary through a.
func (j *DailyJob) WithAlerter(a Alerter) *DailyJob {
	j.alerter = a
	return j
}

// Run processes every user once. It never panics; failures are logged and counted.
// The run's start time dates every artifact, PDF title, and email subject.
func (j *DailyJob) Run(ctx context.Context) (summary Summary) {
	begin := time.Now()
	summary = Summary{RunID: uuid.New().String(), Started: j.now()}
	logger := j.logger.With(zap.String("run_id", summary.RunID))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Daily briefing failed", zap.Any("panic", r))
		}
		summary.Duration = time.Since(begin)
		metrics.RecordRun(summary.Duration.Seconds())
		logger.Info("Daily briefing process completed",
			zap.Int("users", summary.Users),
			zap.Int("sent", summary.Sent),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", summary.Failed),
			zap.Duration("duration", summary.Duration))
		j.alert(ctx, logger, summary)
	}()

	if err := j.directory.Refresh(ctx); err != nil {
		metrics.DirectoryRefreshErrors.Inc()
		logger.Error("Failed to load users, using previous directory", zap.Error(err))
	}

	profiles := j.directory.Profiles()
	summary.Users = len(profiles)
	logger.Info("Starting daily briefing process", zap.Int("users", len(profiles)))

	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			logger.Warn("Daily briefing interrupted", zap.Error(err))
			break
		}

		outcome, err := j.processUser(ctx, p, summary.Started)
		if err != nil {
			logger.Error("Failed to process user",
				zap.Error(err),
				zap.String("phone", p.Phone))
		}
		summary.add(outcome)
		metrics.RecordBriefing(string(outcome))
	}

	return summary
}

func (j *DailyJob) processUser(ctx context.Context, p models.UserProfile, date time.Time) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = Failed, fmt.Errorf("panic: %v", r)
		}
	}()

	special, _ := j.requests.Take(p.Phone)

	content := j.generator.Generate(ctx, p, special)
	if content == "" {
		return Skipped, nil
	}

	path, err := j.renderer.Render(content, j.artifactPath(p.Phone, date), date)
	if err != nil {
		return Failed, fmt.Errorf("render: %w", err)
	}

	sendErr := j.notifier.Send(ctx, p, path, date)
	if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
		sendErr = multierr.Append(sendErr, fmt.Errorf("cleanup: %w", rmErr))
	}
	if sendErr != nil {
		return Failed, sendErr
	}
	return Sent, nil
}

// artifactPath is keyed by phone and date, e.g. "+15551234567_20261016.pdf".
func (j *DailyJob) artifactPath(phone string, date time.Time) string {
	name := fmt.Sprintf("%s_%s.pdf", phone, date.Format("20060102"))
	return filepath.Join(j.outputDir, name)
}

func (j *DailyJob) alert(ctx context.Context, logger *zap.Logger, summary Summary) {
	if j.alerter == nil {
		return
	}
	if err := j.alerter.Alert(ctx, summary.String()); err != nil {
		logger.Warn("Failed to post run summary", zap.Error(err))
	}
}
