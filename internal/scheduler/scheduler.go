// Package scheduler runs periodic maintenance jobs for the server.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Resetter clears every exclusion set and reports how many were removed.
type Resetter interface {
	ResetAll(ctx context.Context) (int, error)
}

// Scheduler clears exclusion sets on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	resetter Resetter
	logger   *zap.Logger
	timeout  time.Duration
	entryID  cron.EntryID
}

const defaultJobTimeout = time.Minute

// New parses spec (standard five fields or a descriptor such as "@daily") and
// registers the reset job. Nothing runs until Run is called.
func New(spec string, resetter Resetter, logger *zap.Logger) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("reset schedule is empty")
	}
	if resetter == nil {
		return nil, errors.New("resetter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")

	cronLogger := zapCronLogger{sugar: logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		resetter: resetter,
		logger:   logger,
		timeout:  defaultJobTimeout,
	}

	id, err := s.cron.AddFunc(spec, s.resetAll)
	if err != nil {
		return nil, fmt.Errorf("parsing reset schedule %q: %w", spec, err)
	}
	s.entryID = id

	return s, nil
}

// Run starts the scheduler and blocks until ctx is done. A job in progress is
// allowed to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	s.logger.Info("exclusion reset scheduled", zap.Time("next_run", s.Next()))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Next returns the next activation time.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Schedule.Next(time.Now())
}

func (s *Scheduler) resetAll() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started := time.Now()
	n, err := s.resetter.ResetAll(ctx)
	if err != nil {
		s.logger.Error("scheduled exclusion reset failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled exclusion reset done",
		zap.Int("users", n),
		zap.Duration("took", time.Since(started)),
	)
}

// zapCronLogger adapts zap to cron.Logger.
type zapCronLogger struct {
	sugar *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
