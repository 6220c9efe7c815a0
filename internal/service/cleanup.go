package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"skycrm/internal/domain"
)

// Janitor periodically sweeps expired sessions and stale signup codes.
type Janitor struct {
	sessions domain.SessionRepository
	signups  domain.SignupRepository
	logger   *slog.Logger
	cron     *cron.Cron
}

// NewJanitor creates a Janitor. Call Start to begin the hourly sweep.
func NewJanitor(sessions domain.SessionRepository, signups domain.SignupRepository, logger *slog.Logger) *Janitor {
	return &Janitor{
		sessions: sessions,
		signups:  signups,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start schedules the hourly sweep and runs one immediately.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc("@hourly", func() {
		j.Sweep(context.Background())
	}); err != nil {
		return err
	}
	j.cron.Start()
	go j.Sweep(context.Background())
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep removes expired sessions and signup codes.
func (j *Janitor) Sweep(ctx context.Context) {
	now := time.Now()

	sessions, err := j.sessions.DeleteExpired(ctx, now)
	if err != nil {
		j.logger.ErrorContext(ctx, "sweep expired sessions", "error", err)
	}
	signups, err := j.signups.DeleteExpired(ctx, now)
	if err != nil {
		j.logger.ErrorContext(ctx, "sweep expired signup codes", "error", err)
	}

	if sessions > 0 || signups > 0 {
		j.logger.InfoContext(ctx, "cleanup sweep",
			"expired_sessions", sessions,
			"expired_signup_codes", signups)
	}
}
