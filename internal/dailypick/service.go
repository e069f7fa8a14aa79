// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package dailypick

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Service wraps the scheduler as a supervised ticker so a self-hosted
// deployment needs no external cron. Run is idempotent per day, so the
// check interval only bounds how soon after UTC midnight the pick lands.
type Service struct {
	scheduler *Scheduler
	interval  time.Duration
	logger    zerolog.Logger
}

// NewService builds the ticker service. interval defaults to 15 minutes.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewService(scheduler *Scheduler, interval time.Duration, logger zerolog.Logger) *Service {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Service{
		scheduler: scheduler,
		interval:  interval,
		logger:    logger.With().Str("service", "daily-pick").Logger(),
	}
}

// Serve runs the trigger immediately and then on every tick until the
// supervisor cancels the context. Trigger failures are logged and retried
// on the next tick rather than crashing the service.
func (s *Service) Serve(ctx context.Context) error {
	s.trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *Service) trigger(ctx context.Context) {
	result, err := s.scheduler.Run(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("daily pick trigger failed")
		return
	}
	if result.Action == ActionPicked {
		s.logger.Info().Str("date", result.Date).Str("item_ref", result.ItemRef).Msg("daily pick created")
	}
}

// String names the service in supervisor logs.
func (s *Service) String() string {
	return "daily-pick-service"
}
