package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler refreshes the dataset on a cron spec.
type Scheduler struct {
	cron    *cron.Cron
	sync    *SyncService
	spec    string
	timeout time.Duration
}

func NewScheduler(s *SyncService, spec string) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		sync:    s,
		spec:    spec,
		timeout: 2 * time.Minute,
	}
}

// Start registers the refresh job. An empty spec disables scheduling.
func (s *Scheduler) Start() error {
	if s.spec == "" {
		log.Info().Msg("scheduled sync disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, s.run); err != nil {
		return fmt.Errorf("sync schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	log.Info().Str("schedule", s.spec).Msg("scheduled sync started")
	return nil
}

// Stop waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	res, err := s.sync.Refresh(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduled sync failed")
		return
	}
	log.Debug().Str("source", string(res.Source)).Msg("scheduled sync done")
}
