package service

import (
	"context"
	"fmt"
	"time"

	"gochat/internal/logger"
)

// PurgeExpired deletes expired messages batch by batch until none are left.
func (s *chatService) PurgeExpired(ctx context.Context) (int, error) {
	purged := 0
	for {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		batch, err := s.store.Messages().ExpiredMessages(ctx, s.now(), s.opts.ExpiryBatchSize)
		if err != nil {
			return purged, fmt.Errorf("load expired messages: %w", err)
		}
		if len(batch) == 0 {
			return purged, nil
		}
		removed := 0
		for i := range batch {
			if err := s.purge(ctx, &batch[i], "expired"); err != nil {
				if isNotFound(err) {
					continue
				}
				return purged, err
			}
			removed++
		}
		purged += removed
		if removed == 0 || len(batch) < s.opts.ExpiryBatchSize {
			return purged, nil
		}
	}
}

// Janitor runs PurgeExpired on a fixed interval.
type Janitor struct {
	svc      ChatService
	interval time.Duration
}

func NewJanitor(svc ChatService, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{svc: svc, interval: interval}
}

// Run blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	log := logger.Get()
	log.Info().Dur("interval", j.interval).Msg("expiry janitor started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("expiry janitor stopped")
			return
		case <-ticker.C:
			n, err := j.svc.PurgeExpired(ctx)
			if err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("purge expired messages")
				continue
			}
			if n > 0 {
				log.Info().Int("purged", n).Msg("expired messages removed")
			}
		}
	}
}
