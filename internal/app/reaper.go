package app

import (
	"context"
	"time"

	"pontinhos/internal/ports"
)

// Reaper periodically expires knock windows whose deadline has passed, for deployments
// where no action may arrive to expire them lazily.
type Reaper struct {
	svc      *Service
	index    ports.PausedRoomIndex
	timeout  time.Duration
	interval time.Duration
}

// NewReaper creates a reaper. timeout is the shortest knock window any room may use;
// rooms are re-checked against their own rules before rollback.
func NewReaper(svc *Service, index ports.PausedRoomIndex, timeout, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	return &Reaper{svc: svc, index: index, timeout: timeout, interval: interval}
}

// Sweep expires every due window once and returns how many rooms were rolled back.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := r.svc.clock.Now().Add(-r.timeout)
	rooms, err := r.index.PausedRooms(ctx, cutoff.Add(time.Nanosecond))
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, roomID := range rooms {
		events, err := r.svc.ExpireKnock(ctx, roomID)
		if err != nil {
			// a conflict means another actor touched the room; the next sweep retries
			r.svc.logger.Warn("reaper failed to expire room %s: %v", roomID, err)
			continue
		}
		if len(events) > 0 {
			expired++
		}
	}
	return expired, nil
}

// Run sweeps every interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := r.Sweep(ctx); err != nil {
				r.svc.logger.Error("reaper sweep failed: %v", err)
			} else if n > 0 {
				r.svc.logger.Info("reaper expired %d knock window(s)", n)
			}
		}
	}
}
