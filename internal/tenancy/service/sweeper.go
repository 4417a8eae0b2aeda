package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/tenantkit/tenantkit/internal/tenancy/store"
)

// SweeperService periodically cancels pending invitations whose deadline has
// passed. Expiry is already enforced lazily at read and accept time; the
// sweeper keeps the stored states honest so listings do not show long-dead
// invitations as pending.
type SweeperService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Now      func() time.Time

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSweeperService creates a sweeper with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewSweeperService(store store.Store, logger *slog.Logger, interval time.Duration) *SweeperService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &SweeperService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs a sweep.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *SweeperService) Start() {
	go s.run()
	s.Logger.Info("invitation sweeper started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress sweep.
func (s *SweeperService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("invitation sweeper stopped")
}

func (s *SweeperService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run a sweep immediately on startup
	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep cancels every pending invitation past its deadline. Exposed so the
// embedder can trigger a sweep out of band.
func (s *SweeperService) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}

	n, err := s.Store.Invitations().CancelExpiredInvitations(ctx, now)
	if err != nil {
		s.Logger.Error("failed to cancel expired invitations", "error", err)
		return
	}
	if n > 0 {
		s.Logger.Info("expired invitations canceled", "count", n)
	}
}
