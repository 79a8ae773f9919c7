package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/schoolgate/internal/auth/store"
	"github.com/robfig/cron/v3"
)

// KeyRotator is implemented by the persistent key manager.
type KeyRotator interface {
	Rotate(ctx context.Context, now time.Time) (int, error)
}

// HousekeepingResult counts what one cleanup run did.
type HousekeepingResult struct {
	ResetTokensDeleted int64
	SigningKeysDeleted int64
	KeysRotated        int
}

// HousekeepingService periodically removes expired reset tokens and
// signing keys and rotates signing keys.
type HousekeepingService struct {
	Store  store.Store
	Keys   KeyRotator // nil with ephemeral keys
	Logger *slog.Logger
	Now    func() time.Time

	cron *cron.Cron
	wg   sync.WaitGroup
}

// NewHousekeepingService schedules cleanup with a five-field cron spec or a
// descriptor such as "@every 1h". An empty schedule means hourly.
func NewHousekeepingService(st store.Store, keys KeyRotator, logger *slog.Logger, schedule string) (*HousekeepingService, error) {
	if schedule == "" {
		schedule = "@every 1h"
	}

	s := &HousekeepingService{
		Store:  st,
		Keys:   keys,
		Logger: logger,
		cron: cron.New(cron.WithParser(cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		))),
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.Cleanup(context.Background()) }); err != nil {
		return nil, fmt.Errorf("housekeeping: invalid schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs one cleanup immediately and then follows the schedule.
func (s *HousekeepingService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Cleanup(context.Background())
	}()
	s.cron.Start()
	s.Logger.Info("housekeeping service started")
}

// Stop waits for any in-progress cleanup to finish.
func (s *HousekeepingService) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.Logger.Info("housekeeping service stopped")
}

// Cleanup runs each step independently; a failing step is logged and the
// rest still run.
func (s *HousekeepingService) Cleanup(ctx context.Context) HousekeepingResult {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	var res HousekeepingResult

	if s.Keys != nil {
		n, err := s.Keys.Rotate(ctx, now)
		if err != nil {
			s.Logger.Error("failed to rotate signing keys", "error", err)
		}
		res.KeysRotated = n
	}

	n, err := s.Store.SigningKeys().DeleteExpiredSigningKeys(ctx, now)
	if err != nil {
		s.Logger.Error("failed to delete expired signing keys", "error", err)
	}
	res.SigningKeysDeleted = n

	n, err = s.Store.ResetTokens().DeleteExpiredResetTokens(ctx, now, now.Add(-consumedRetention))
	if err != nil {
		s.Logger.Error("failed to delete expired reset tokens", "error", err)
	}
	res.ResetTokensDeleted = n

	s.Logger.Info("housekeeping cleanup completed",
		"reset_tokens_deleted", res.ResetTokensDeleted,
		"signing_keys_deleted", res.SigningKeysDeleted,
		"keys_rotated", res.KeysRotated,
	)
	return res
}
