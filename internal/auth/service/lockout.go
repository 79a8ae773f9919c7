package service

import (
	"time"
)

// LockoutPolicy is the failure threshold and the lock window that starts
// when it is reached.
type LockoutPolicy struct {
	Threshold int
	Window    time.Duration
}

// DefaultLockoutPolicy is 5 attempts and 15 minutes.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: 5, Window: 15 * time.Minute}
}

// IsLocked derives lock state from the counters alone, for callers without
// the materialized account_locked_until. The verifier does not use it.
func (p LockoutPolicy) IsLocked(failedAttempts int, lastFailedAt *time.Time, now time.Time) bool {
	if failedAttempts < p.Threshold || lastFailedAt == nil {
		return false
	}
	return now.Before(lastFailedAt.Add(p.Window))
}

// RemainingLockoutMinutes is ceil((lastFailedAt+Window-now)/1m), floored at 0.
func (p LockoutPolicy) RemainingLockoutMinutes(lastFailedAt *time.Time, now time.Time) int {
	if lastFailedAt == nil {
		return 0
	}
	return MinutesUntil(lastFailedAt.Add(p.Window), now)
}

// MinutesUntil rounds the time left until t up to whole minutes.
func MinutesUntil(t, now time.Time) int {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}
