// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package auth

import "time"

// Lockout configuration for repeated login failures.
const (
	// LockoutThreshold is the number of consecutive failures that
	// triggers a lockout.
	LockoutThreshold = 5

	// LockoutDuration is the time a registered principal stays locked
	// after hitting the threshold.
	LockoutDuration = 15 * time.Minute
)

// IsLockedOut returns true if the lockout time is in the future.
func IsLockedOut(lockedUntil *time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(time.Now())
}

// ComputeLockoutTime returns the lockout timestamp for the given
// failure count, or nil while under the threshold.
func ComputeLockoutTime(failures int) *time.Time {
	if failures < LockoutThreshold {
		return nil
	}
	lockout := time.Now().Add(LockoutDuration)
	return &lockout
}
