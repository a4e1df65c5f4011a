// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackcraft/trackcraft/internal/auth"
)

func TestIsLockedOut(t *testing.T) {
	t.Run("nil means not locked", func(t *testing.T) {
		assert.False(t, auth.IsLockedOut(nil))
	})

	t.Run("future time means locked", func(t *testing.T) {
		future := time.Now().Add(time.Minute)
		assert.True(t, auth.IsLockedOut(&future))
	})

	t.Run("past time means lockout elapsed", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		assert.False(t, auth.IsLockedOut(&past))
	})
}

func TestComputeLockoutTime(t *testing.T) {
	t.Run("under the threshold", func(t *testing.T) {
		assert.Nil(t, auth.ComputeLockoutTime(auth.LockoutThreshold-1))
	})

	t.Run("at the threshold", func(t *testing.T) {
		lockout := auth.ComputeLockoutTime(auth.LockoutThreshold)
		require.NotNil(t, lockout)
		remaining := time.Until(*lockout)
		assert.Greater(t, remaining, auth.LockoutDuration-time.Minute)
		assert.LessOrEqual(t, remaining, auth.LockoutDuration)
	})
}

func TestPrincipal_RecordFailure(t *testing.T) {
	p, err := auth.NewRegistration("Ana", "García", "ana@example.com", "", auth.RoleClient, "", "hashed:x")
	require.NoError(t, err)

	for i := 1; i < auth.LockoutThreshold; i++ {
		p.RecordFailure()
		assert.Equal(t, i, p.FailedAttempts)
		assert.Nil(t, p.LockedUntil)
	}

	p.RecordFailure()
	assert.Equal(t, auth.LockoutThreshold, p.FailedAttempts)
	require.NotNil(t, p.LockedUntil)
	assert.True(t, p.IsLocked())

	p.RecordSuccess()
	assert.Equal(t, 0, p.FailedAttempts)
	assert.Nil(t, p.LockedUntil)
	assert.False(t, p.IsLocked())
}
