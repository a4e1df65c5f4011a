// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package progress

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackcraft/trackcraft/pkg/errutil"
)

func TestNewRecord(t *testing.T) {
	regID := ulid.Make()

	t.Run("valid record", func(t *testing.T) {
		record, err := NewRecord(regID, "implemented the login flow", 40)
		require.NoError(t, err)
		assert.Equal(t, regID, record.RegistrationID)
		assert.Equal(t, 40, record.Percent)
		assert.False(t, record.CreatedAt.IsZero())
	})

	t.Run("percent is clamped", func(t *testing.T) {
		low, err := NewRecord(regID, "just started", -5)
		require.NoError(t, err)
		assert.Equal(t, 0, low.Percent)

		high, err := NewRecord(regID, "overshot the estimate", 140)
		require.NoError(t, err)
		assert.Equal(t, 100, high.Percent)
	})

	t.Run("rejects zero registration ID", func(t *testing.T) {
		_, err := NewRecord(ulid.ULID{}, "orphaned", 10)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "PROGRESS_INVALID_REGISTRATION")
	})

	t.Run("rejects blank description", func(t *testing.T) {
		_, err := NewRecord(regID, "   ", 10)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "PROGRESS_EMPTY_DESCRIPTION")
	})
}
