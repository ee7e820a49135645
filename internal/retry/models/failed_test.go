package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registro/internal/backends"
	dErrors "registro/pkg/domain-errors"
)

func contacts() backends.ContactIDs {
	return backends.ContactIDs{Registrant: "RC1", Admin: "RC2", Tech: "RC3", Billing: "RC4"}
}

func TestNewSchedulesFirstAttempt(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	f := New(uuid.New(), uuid.New(), "example.rw", "Object exists", contacts(), 5*time.Minute, now)

	assert.Equal(t, StatusPending, f.Status)
	assert.Zero(t, f.RetryCount)
	assert.Equal(t, DefaultMaxRetries, f.MaxRetries)
	assert.Equal(t, now.Add(5*time.Minute), f.NextAttemptAt)
	assert.Nil(t, f.ResolvedAt)
	assert.Equal(t, contacts(), f.Contacts())
}

func TestApplyFailureIncrementsUntilAbandoned(t *testing.T) {
	now := time.Now()
	f := New(uuid.New(), uuid.New(), "example.rw", "first failure", contacts(), time.Minute, now)

	require.NoError(t, f.ApplyFailure("second failure", time.Minute, now))
	assert.Equal(t, StatusRetrying, f.Status)
	assert.Equal(t, 1, f.RetryCount)
	assert.Equal(t, "second failure", f.Reason)

	require.NoError(t, f.ApplyFailure("third failure", time.Minute, now))
	assert.Equal(t, StatusRetrying, f.Status)
	assert.Equal(t, 2, f.RetryCount)

	// One failure away from the cap: the next one abandons.
	require.NoError(t, f.ApplyFailure("final failure", time.Minute, now))
	assert.Equal(t, StatusAbandoned, f.Status)
	assert.Equal(t, f.MaxRetries, f.RetryCount)
	require.NotNil(t, f.ResolvedAt)
}

func TestRetryCountNeverExceedsMax(t *testing.T) {
	now := time.Now()
	f := New(uuid.New(), uuid.New(), "example.rw", "x", contacts(), time.Minute, now)
	f.RetryCount = f.MaxRetries - 1
	f.Status = StatusRetrying

	require.NoError(t, f.ApplyFailure("again", time.Minute, now))
	assert.Equal(t, StatusAbandoned, f.Status)
	assert.Equal(t, f.MaxRetries, f.RetryCount)

	err := f.ApplyFailure("once more", time.Minute, now)
	require.Error(t, err)
	assert.Equal(t, f.MaxRetries, f.RetryCount, "terminal record never increments")
}

func TestTerminalStatesImmutable(t *testing.T) {
	now := time.Now()

	resolved := New(uuid.New(), uuid.New(), "a.rw", "x", contacts(), time.Minute, now)
	require.NoError(t, resolved.ApplySuccess(now))
	for _, err := range []error{
		resolved.ApplySuccess(now),
		resolved.ApplyFailure("y", time.Minute, now),
		resolved.ApplyAbandon(now),
	} {
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvariantViolation))
	}
	assert.Equal(t, StatusResolved, resolved.Status)
	assert.Zero(t, resolved.RetryCount)

	abandoned := New(uuid.New(), uuid.New(), "b.rw", "x", contacts(), time.Minute, now)
	require.NoError(t, abandoned.ApplyAbandon(now))
	require.Error(t, abandoned.ApplySuccess(now))
	assert.Equal(t, StatusAbandoned, abandoned.Status)
}

func TestApplySuccessStampsResolvedAt(t *testing.T) {
	created := time.Now()
	resolvedAt := created.Add(10 * time.Minute)
	f := New(uuid.New(), uuid.New(), "example.rw", "x", contacts(), time.Minute, created)

	require.NoError(t, f.ApplySuccess(resolvedAt))
	require.NotNil(t, f.ResolvedAt)
	assert.Equal(t, resolvedAt, *f.ResolvedAt)
}
