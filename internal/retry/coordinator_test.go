package retry

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nkoval/videofetch/internal/errors"
)

func netErr() error {
	return apperrors.Wrap(apperrors.KindNetwork, errors.New("connection reset"), "fetch")
}

func TestCoordinator_ShouldRetry(t *testing.T) {
	c := New(3, time.Millisecond, 10*time.Millisecond, slog.Default())

	assert.True(t, c.ShouldRetry("job1", netErr()))

	fatal := apperrors.New(apperrors.KindAuth, "forbidden")
	assert.False(t, c.ShouldRetry("job1", fatal))

	fsErr := apperrors.New(apperrors.KindFilesystem, "disk full")
	assert.False(t, c.ShouldRetry("job1", fsErr))

	assert.False(t, c.ShouldRetry("job1", errors.New("unclassified")))
}

func TestCoordinator_AttemptBudget(t *testing.T) {
	c := New(2, time.Millisecond, 10*time.Millisecond, slog.Default())

	require.True(t, c.ShouldRetry("job1", netErr()))
	assert.Equal(t, 1, c.ScheduleRetry("job1", netErr(), func() {}))

	require.True(t, c.ShouldRetry("job1", netErr()))
	assert.Equal(t, 2, c.ScheduleRetry("job1", netErr(), func() {}))

	// Budget spent.
	assert.False(t, c.ShouldRetry("job1", netErr()))
	assert.Equal(t, 2, c.Attempts("job1"))
}

func TestCoordinator_ScheduleFiresResume(t *testing.T) {
	c := New(3, time.Millisecond, 10*time.Millisecond, slog.Default())

	var fired atomic.Bool
	c.ScheduleRetry("job1", netErr(), func() { fired.Store(true) })

	assert.Eventually(t, fired.Load, time.Second, 5*time.Millisecond)
}

func TestCoordinator_ClearResetsBudget(t *testing.T) {
	c := New(1, time.Hour, time.Hour, slog.Default())

	c.ScheduleRetry("job1", netErr(), func() { t.Error("resume must not fire after clear") })
	assert.False(t, c.ShouldRetry("job1", netErr()))

	c.Clear("job1")
	assert.True(t, c.ShouldRetry("job1", netErr()))
	assert.Equal(t, 0, c.Attempts("job1"))
}

func TestCoordinator_StopCancelsPendingTimers(t *testing.T) {
	c := New(3, 5*time.Millisecond, 10*time.Millisecond, slog.Default())

	var fired atomic.Bool
	c.ScheduleRetry("job1", netErr(), func() { fired.Store(true) })
	c.Stop()

	time.Sleep(30 * time.Millisecond)
	assert.False(t, fired.Load())
	assert.False(t, c.ShouldRetry("job2", netErr()))
}

func TestCoordinator_BackoffCurve(t *testing.T) {
	c := New(10, 100*time.Millisecond, time.Second, slog.Default())

	assert.Equal(t, 100*time.Millisecond, c.delayFor(1))
	assert.Equal(t, 200*time.Millisecond, c.delayFor(2))
	assert.Equal(t, 400*time.Millisecond, c.delayFor(3))
	assert.Equal(t, time.Second, c.delayFor(5))
	assert.Equal(t, time.Second, c.delayFor(9))
}
