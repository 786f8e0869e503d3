package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatus_Classification(t *testing.T) {
	live := []JobStatus{StatusPending, StatusDownloading, StatusRetrying}
	terminal := []JobStatus{StatusCompleted, StatusFailed, StatusCancelled}

	for _, s := range live {
		assert.True(t, s.IsLive(), "%s should be live", s)
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
		assert.False(t, s.IsLive(), "%s should not be live", s)
	}
}

func TestJobStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{StatusPending, StatusDownloading, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusDownloading, StatusCompleted, true},
		{StatusDownloading, StatusFailed, true},
		{StatusDownloading, StatusRetrying, true},
		{StatusDownloading, StatusCancelled, true},
		{StatusRetrying, StatusDownloading, true},
		{StatusRetrying, StatusCancelled, true},
		{StatusRetrying, StatusFailed, true},
		{StatusRetrying, StatusCompleted, false},
		{StatusCompleted, StatusDownloading, false},
		{StatusFailed, StatusDownloading, false},
		{StatusCancelled, StatusPending, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransition(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}
