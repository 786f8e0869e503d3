package domain

import (
	"time"
)

// Job is a single download request tracked by the orchestrator. The in-memory
// registry holds the authoritative copy; everything handed out of the registry
// is a value snapshot.
type Job struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Fingerprint string     `json:"fingerprint"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	Title       string     `json:"title,omitempty"`
	OutputPath  string     `json:"output_path,omitempty"`
	FileSize    int64      `json:"file_size,omitempty"`
	ErrorReason string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Options     Options    `json:"options"`
}

// JobUpdate carries a partial mutation applied to a durable history record.
// Nil fields are left untouched.
type JobUpdate struct {
	Progress    *int
	Title       *string
	OutputPath  *string
	FileSize    *int64
	ErrorReason *string
	RetryCount  *int
	CompletedAt *time.Time
}

// Options are the per-job knobs accepted at creation time.
type Options struct {
	Quality   string `json:"quality,omitempty"`
	AudioOnly bool   `json:"audio_only,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Notify    bool   `json:"notify,omitempty"`
}

// NeedsPostProcessing reports whether the artifact has to pass through the
// temp directory for a transform before landing in the final directory.
func (o Options) NeedsPostProcessing() bool {
	return o.AudioOnly
}
