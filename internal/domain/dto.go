package domain

import (
	"time"
)

// CreateDownloadRequest is the request body for enqueueing a new download.
type CreateDownloadRequest struct {
	URL       string `json:"url" validate:"required,safe_url"`
	Quality   string `json:"quality" validate:"omitempty,oneof=best worst 2160p 1440p 1080p 720p 480p"`
	AudioOnly bool   `json:"audio_only"`
	Filename  string `json:"filename" validate:"omitempty,max=200"`
	Notify    bool   `json:"notify"`
}

// ToOptions converts the request knobs into job options.
func (r CreateDownloadRequest) ToOptions() Options {
	return Options{
		Quality:   r.Quality,
		AudioOnly: r.AudioOnly,
		Filename:  r.Filename,
		Notify:    r.Notify,
	}
}

// JobResponse is the wire representation of a job snapshot.
type JobResponse struct {
	ID          string     `json:"job_id"`
	URL         string     `json:"url"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	Title       string     `json:"title,omitempty"`
	OutputPath  string     `json:"output_path,omitempty"`
	FileSize    int64      `json:"file_size,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJobResponse builds the wire form of a job snapshot.
func NewJobResponse(job Job) JobResponse {
	return JobResponse{
		ID:          job.ID,
		URL:         job.URL,
		Status:      job.Status,
		Progress:    job.Progress,
		Title:       job.Title,
		OutputPath:  job.OutputPath,
		FileSize:    job.FileSize,
		Error:       job.ErrorReason,
		RetryCount:  job.RetryCount,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
}
