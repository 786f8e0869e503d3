package repository

import (
	"context"

	"github.com/nkoval/videofetch/internal/domain"
)

// HistoryStore is the durable record of every job the service has seen. The
// core depends only on these three operations and on the store providing
// atomic single-record upserts; cross-record transactions are not assumed.
type HistoryStore interface {
	Save(ctx context.Context, job domain.Job) error
	UpdateStatus(ctx context.Context, id string, status domain.JobStatus, update domain.JobUpdate) error
	LoadRecent(ctx context.Context, limit int) ([]domain.Job, error)
}
