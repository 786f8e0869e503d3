package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/nkoval/videofetch/internal/domain"
	apperrors "github.com/nkoval/videofetch/internal/errors"
)

// FileHistoryStore persists one JSON file per job under a directory. It is
// the built-in HistoryStore; a database-backed store can replace it behind
// the same interface without the core noticing.
type FileHistoryStore struct {
	mu   sync.RWMutex
	dir  string
	jobs map[string]domain.Job
}

// NewFileHistoryStore creates the store and loads existing records.
func NewFileHistoryStore(dir string) (*FileHistoryStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	store := &FileHistoryStore{
		dir:  dir,
		jobs: make(map[string]domain.Job),
	}
	if err := store.restore(); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	slog.Info("history store initialized", "dir", dir, "records", len(store.jobs))
	return store, nil
}

func (s *FileHistoryStore) restore() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read history directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read history record %s: %w", entry.Name(), err)
		}

		var job domain.Job
		if err := json.Unmarshal(data, &job); err != nil {
			slog.Warn("skipping corrupt history record", "file", entry.Name(), "error", err)
			continue
		}
		s.jobs[job.ID] = job
	}
	return nil
}

// Save upserts the full record.
func (s *FileHistoryStore) Save(_ context.Context, job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = job
	return s.persist(job)
}

// UpdateStatus applies a partial update to an existing record.
func (s *FileHistoryStore) UpdateStatus(_ context.Context, id string, status domain.JobStatus, update domain.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return apperrors.ErrJobNotFound
	}

	job.Status = status
	if update.Progress != nil {
		job.Progress = *update.Progress
	}
	if update.Title != nil {
		job.Title = *update.Title
	}
	if update.OutputPath != nil {
		job.OutputPath = *update.OutputPath
	}
	if update.FileSize != nil {
		job.FileSize = *update.FileSize
	}
	if update.ErrorReason != nil {
		job.ErrorReason = *update.ErrorReason
	}
	if update.RetryCount != nil {
		job.RetryCount = *update.RetryCount
	}
	if update.CompletedAt != nil {
		job.CompletedAt = update.CompletedAt
	}

	s.jobs[id] = job
	return s.persist(job)
}

// LoadRecent returns up to limit records, newest first.
func (s *FileHistoryStore) LoadRecent(_ context.Context, limit int) ([]domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// persist writes the record via a temp file and rename so a crash cannot
// leave a half-written JSON document behind. Caller holds the lock.
func (s *FileHistoryStore) persist(job domain.Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}

	target := filepath.Join(s.dir, job.ID+".json")
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write history record: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("commit history record: %w", err)
	}
	return nil
}
