// Package registry holds the in-memory source of truth for live job state.
package registry

import (
	"sort"
	"sync"

	"github.com/nkoval/videofetch/internal/domain"
)

// Registry is a mutex-guarded job map with a secondary index of live jobs by
// URL fingerprint. The lock is held only across map reads and writes, never
// across I/O. Snapshots returned to callers are value copies.
type Registry struct {
	mu         sync.RWMutex
	jobs       map[string]*domain.Job
	liveByFP   map[string]string
	maxEntries int
}

// New creates a Registry. maxEntries bounds how many terminal jobs are kept
// in memory; the durable store retains full history independently.
func New(maxEntries int) *Registry {
	return &Registry{
		jobs:       make(map[string]*domain.Job),
		liveByFP:   make(map[string]string),
		maxEntries: maxEntries,
	}
}

// PutIfNoLive inserts job unless a live job already shares its fingerprint.
// When a live duplicate exists its id is returned and the job is dropped;
// the check and insert happen under one lock acquisition so two concurrent
// creates cannot both slip through.
func (r *Registry) PutIfNoLive(job *domain.Job) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.liveByFP[job.Fingerprint]; ok {
		return existing, false
	}

	r.jobs[job.ID] = job
	if job.Status.IsLive() {
		r.liveByFP[job.Fingerprint] = job.ID
	}
	r.trimLocked()
	return job.ID, true
}

// Get returns a snapshot of the job.
func (r *Registry) Get(id string) (domain.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return *job, true
}

// Update applies fn to the job under the write lock and returns the
// resulting snapshot. The live-fingerprint index follows status changes, so
// a job leaving a live state frees its fingerprint for new creates.
func (r *Registry) Update(id string, fn func(*domain.Job)) (domain.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return domain.Job{}, false
	}

	wasLive := job.Status.IsLive()
	fn(job)

	if wasLive && !job.Status.IsLive() {
		if r.liveByFP[job.Fingerprint] == id {
			delete(r.liveByFP, job.Fingerprint)
		}
	} else if !wasLive && job.Status.IsLive() {
		r.liveByFP[job.Fingerprint] = id
	}

	return *job, true
}

// List returns snapshots of all registered jobs, newest first.
func (r *Registry) List() []domain.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]domain.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// trimLocked prunes the oldest terminal jobs once the registry outgrows
// maxEntries. Live jobs are never pruned.
func (r *Registry) trimLocked() {
	if r.maxEntries <= 0 || len(r.jobs) <= r.maxEntries {
		return
	}

	terminal := make([]*domain.Job, 0)
	for _, job := range r.jobs {
		if job.Status.IsTerminal() {
			terminal = append(terminal, job)
		}
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].CreatedAt.Before(terminal[j].CreatedAt)
	})

	for _, job := range terminal {
		if len(r.jobs) <= r.maxEntries {
			break
		}
		delete(r.jobs, job.ID)
	}
}
