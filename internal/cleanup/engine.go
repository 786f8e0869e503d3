// Package cleanup reclaims disk space in the final directory on a periodic
// schedule, enforcing retention age and a storage quota while always keeping
// the most recent downloads.
package cleanup

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nkoval/videofetch/internal/metrics"
)

// quotaTarget is the fill ratio the quota pass shrinks down to, leaving
// headroom so the very next download does not trigger eviction again.
const quotaTarget = 0.8

// Policy configures eviction. It is read-only after construction.
type Policy struct {
	RetentionAge    time.Duration
	MaxStorageBytes int64
	KeepRecentCount int
	Interval        time.Duration
}

// Report summarizes one cleanup cycle.
type Report struct {
	Scanned        int
	Deleted        int
	BytesReclaimed int64
}

func (r Report) String() string {
	return fmt.Sprintf("scanned %d files, deleted %d, reclaimed %d bytes",
		r.Scanned, r.Deleted, r.BytesReclaimed)
}

type storedFile struct {
	path  string
	size  int64
	mtime time.Time
}

// Engine runs eviction cycles on a timer, independent of the worker pool.
// RunCycle is also exposed directly for the manual out-of-band trigger.
type Engine struct {
	dir    string
	policy Policy
	cron   *cron.Cron
	logger *slog.Logger

	// runMu serializes cycles so a manual trigger cannot interleave with
	// the scheduled one.
	runMu sync.Mutex
}

// New creates an Engine for the given final directory.
func New(dir string, policy Policy, logger *slog.Logger) *Engine {
	return &Engine{
		dir:    dir,
		policy: policy,
		logger: logger,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
		)),
	}
}

// Start schedules periodic cycles. The first cycle runs after one interval.
func (e *Engine) Start() error {
	spec := fmt.Sprintf("@every %s", e.policy.Interval)
	if _, err := e.cron.AddFunc(spec, func() {
		if report, err := e.RunCycle(); err != nil {
			e.logger.Error("cleanup cycle failed", "error", err)
		} else if report.Deleted > 0 {
			e.logger.Info("cleanup cycle finished", "report", report.String())
		}
	}); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	e.cron.Start()
	e.logger.Info("cleanup engine started", "interval", e.policy.Interval)
	return nil
}

// Stop halts the schedule; a cycle already in flight finishes.
func (e *Engine) Stop() {
	ctx := e.cron.Stop()
	<-ctx.Done()
}

// RunCycle performs one full eviction pass: a retention pass over everything
// outside the protected set, then a quota pass deleting oldest-first until
// usage drops to the target. Individual deletion failures are logged and
// skipped; the cycle always completes.
func (e *Engine) RunCycle() (Report, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	files, err := e.scan()
	if err != nil {
		return Report{}, err
	}

	report := Report{Scanned: len(files)}

	// Newest first; the head of the slice is the protected set.
	sort.Slice(files, func(i, j int) bool {
		return files[i].mtime.After(files[j].mtime)
	})

	keep := e.policy.KeepRecentCount
	if keep > len(files) {
		keep = len(files)
	}
	protected := files[:keep]
	candidates := files[keep:]

	cutoff := time.Now().Add(-e.policy.RetentionAge)
	survivors := make([]storedFile, 0, len(candidates))
	for _, f := range candidates {
		if f.mtime.Before(cutoff) {
			if e.remove(f, "retention", &report) {
				continue
			}
		}
		survivors = append(survivors, f)
	}

	var total int64
	for _, f := range protected {
		total += f.size
	}
	for _, f := range survivors {
		total += f.size
	}

	if e.policy.MaxStorageBytes > 0 && total > e.policy.MaxStorageBytes {
		target := int64(float64(e.policy.MaxStorageBytes) * quotaTarget)
		// Oldest first; survivors are currently newest first.
		for i := len(survivors) - 1; i >= 0 && total > target; i-- {
			f := survivors[i]
			if e.remove(f, "quota", &report) {
				total -= f.size
			}
		}
	}

	return report, nil
}

func (e *Engine) scan() ([]storedFile, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return nil, fmt.Errorf("read final directory: %w", err)
	}

	files := make([]storedFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			e.logger.Warn("skipping unreadable file", "name", entry.Name(), "error", err)
			continue
		}
		files = append(files, storedFile{
			path:  filepath.Join(e.dir, entry.Name()),
			size:  info.Size(),
			mtime: info.ModTime(),
		})
	}
	return files, nil
}

func (e *Engine) remove(f storedFile, pass string, report *Report) bool {
	if err := os.Remove(f.path); err != nil {
		e.logger.Warn("failed to evict file", "path", f.path, "pass", pass, "error", err)
		return false
	}
	report.Deleted++
	report.BytesReclaimed += f.size
	metrics.FilesEvicted.Inc()
	metrics.BytesReclaimed.Add(float64(f.size))
	e.logger.Debug("file evicted", "path", f.path, "pass", pass, "size", f.size)
	return true
}
