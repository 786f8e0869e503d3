// Package filestore routes download artifacts through the temp and final
// directories and owns their on-disk naming. Files are always addressed by
// the job's URL fingerprint; human-facing titles only enter the picture in
// the optional rename pass after a job completes.
package filestore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nkoval/videofetch/internal/domain"
	apperrors "github.com/nkoval/videofetch/internal/errors"
)

const (
	// statRetries bounds the poll for a file the provider claims to have
	// written; filesystem visibility can lag the provider's return.
	statRetries  = 4
	statInitWait = 50 * time.Millisecond
)

// PostProcessor transforms an artifact in place in the temp directory, e.g.
// extracting the audio track. Implemented externally; the store only owns
// the paths around the transform.
type PostProcessor interface {
	// TargetPath returns where the transformed artifact for src should land.
	TargetPath(src string, opts domain.Options) string
	Transform(ctx context.Context, src, dst string, opts domain.Options) error
}

// NopPostProcessor passes the artifact through untouched.
type NopPostProcessor struct{}

func (NopPostProcessor) TargetPath(src string, _ domain.Options) string { return src }

func (NopPostProcessor) Transform(_ context.Context, src, dst string, _ domain.Options) error {
	if src == dst {
		return nil
	}
	return os.Rename(src, dst)
}

// Store manages the on-disk lifecycle of job output files.
type Store struct {
	tempDir  string
	finalDir string
	post     PostProcessor
	logger   *slog.Logger
}

// New creates a Store and ensures both directories exist.
func New(tempDir, finalDir string, post PostProcessor, logger *slog.Logger) (*Store, error) {
	for _, dir := range []string{tempDir, finalDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	if post == nil {
		post = NopPostProcessor{}
	}
	return &Store{tempDir: tempDir, finalDir: finalDir, post: post, logger: logger}, nil
}

// StagingDir returns where the provider should write the artifact: the temp
// directory when a post-processing transform is required, the final
// directory otherwise, avoiding a pointless move.
func (s *Store) StagingDir(opts domain.Options) string {
	if opts.NeedsPostProcessing() {
		return s.tempDir
	}
	return s.finalDir
}

// FinalDir returns the directory completed artifacts live in.
func (s *Store) FinalDir() string { return s.finalDir }

// Finalize takes the path the provider wrote, runs the post-processing
// handoff when required, and returns the artifact's resting path and size
// in the final directory. All failures carry KindFilesystem: they are
// environment faults that retrying a download cannot fix.
func (s *Store) Finalize(ctx context.Context, path, fingerprint string, opts domain.Options) (string, int64, error) {
	info, err := s.waitForFile(path)
	if err != nil {
		return "", 0, err
	}

	if !opts.NeedsPostProcessing() {
		return path, info.Size(), nil
	}

	dst := s.post.TargetPath(path, opts)
	if dst == path {
		dst = insertSuffix(path, ".out")
	}

	if err := s.post.Transform(ctx, path, dst, opts); err != nil {
		return "", 0, apperrors.Wrap(apperrors.KindFilesystem, err, "post-process artifact")
	}

	finalPath := filepath.Join(s.finalDir, fingerprint+filepath.Ext(dst))
	if err := os.Rename(dst, finalPath); err != nil {
		return "", 0, apperrors.Wrap(apperrors.KindFilesystem, err, "move artifact to final directory")
	}

	finalInfo, err := os.Stat(finalPath)
	if err != nil {
		return "", 0, apperrors.Wrap(apperrors.KindFilesystem, err, "stat finalized artifact")
	}

	s.logger.Debug("artifact finalized", "path", finalPath, "size", finalInfo.Size())
	return finalPath, finalInfo.Size(), nil
}

// SmartRename applies the user-facing name to a completed artifact. On any
// failure the fingerprint-based name is kept (or restored) rather than
// risking the file; the returned path is always valid.
func (s *Store) SmartRename(path, name string) (string, error) {
	clean := sanitizeName(name)
	if clean == "" {
		return path, nil
	}

	renamed := filepath.Join(filepath.Dir(path), clean+filepath.Ext(path))
	if renamed == path {
		return path, nil
	}
	if _, err := os.Stat(renamed); err == nil {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if len(base) > 8 {
			base = base[:8]
		}
		renamed = insertSuffix(renamed, "-"+base)
	}

	if err := os.Rename(path, renamed); err != nil {
		return path, fmt.Errorf("rename artifact: %w", err)
	}

	if _, err := os.Stat(renamed); err != nil {
		// Roll back rather than lose track of the artifact.
		if rbErr := os.Rename(renamed, path); rbErr == nil {
			return path, fmt.Errorf("verify renamed artifact: %w", err)
		}
		return renamed, fmt.Errorf("verify renamed artifact: %w", err)
	}

	s.logger.Debug("artifact renamed", "from", path, "to", renamed)
	return renamed, nil
}

// waitForFile polls for the file with a short doubling backoff before
// declaring it missing.
func (s *Store) waitForFile(path string) (os.FileInfo, error) {
	wait := statInitWait
	for attempt := 0; attempt < statRetries; attempt++ {
		info, err := os.Stat(path)
		if err == nil {
			return info, nil
		}
		if !os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.KindFilesystem, err, "stat artifact")
		}
		time.Sleep(wait)
		wait *= 2
	}
	return nil, apperrors.Wrap(apperrors.KindFilesystem, apperrors.ErrFileMissing, path)
}

func insertSuffix(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

var nameReplacer = strings.NewReplacer(
	"/", "-", "\\", "-", ":", "-", "*", "", "?", "",
	"\"", "", "<", "", ">", "", "|", "", "\x00", "",
)

func sanitizeName(name string) string {
	clean := strings.TrimSpace(nameReplacer.Replace(name))
	clean = strings.Trim(clean, ". ")
	if len(clean) > 150 {
		clean = clean[:150]
	}
	return clean
}
