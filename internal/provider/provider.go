// Package provider defines the fetch-provider contract the orchestration
// core consumes. The core never talks to a media site directly; it hands a
// request to a Fetcher and reacts to the classified errors it gets back.
package provider

import (
	"context"
	"time"

	"github.com/nkoval/videofetch/internal/domain"
)

// Metadata is what a provider can learn about a source before fetching it.
type Metadata struct {
	Title        string
	Duration     time.Duration
	SizeEstimate int64
}

// ProgressFunc receives cumulative byte counts from the provider's own
// download loop. total is zero when the source does not announce a size.
// The callback runs on the worker goroutine issuing the fetch.
type ProgressFunc func(downloaded, total int64)

// FetchRequest tells a provider where the artifact must land. The core
// chooses the directory (temp or final) and the fingerprint-based name;
// the provider appends whatever extension the source dictates.
type FetchRequest struct {
	URL      string
	Options  domain.Options
	Dir      string
	BaseName string
}

// Fetcher is the extraction/download mechanism behind the core. Errors
// returned from either method carry an errors.Kind so the retry coordinator
// can classify them without inspecting message text. Cancellation flows
// through ctx; a provider must observe it between progress callbacks.
type Fetcher interface {
	ExtractMetadata(ctx context.Context, url string, opts domain.Options) (*Metadata, error)
	Fetch(ctx context.Context, req FetchRequest, progress ProgressFunc) (string, error)
}
