// Package errors defines the error taxonomy shared by the orchestration core
// and the fetch provider contract. Classification is carried as a typed Kind
// on the error value itself, never recovered by matching message text.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrEmptyURL      = errors.New("url must not be empty")
	ErrNotResumable  = errors.New("job is not resumable")
	ErrShuttingDown  = errors.New("service is shutting down")
	ErrFileMissing   = errors.New("output file missing")
	ErrNoHistoryItem = errors.New("no durable record for job")
)

// Kind classifies a failure for retry policy and reporting.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation marks malformed input, rejected before a job exists.
	KindValidation
	// KindNetwork marks transient transport failures (reset, refused, DNS).
	KindNetwork
	// KindTimeout marks deadline / stall failures.
	KindTimeout
	// KindAuth marks authentication or authorization rejections by the source.
	KindAuth
	// KindNotFound marks a missing or removed source resource.
	KindNotFound
	// KindFilesystem marks local disk faults (full disk, permissions).
	KindFilesystem
	// KindCancelled marks user-initiated cancellation.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindFilesystem:
		return "filesystem"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Retryable reports whether a failure of this kind may succeed on a later
// attempt. Filesystem faults are excluded: retrying cannot fix a full disk.
func (k Kind) Retryable() bool {
	return k == KindNetwork || k == KindTimeout
}

// Error is a classified failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error with the given message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the classification from an error chain, KindUnknown when
// the chain carries none.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindUnknown
}

// Retryable reports whether the error chain carries a retryable kind.
// Unclassified errors are not retried.
func Retryable(err error) bool {
	return KindOf(err).Retryable()
}
