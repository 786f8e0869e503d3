// Package events fans job lifecycle events out to subscribers. Emission is
// fire-and-forget: the core never blocks on, or fails because of, a slow or
// absent subscriber.
package events

import (
	"log/slog"
	"sync"
)

// Event names emitted by the orchestration core.
const (
	DownloadStarted   = "download.started"
	DownloadProgress  = "download.progress"
	DownloadRetrying  = "download.retrying"
	DownloadCompleted = "download.completed"
	DownloadFailed    = "download.failed"
	DownloadCancelled = "download.cancelled"
	DownloadResumed   = "download.resumed"
)

// Event is a named payload.
type Event struct {
	Name    string
	Payload map[string]any
}

// Bus is the emission side of the event stream.
type Bus interface {
	Emit(name string, payload map[string]any)
}

// ChannelBus delivers events to buffered subscriber channels, dropping an
// event for a subscriber whose buffer is full rather than blocking.
type ChannelBus struct {
	mu     sync.RWMutex
	subs   []chan Event
	buffer int
	logger *slog.Logger
}

// NewChannelBus creates a ChannelBus; buffer sizes each subscriber channel.
func NewChannelBus(buffer int, logger *slog.Logger) *ChannelBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelBus{buffer: buffer, logger: logger}
}

// Subscribe registers a new subscriber channel.
func (b *ChannelBus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	b.subs = append(b.subs, ch)
	return ch
}

// Emit delivers the event to every subscriber that has buffer room.
func (b *ChannelBus) Emit(name string, payload map[string]any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{Name: name, Payload: payload}
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropping event for slow subscriber", "event", name)
		}
	}
}

// Close closes all subscriber channels. Emit must not be called afterwards.
func (b *ChannelBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
