package engine

import (
	"sync"
	"time"
)

// EventKind classifies messages emitted on the engine event stream.
type EventKind string

const (
	EventDownloadProgress      EventKind = "download-progress"
	EventTranscriptionOutput   EventKind = "transcription-output"
	EventTranscriptionComplete EventKind = "transcription-complete"
)

// DownloadProgress is one progress tick for an in-flight model download.
type DownloadProgress struct {
	ModelName       string  `json:"modelName"`
	BytesDownloaded int64   `json:"bytesDownloaded"`
	BytesTotal      int64   `json:"bytesTotal"`
	Percent         float64 `json:"percent"`
}

// TranscriptionOutput is one streamed output line from a running job.
type TranscriptionOutput struct {
	Line    string `json:"line"`
	IsError bool   `json:"isError"`
}

// TranscriptionComplete is the terminal notice for a job. Output carries
// the aggregated stdout for wire compatibility; consumers are expected to
// keep their incrementally accumulated log instead.
type TranscriptionComplete struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
	Error   string `json:"error,omitempty"`
}

// Event is a sequenced payload delivered to broker subscribers. Exactly
// one of the payload pointers is set, matching Kind.
type Event struct {
	Seq       int64                  `json:"seq"`
	Timestamp time.Time              `json:"timestamp"`
	Kind      EventKind              `json:"kind"`
	Progress  *DownloadProgress      `json:"progress,omitempty"`
	Output    *TranscriptionOutput   `json:"output,omitempty"`
	Complete  *TranscriptionComplete `json:"complete,omitempty"`
}

// Subscription is a handle for one broker subscriber. Unsubscribe must be
// called exactly once when the consumer shuts down.
type Subscription struct {
	id     int64
	broker *Broker
	once   sync.Once
}

// Unsubscribe removes the subscriber from the broker. Safe to call more
// than once; only the first call has effect.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.broker == nil {
		return
	}
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s.id)
		s.broker.mu.Unlock()
	})
}

// Broker stores recent events, assigns sequence numbers, and fans events
// out to subscribers in publish order.
type Broker struct {
	mu        sync.Mutex
	nextSeq   int64
	nextSub   int64
	maxEvents int
	events    []Event
	subs      map[int64]func(Event)
}

// NewBroker creates a broker with a bounded event history.
func NewBroker(maxEvents int) *Broker {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &Broker{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
		subs:      make(map[int64]func(Event)),
	}
}

// Subscribe registers fn for every subsequent event. Callbacks run on the
// publisher's goroutine, one event at a time per publish.
func (b *Broker) Subscribe(fn func(Event)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSub++
	id := b.nextSub
	b.subs[id] = fn
	return &Subscription{id: id, broker: b}
}

// Publish assigns sequence and timestamp, stores the event, and notifies
// current subscribers.
func (b *Broker) Publish(event Event) Event {
	b.mu.Lock()
	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
	return event
}

// Since returns retained events with sequence strictly greater than seq.
func (b *Broker) Since(seq int64) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}
