// Package events provides a publish/subscribe bus for operational
// events. Components (agent loop, intake poller, digest worker, titler)
// publish; subscribers (the WebSocket event stream) consume. The bus is
// nil-safe: Publish on a nil *Bus is a no-op, so optional wiring needs
// no guard checks.
package events

import (
	"sync"
	"time"
)

// Source constants identify which component published an event.
const (
	// SourceAgent identifies events from the agent loop.
	SourceAgent = "agent"
	// SourceIntake identifies events from the email inquiry poller.
	SourceIntake = "intake"
	// SourceDigest identifies events from the listings digest worker.
	SourceDigest = "digest"
	// SourceTitler identifies events from the session titler.
	SourceTitler = "titler"
)

// Kind constants describe the type of event within a source.
const (
	// KindRequestStart signals the beginning of a query.
	// Data: user, query.
	KindRequestStart = "request_start"
	// KindLLMCall signals the start of a completion request.
	// Data: model, messages.
	KindLLMCall = "llm_call"
	// KindLLMResponse signals a completed completion request.
	// Data: model, input_tokens, output_tokens.
	KindLLMResponse = "llm_response"
	// KindToolCall signals the start of a tool execution.
	// Data: tool, input.
	KindToolCall = "tool_call"
	// KindToolDone signals a completed tool execution.
	// Data: tool, success, duration_ms.
	KindToolDone = "tool_done"
	// KindRequestComplete signals the end of a query.
	// Data: user, steps, tools, clarify, duration_ms; or user, error
	// when the completion failed.
	KindRequestComplete = "request_complete"

	// KindPollStart signals the start of an intake poll cycle.
	KindPollStart = "poll_start"
	// KindPollComplete signals the end of an intake poll cycle.
	// Data: new_messages.
	KindPollComplete = "poll_complete"

	// KindDigestSent signals a delivered listings digest.
	// Data: user_id, listings.
	KindDigestSent = "digest_sent"

	// KindSessionTitled signals a session received a generated title.
	// Data: session_id, title.
	KindSessionTitled = "session_titled"
)

// Event is a single operational event.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"ts"`
	// Source identifies the publishing component.
	Source string `json:"source"`
	// Kind describes the type of event within the source.
	Kind string `json:"kind"`
	// Data holds event-specific key/value pairs.
	Data map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast bus. Subscribers receive events on
// buffered channels; a slow subscriber misses events rather than
// blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	// recvToSend maps the receive-only channel handed to subscribers
	// back to the bidirectional channel in subs, so Unsubscribe can
	// accept the caller's <-chan view.
	recvToSend map[<-chan Event]chan Event
}

// New creates an event bus ready for use.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Emit publishes an event with the current timestamp. Convenience
// wrapper over Publish for the common case.
func (b *Bus) Emit(source, kind string, data map[string]any) {
	b.Publish(Event{
		Timestamp: time.Now(),
		Source:    source,
		Kind:      kind,
		Data:      data,
	})
}

// Publish sends an event to all subscribers. Non-blocking: when a
// subscriber's channel is full the event is dropped for that
// subscriber. Safe to call on a nil receiver.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber full: drop rather than block.
		}
	}
}

// Subscribe returns a channel that receives published events. The
// caller must eventually call Unsubscribe. bufSize controls the channel
// buffer; 64 suits WebSocket consumers.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel. Calling it
// with an already-removed channel is a no-op.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
