package store

import (
	"time"

	"github.com/y1hao/pollphase"
)

// TickRecord is the storage representation of a single poller tick,
// shaped for JSON serialization by the REST API and SSE stream. It is
// decoupled from [pollphase.Tick] so the wire format can evolve separately.
type TickRecord struct {
	// Seq is assigned by the store, starting at 1, in record order.
	Seq uint64 `json:"seq"`

	// PollerID identifies the poller instance.
	PollerID string `json:"poller_id"`

	// Design is "locked" or "phased".
	Design string `json:"design"`

	// Phase is the phase the tick ran in.
	Phase string `json:"phase"`

	// Generation identifies the loop that ran the tick.
	Generation uint64 `json:"generation"`

	// Items is the snapshot the operation was invoked with.
	Items []string `json:"items"`

	// At is when the tick started.
	At time.Time `json:"at"`

	// DurationMs is the time taken by the operation in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// Error contains the failure message, or nil if the tick succeeded.
	Error *string `json:"error"`
}

// NewTickRecord converts a tick reported by a poller hook.
func NewTickRecord(t pollphase.Tick) TickRecord {
	items := t.Items.Items()
	if items == nil {
		items = []string{}
	}

	r := TickRecord{
		PollerID:   t.PollerID,
		Design:     t.Design.String(),
		Phase:      t.Phase.String(),
		Generation: t.Generation,
		Items:      items,
		At:         t.At,
		DurationMs: t.Duration.Milliseconds(),
	}
	if t.Err != nil {
		msg := t.Err.Error()
		r.Error = &msg
	}
	return r
}

// Store defines the interface for recording ticks and subscribing to them.
//
// Implementations must be safe for concurrent access.
type Store interface {
	// Record appends a tick, assigns its Seq, and notifies all subscribers.
	Record(record TickRecord) TickRecord

	// All returns the retained records, oldest first.
	// The returned slice is a snapshot; modifications do not affect the store.
	All() []TickRecord

	// Subscribe returns a channel that receives every recorded tick.
	// The returned channel has a buffer; slow consumers may miss records.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan TickRecord

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan TickRecord)
}
