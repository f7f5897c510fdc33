package store

import (
	"sync"
)

const (
	// DefaultCapacity is the number of records a [TickLog] retains when
	// constructed with a non-positive capacity.
	DefaultCapacity = 1000

	subscriberBuffer = 100
)

// TickLog is a bounded, in-memory implementation of [Store].
//
// Only the most recent records are retained; older ones are discarded as new
// ticks arrive. Subscribers receive records via buffered channels, with
// non-blocking sends: if a subscriber's buffer is full, the record is dropped
// for that subscriber rather than stalling the poller that produced it.
type TickLog struct {
	mu          sync.RWMutex
	records     []TickRecord
	capacity    int
	seq         uint64
	subscribers map[chan TickRecord]struct{}
	subMu       sync.RWMutex
}

var _ Store = (*TickLog)(nil)

// NewTickLog creates a [TickLog] retaining at most capacity records.
func NewTickLog(capacity int) *TickLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &TickLog{
		capacity:    capacity,
		subscribers: make(map[chan TickRecord]struct{}),
	}
}

// Record appends a record, evicting the oldest if the log is full, and
// notifies all subscribers. It returns the record with its Seq assigned.
func (m *TickLog) Record(record TickRecord) TickRecord {
	m.mu.Lock()
	m.seq++
	record.Seq = m.seq
	if len(m.records) == m.capacity {
		copy(m.records, m.records[1:])
		m.records[len(m.records)-1] = record
	} else {
		m.records = append(m.records, record)
	}
	// notify under mu so subscribers see records in Seq order
	m.notifySubscribers(record)
	m.mu.Unlock()

	return record
}

// All returns a copy of the retained records, oldest first.
func (m *TickLog) All() []TickRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append(make([]TickRecord, 0, len(m.records)), m.records...)
}

// Subscribe creates a new subscription. The channel is buffered; if it fills,
// new records are dropped for this subscriber.
//
// Caller must call [TickLog.Unsubscribe] when done.
func (m *TickLog) Subscribe() <-chan TickRecord {
	ch := make(chan TickRecord, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// multiple times or with an unknown channel.
func (m *TickLog) Unsubscribe(ch <-chan TickRecord) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

func (m *TickLog) notifySubscribers(record TickRecord) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- record:
		default:
			// slow subscriber
		}
	}
}
