package pollphase

import (
	"context"
	"strings"
)

// PollOperation performs one tick of work over a snapshot of item identifiers.
//
// The items slice is a private copy; the operation may retain or modify it.
// The context is the one passed to Start, not a per-loop context, so that
// stopping a loop never interrupts an in-flight operation. A returned error
// terminates the loop that invoked it, and is not retried.
type PollOperation func(ctx context.Context, items []string) error

// ItemSet is an immutable, ordered sequence of item identifiers.
//
// Duplicates are permitted, and insertion order is preserved. The zero value
// is an empty set. ItemSet values never alias the slices they were built
// from, and no method mutates the receiver.
type ItemSet struct {
	items []string
}

// NewItemSet captures a snapshot of the given items.
func NewItemSet(items ...string) ItemSet {
	return ItemSet{items: cloneStrings(items)}
}

// Append returns a new [ItemSet] containing the receiver's items followed by
// the given items. The receiver is not modified.
func (s ItemSet) Append(items ...string) ItemSet {
	merged := make([]string, 0, len(s.items)+len(items))
	merged = append(merged, s.items...)
	merged = append(merged, items...)
	return ItemSet{items: merged}
}

// Items returns a copy of the identifiers, in insertion order.
func (s ItemSet) Items() []string {
	return cloneStrings(s.items)
}

// Len returns the number of identifiers, including duplicates.
func (s ItemSet) Len() int {
	return len(s.items)
}

// String joins the identifiers with ", ", e.g. "1, 2, 3".
func (s ItemSet) String() string {
	return strings.Join(s.items, ", ")
}

// cloneStrings returns a copy of the slice, or nil if it is empty.
func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return append([]string(nil), s...)
}
