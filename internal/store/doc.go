// Package store records poller ticks in memory, and fans them out to
// subscribers.
//
// The main components are:
//
//   - [Store]: interface defining record and subscription operations
//   - [TickLog]: bounded in-memory implementation of Store
//   - [TickRecord]: JSON representation of a single tick
//
// A TickLog is typically fed by a poller tick hook:
//
//	log := store.NewTickLog(0)
//	p, err := pollphase.NewPhasedPoller(op,
//	    pollphase.WithTickHook(func(t pollphase.Tick) {
//	        log.Record(store.NewTickRecord(t))
//	    }),
//	)
//
// Subscribers receive records via channels with non-blocking sends, so a
// slow subscriber misses records rather than stalling a poller loop.
package store
