package store

import "context"

// Store is the state/object store consumed by the REST dispatcher.
//
// Implementations must be safe for concurrent use: many requests read and
// write states while asynchronous notifications arrive on the event
// channels.
type Store interface {
	// GetState returns the current state of a datapoint.
	// Returns ErrNotFound if no state exists.
	GetState(ctx context.Context, id string) (State, error)

	// SetState writes a new value for a datapoint and returns the stored
	// state. The ack flag marks the value as device-confirmed rather than
	// requested. The from field records the writer for auditing.
	SetState(ctx context.Context, id string, val any, ack bool, from string) (State, error)

	// GetObject returns the metadata object for an id.
	// Returns ErrNotFound if the object does not exist.
	GetObject(ctx context.Context, id string) (*Object, error)

	// FindObject resolves an id or display name to its object.
	// Lookup tries the canonical id first, then the display name.
	// Returns ErrNotFound if neither matches.
	FindObject(ctx context.Context, idOrName string) (*Object, error)

	// ListObjects returns all objects whose id matches the glob pattern,
	// ordered by id. "*" matches everything.
	ListObjects(ctx context.Context, pattern string) ([]Object, error)

	// ListStates returns id/state pairs for all datapoints whose id
	// matches the glob pattern, ordered by id.
	ListStates(ctx context.Context, pattern string) ([]Entry, error)

	Notifier
}

// Notifier delivers asynchronous change notifications.
//
// State events are delivered only for ids with at least one active
// subscription; object events are delivered unconditionally so caches can
// invalidate. Both channels are owned by the implementation and closed on
// Close.
type Notifier interface {
	// SubscribeStates registers interest in state events for id.
	// Subscriptions are counted; each call requires a matching
	// UnsubscribeStates.
	SubscribeStates(id string)

	// UnsubscribeStates releases one subscription for id.
	UnsubscribeStates(id string)

	// StateEvents returns the channel carrying state change events for
	// subscribed ids.
	StateEvents() <-chan StateEvent

	// ObjectEvents returns the channel carrying object change events.
	ObjectEvents() <-chan ObjectEvent
}
