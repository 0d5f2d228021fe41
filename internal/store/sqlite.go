package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// eventBufferSize is the channel depth for state and object events.
// Events for slow consumers beyond this depth are dropped with a warning.
const eventBufferSize = 256

// Logger defines the logging interface used by the SQLiteStore.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// SQLiteStore is the SQLite-backed implementation of Store.
//
// States and objects persist in the objects/states tables; change
// notifications fan out on in-process channels. State events are filtered
// by per-id subscriptions so idle datapoints cost nothing.
type SQLiteStore struct {
	db     *sql.DB
	logger Logger

	subMu     sync.Mutex
	stateSubs map[string]int

	stateCh  chan StateEvent
	objectCh chan ObjectEvent

	closeOnce sync.Once
}

// NewSQLiteStore creates a new SQLite-backed store.
// The db parameter should be an open SQLite connection with the StateGate
// schema applied.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:        db,
		logger:    noopLogger{},
		stateSubs: make(map[string]int),
		stateCh:   make(chan StateEvent, eventBufferSize),
		objectCh:  make(chan ObjectEvent, eventBufferSize),
	}
}

// SetLogger sets the logger for the store.
func (s *SQLiteStore) SetLogger(logger Logger) {
	s.logger = logger
}

// Close closes the event channels. The underlying database connection is
// owned by the caller and not closed here.
func (s *SQLiteStore) Close() {
	s.closeOnce.Do(func() {
		close(s.stateCh)
		close(s.objectCh)
	})
}

// GetState returns the current state of a datapoint.
func (s *SQLiteStore) GetState(ctx context.Context, id string) (State, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT val, ack, ts, lc, source, quality FROM states WHERE id = ?`, id)

	state, err := scanState(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return State{}, ErrNotFound
		}
		return State{}, fmt.Errorf("%w: querying state %q: %w", ErrUpstream, id, err)
	}
	return state, nil
}

// SetState writes a new value for a datapoint and returns the stored state.
//
// The last-change timestamp advances only when the value actually changes;
// a rewrite of the same value refreshes ts alone. An event is emitted for
// subscribed ids.
func (s *SQLiteStore) SetState(ctx context.Context, id string, val any, ack bool, from string) (State, error) {
	encoded, err := json.Marshal(val)
	if err != nil {
		return State{}, fmt.Errorf("%w: encoding value for %q: %w", ErrUpstream, id, err)
	}

	now := time.Now().UnixMilli()
	state := State{Val: val, Ack: ack, TS: now, LC: now, From: from}

	prev, getErr := s.GetState(ctx, id)
	if getErr == nil && equalValues(prev.Val, val) {
		state.LC = prev.LC
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO states (id, val, ack, ts, lc, source, quality)
		VALUES (?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			val = excluded.val, ack = excluded.ack, ts = excluded.ts,
			lc = excluded.lc, source = excluded.source`,
		id, string(encoded), boolToInt(ack), state.TS, state.LC, from)
	if err != nil {
		return State{}, fmt.Errorf("%w: writing state %q: %w", ErrUpstream, id, err)
	}

	s.emitState(id, state)
	return state, nil
}

// GetObject returns the metadata object for an id.
func (s *SQLiteStore) GetObject(ctx context.Context, id string) (*Object, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, name, names, common FROM objects WHERE id = ?`, id)

	obj, err := scanObject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: querying object %q: %w", ErrUpstream, id, err)
	}
	return obj, nil
}

// FindObject resolves an id or display name to its object.
// The canonical id wins over a display name when both match.
func (s *SQLiteStore) FindObject(ctx context.Context, idOrName string) (*Object, error) {
	obj, err := s.GetObject(ctx, idOrName)
	if err == nil {
		return obj, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, name, names, common FROM objects WHERE name = ? ORDER BY id LIMIT 1`,
		idOrName)

	obj, err = scanObject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: querying object by name %q: %w", ErrUpstream, idOrName, err)
	}
	return obj, nil
}

// PutObject creates or replaces a metadata object and emits an object event.
func (s *SQLiteStore) PutObject(ctx context.Context, obj *Object) error {
	names, err := json.Marshal(obj.Common.Name.ByLanguage)
	if err != nil {
		return fmt.Errorf("%w: encoding names for %q: %w", ErrUpstream, obj.ID, err)
	}
	common, err := json.Marshal(obj.Common)
	if err != nil {
		return fmt.Errorf("%w: encoding common for %q: %w", ErrUpstream, obj.ID, err)
	}

	typ := obj.Type
	if typ == "" {
		typ = "state"
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO objects (id, type, name, names, common)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type, name = excluded.name, names = excluded.names,
			common = excluded.common,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`,
		obj.ID, typ, obj.Common.Name.In("en"), string(names), string(common))
	if err != nil {
		return fmt.Errorf("%w: writing object %q: %w", ErrUpstream, obj.ID, err)
	}

	s.emitObject(obj.ID, obj)
	return nil
}

// DeleteObject removes a metadata object and emits a deletion event.
func (s *SQLiteStore) DeleteObject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM objects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: deleting object %q: %w", ErrUpstream, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	s.emitObject(id, nil)
	return nil
}

// ListObjects returns all objects whose id matches the glob pattern.
func (s *SQLiteStore) ListObjects(ctx context.Context, pattern string) ([]Object, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, name, names, common FROM objects
		WHERE id LIKE ? ESCAPE '\'
		ORDER BY id`, globToLike(pattern))
	if err != nil {
		return nil, fmt.Errorf("%w: listing objects for %q: %w", ErrUpstream, pattern, err)
	}
	defer rows.Close()

	var objects []Object
	for rows.Next() {
		obj, scanErr := scanObject(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%w: scanning object row: %w", ErrUpstream, scanErr)
		}
		objects = append(objects, *obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating objects: %w", ErrUpstream, err)
	}
	return objects, nil
}

// ListStates returns id/state pairs for datapoints matching the glob pattern.
func (s *SQLiteStore) ListStates(ctx context.Context, pattern string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, val, ack, ts, lc, source, quality FROM states
		WHERE id LIKE ? ESCAPE '\'
		ORDER BY id`, globToLike(pattern))
	if err != nil {
		return nil, fmt.Errorf("%w: listing states for %q: %w", ErrUpstream, pattern, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var id string
		var val sql.NullString
		var ack, quality int
		var ts, lc int64
		var source string
		if scanErr := rows.Scan(&id, &val, &ack, &ts, &lc, &source, &quality); scanErr != nil {
			return nil, fmt.Errorf("%w: scanning state row: %w", ErrUpstream, scanErr)
		}
		entries = append(entries, Entry{
			ID:    id,
			State: buildState(val, ack, ts, lc, source, quality),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating states: %w", ErrUpstream, err)
	}
	return entries, nil
}

// Acknowledge marks a datapoint's current value as device-confirmed.
//
// Used by the MQTT bridge when a protocol bridge reports the applied value.
// If val is non-nil it replaces the stored value. An event is emitted for
// subscribed ids.
func (s *SQLiteStore) Acknowledge(ctx context.Context, id string, val any, from string) (State, error) {
	if val == nil {
		prev, err := s.GetState(ctx, id)
		if err != nil {
			return State{}, err
		}
		val = prev.Val
	}
	return s.SetState(ctx, id, val, true, from)
}

// SubscribeStates registers interest in state events for id.
func (s *SQLiteStore) SubscribeStates(id string) {
	s.subMu.Lock()
	s.stateSubs[id]++
	s.subMu.Unlock()
}

// UnsubscribeStates releases one subscription for id.
func (s *SQLiteStore) UnsubscribeStates(id string) {
	s.subMu.Lock()
	if s.stateSubs[id] <= 1 {
		delete(s.stateSubs, id)
	} else {
		s.stateSubs[id]--
	}
	s.subMu.Unlock()
}

// StateEvents returns the channel carrying state change events.
func (s *SQLiteStore) StateEvents() <-chan StateEvent {
	return s.stateCh
}

// ObjectEvents returns the channel carrying object change events.
func (s *SQLiteStore) ObjectEvents() <-chan ObjectEvent {
	return s.objectCh
}

// emitState delivers a state event if the id has active subscriptions.
// Delivery is non-blocking: events are dropped when the consumer lags.
func (s *SQLiteStore) emitState(id string, state State) {
	s.subMu.Lock()
	subscribed := s.stateSubs[id] > 0
	s.subMu.Unlock()

	if !subscribed {
		return
	}

	select {
	case s.stateCh <- StateEvent{ID: id, State: state}:
	default:
		s.logger.Warn("state event dropped, consumer lagging", "id", id)
	}
}

// emitObject delivers an object event. Non-blocking like emitState.
func (s *SQLiteStore) emitObject(id string, obj *Object) {
	select {
	case s.objectCh <- ObjectEvent{ID: id, Object: obj}:
	default:
		s.logger.Warn("object event dropped, consumer lagging", "id", id)
	}
}

// scanner abstracts sql.Row and sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

// scanState scans a states row into a State.
func scanState(row scanner) (State, error) {
	var val sql.NullString
	var ack, quality int
	var ts, lc int64
	var source string

	if err := row.Scan(&val, &ack, &ts, &lc, &source, &quality); err != nil {
		return State{}, err
	}
	return buildState(val, ack, ts, lc, source, quality), nil
}

// buildState assembles a State from scanned columns, decoding the JSON value.
func buildState(val sql.NullString, ack int, ts, lc int64, source string, quality int) State {
	state := State{
		Ack:  ack != 0,
		TS:   ts,
		LC:   lc,
		From: source,
		Q:    quality,
	}
	if val.Valid {
		if err := json.Unmarshal([]byte(val.String), &state.Val); err != nil {
			// Legacy rows may hold bare strings; keep them as-is.
			state.Val = val.String
		}
	}
	return state
}

// scanObject scans an objects row into an Object.
func scanObject(row scanner) (*Object, error) {
	var id, typ, name, names, common string
	if err := row.Scan(&id, &typ, &name, &names, &common); err != nil {
		return nil, err
	}

	obj := &Object{ID: id, Type: typ}
	if err := json.Unmarshal([]byte(common), &obj.Common); err != nil {
		return nil, fmt.Errorf("decoding common for %q: %w", id, err)
	}

	// The names column is authoritative for per-language maps; the name
	// column keeps the flat form for indexed lookups.
	var byLang map[string]string
	if err := json.Unmarshal([]byte(names), &byLang); err == nil && len(byLang) > 0 {
		obj.Common.Name = Name{ByLanguage: byLang}
	} else if obj.Common.Name.Text == "" && len(obj.Common.Name.ByLanguage) == 0 {
		obj.Common.Name = Name{Text: name}
	}

	return obj, nil
}

// equalValues compares two state values via their JSON encodings.
func equalValues(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

// boolToInt converts a bool for SQLite integer columns.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
