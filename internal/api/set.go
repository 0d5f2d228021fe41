package api

import (
	"context"
	"errors"
	"html"
	"net/http"
	"strconv"
	"time"

	"github.com/oakhurst-automation/stategate/internal/coerce"
	"github.com/oakhurst-automation/stategate/internal/resolver"
	"github.com/oakhurst-automation/stategate/internal/store"
)

// writeValue writes a coerced value and, when a wait window is set, parks
// for the device acknowledgement.
//
// ack=true forces the write to be stored as already confirmed, so there is
// nothing to wait for and the window collapses to zero. The waiter is
// registered before the write so an acknowledgement racing the write is
// not lost.
func (s *Server) writeValue(ctx context.Context, res resolver.Resolved, val any, req *request) (any, error) {
	wait := req.q.Wait
	ack := req.q.Ack
	if ack {
		wait = 0
	}

	var waiter waiterHandle
	if wait > 0 {
		waiter = s.tracker.Register(res.ID)
	}

	state, err := s.store.SetState(ctx, res.ID, val, ack, req.user)
	if err != nil {
		if waiter != nil {
			waiter.Cancel()
		}
		return nil, err
	}

	if s.pub != nil {
		s.pub.PublishWrite(res.ID, state)
	}
	if s.recorder != nil {
		s.recorder.Record(res.ID, state.Val, time.UnixMilli(state.TS))
	}

	if waiter != nil {
		acked, err := waiter.Wait(ctx, time.Duration(wait)*time.Millisecond)
		if err != nil {
			return nil, err
		}
		return acked.Val, nil
	}
	return state.Val, nil
}

// waiterHandle abstracts the tracker's waiter for writeValue.
type waiterHandle interface {
	Wait(ctx context.Context, wait time.Duration) (store.State, error)
	Cancel()
}

// cmdSet writes one datapoint. The value comes from the value (or val)
// parameter, coerced per the type hint or the object's declared type.
func (s *Server) cmdSet(w http.ResponseWriter, r *http.Request, req *request) {
	if len(req.ids) == 0 {
		respondError(w, req.q, validationError("no datapoint given"), false)
		return
	}
	id := req.ids[0]

	raw, ok := req.q.Get("value")
	if !ok {
		raw, ok = req.q.Get("val")
	}
	if !ok {
		respondError(w, req.q, validationError("no value found for %q", id), false)
		return
	}

	res, err := s.resolver.Resolve(r.Context(), id)
	if err != nil {
		if errors.Is(err, resolver.ErrNotFound) {
			err = notFoundError(id)
		}
		respondError(w, req.q, err, false)
		return
	}

	val, err := coerce.Coerce(raw, req.q.Type, res.Object.Common.Type)
	if err != nil {
		respondError(w, req.q, err, false)
		return
	}

	written, err := s.writeValue(r.Context(), res, val, req)
	if err != nil {
		respondError(w, req.q, err, false)
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"id":    res.ID,
		"value": written,
		"val":   written,
	}, req.q)
}

// cmdToggle inverts one datapoint: booleans flip, numbers mirror inside
// their [min, max] bounds, and on/off-like string pairs cycle.
func (s *Server) cmdToggle(w http.ResponseWriter, r *http.Request, req *request) {
	if len(req.ids) == 0 {
		respondError(w, req.q, validationError("no datapoint given"), false)
		return
	}
	id := req.ids[0]

	res, err := s.resolver.Resolve(r.Context(), id)
	if err != nil {
		if errors.Is(err, resolver.ErrNotFound) {
			err = notFoundError(id)
		}
		respondError(w, req.q, err, false)
		return
	}

	state, err := s.store.GetState(r.Context(), res.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = notFoundError(id)
		}
		respondError(w, req.q, err, false)
		return
	}

	toggled, err := toggleValue(state.Val, res.Object)
	if err != nil {
		respondError(w, req.q, err, false)
		return
	}

	written, err := s.writeValue(r.Context(), res, toggled, req)
	if err != nil {
		respondError(w, req.q, err, false)
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"id":    res.ID,
		"value": written,
		"val":   written,
	}, req.q)
}

// togglePairs are the on/off-like literal pairs string toggling cycles.
var togglePairs = map[string]string{
	"true": "false", "false": "true",
	"on": "off", "off": "on",
	"ON": "OFF", "OFF": "ON",
	"1": "0", "0": "1",
}

// toggleValue computes the inverted value for a toggle command.
//
// Numeric inversion mirrors inside the object's declared bounds,
// defaulting to [0, 100]: value' = max + min - value. Toggling twice
// therefore returns the original value.
func toggleValue(val any, obj *store.Object) (any, error) {
	switch v := val.(type) {
	case bool:
		return !v, nil
	case float64:
		min, max := toggleBounds(obj)
		return max + min - v, nil
	case string:
		if paired, ok := togglePairs[v]; ok {
			return paired, nil
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			min, max := toggleBounds(obj)
			return max + min - f, nil
		}
	}
	return nil, validationError("state is neither number nor boolean")
}

// toggleBounds returns the object's [min, max] range, defaulting to [0, 100].
func toggleBounds(obj *store.Object) (float64, float64) {
	min, max := 0.0, 100.0
	if obj != nil {
		if obj.Common.Min != nil {
			min = *obj.Common.Min
		}
		if obj.Common.Max != nil {
			max = *obj.Common.Max
		}
	}
	return min, max
}

// cmdSetBulk writes every key=value pair independently, in request order.
// Per-entry failures are recorded inline; the batch always completes.
func (s *Server) cmdSetBulk(w http.ResponseWriter, r *http.Request, req *request) {
	results := make([]map[string]any, 0, len(req.q.Values))
	for _, entry := range req.q.Values {
		results = append(results, s.writeBulkEntry(r, req, entry.Key, entry.Val))
	}
	respond(w, http.StatusOK, results, req.q)
}

// cmdSetValueFromBody applies the POST body verbatim as the value for
// every given id, then behaves like setBulk.
func (s *Server) cmdSetValueFromBody(w http.ResponseWriter, r *http.Request, req *request) {
	if len(req.ids) == 0 {
		respondError(w, req.q, validationError("no datapoints given"), false)
		return
	}

	raw := string(req.body)
	results := make([]map[string]any, 0, len(req.ids))
	for _, id := range req.ids {
		results = append(results, s.writeBulkEntry(r, req, id, raw))
	}
	respond(w, http.StatusOK, results, req.q)
}

// writeBulkEntry resolves, coerces, and writes one bulk entry, folding any
// failure into the entry itself.
func (s *Server) writeBulkEntry(r *http.Request, req *request, id, raw string) map[string]any {
	res, err := s.resolver.Resolve(r.Context(), id)
	if err != nil {
		if errors.Is(err, resolver.ErrNotFound) {
			err = notFoundError(id)
		}
		return bulkError(id, err)
	}

	val, err := coerce.Coerce(raw, req.q.Type, res.Object.Common.Type)
	if err != nil {
		return bulkError(id, err)
	}

	// Bulk writes never wait for acknowledgements.
	state, err := s.store.SetState(r.Context(), res.ID, val, req.q.Ack, req.user)
	if err != nil {
		return bulkError(id, err)
	}

	if s.pub != nil {
		s.pub.PublishWrite(res.ID, state)
	}
	if s.recorder != nil {
		s.recorder.Record(res.ID, state.Val, time.UnixMilli(state.TS))
	}

	return map[string]any{
		"id":    res.ID,
		"value": state.Val,
		"val":   state.Val,
	}
}

// bulkError builds an inline error entry for one bulk item.
func bulkError(id string, err error) map[string]any {
	return map[string]any{
		"id":    id,
		"error": html.EscapeString(normalizeErrorMessage(err.Error())),
	}
}
