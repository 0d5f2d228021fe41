package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/oakhurst-automation/stategate/internal/resolver"
	"github.com/oakhurst-automation/stategate/internal/store"
)

// cmdGetPlainValue returns raw values, newline-joined, as plain text.
// The json flag switches each line to the full state object instead of
// the bare value. Unresolved ids surface inline per line; only a sole
// failing id turns the whole response into a 404.
func (s *Server) cmdGetPlainValue(w http.ResponseWriter, r *http.Request, req *request) {
	if len(req.ids) == 0 {
		respondError(w, req.q, validationError("no datapoint given"), true)
		return
	}

	lines := make([]string, 0, len(req.ids))
	failures := 0
	for _, id := range req.ids {
		state, err := s.readState(r, id)
		if err != nil {
			failures++
			lines = append(lines, "error: "+html.EscapeString(normalizeErrorMessage(err.Error())))
			continue
		}
		if req.q.JSON {
			lines = append(lines, formatPlainValue(state, false))
			continue
		}
		lines = append(lines, formatPlainValue(state.Val, req.q.NoStringify))
	}

	status := http.StatusOK
	if failures == len(req.ids) {
		status = http.StatusNotFound
	}
	respondPlain(w, status, strings.Join(lines, "\n"))
}

// readState resolves an id and reads its current state.
func (s *Server) readState(r *http.Request, id string) (store.State, error) {
	res, err := s.resolver.Resolve(r.Context(), id)
	if err != nil {
		if errors.Is(err, resolver.ErrNotFound) {
			return store.State{}, notFoundError(id)
		}
		return store.State{}, err
	}
	state, err := s.store.GetState(r.Context(), res.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.State{}, notFoundError(id)
		}
		return store.State{}, err
	}
	return state, nil
}

// formatPlainValue renders one value for the plain-text response.
func formatPlainValue(val any, noStringify bool) string {
	if noStringify {
		return fmt.Sprint(val)
	}
	body, err := json.Marshal(val)
	if err != nil {
		return fmt.Sprint(val)
	}
	return string(body)
}

// cmdGet returns the merged object and state for each id. A single id
// yields the bare merged object; multiple ids yield an ordered list with
// per-id errors inline.
func (s *Server) cmdGet(w http.ResponseWriter, r *http.Request, req *request) {
	if len(req.ids) == 0 {
		respondError(w, req.q, validationError("no datapoint given"), false)
		return
	}

	results := make([]any, 0, len(req.ids))
	for _, id := range req.ids {
		merged, err := s.mergedState(r, id)
		if err != nil {
			if len(req.ids) == 1 {
				respondError(w, req.q, err, false)
				return
			}
			results = append(results, map[string]any{
				"error": html.EscapeString(normalizeErrorMessage(err.Error())),
			})
			continue
		}
		results = append(results, merged)
	}

	if len(req.ids) == 1 {
		respond(w, http.StatusOK, results[0], req.q)
		return
	}
	respond(w, http.StatusOK, results, req.q)
}

// mergedState combines an object's metadata with its live state fields.
func (s *Server) mergedState(r *http.Request, id string) (map[string]any, error) {
	res, err := s.resolver.Resolve(r.Context(), id)
	if err != nil {
		if errors.Is(err, resolver.ErrNotFound) {
			return nil, notFoundError(id)
		}
		return nil, err
	}

	merged := map[string]any{
		"_id":    res.Object.ID,
		"type":   res.Object.Type,
		"common": res.Object.Common,
	}

	state, err := s.store.GetState(r.Context(), res.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		// Metadata without a live value yet: state fields stay null.
		merged["val"] = nil
		return merged, nil
	}

	merged["val"] = state.Val
	merged["ack"] = state.Ack
	merged["ts"] = state.TS
	merged["lc"] = state.LC
	merged["from"] = state.From
	merged["q"] = state.Q
	return merged, nil
}

// cmdGetBulk returns a compact {id, val, ts, ack} list. Per-id failures
// yield a nulled entry; the batch always completes.
func (s *Server) cmdGetBulk(w http.ResponseWriter, r *http.Request, req *request) {
	if len(req.ids) == 0 {
		respondError(w, req.q, validationError("no datapoint given"), false)
		return
	}

	results := make([]map[string]any, 0, len(req.ids))
	for _, id := range req.ids {
		entry := map[string]any{"id": id, "val": nil, "ts": nil, "ack": nil}

		res, err := s.resolver.Resolve(r.Context(), id)
		if err == nil {
			if state, stateErr := s.store.GetState(r.Context(), res.ID); stateErr == nil {
				entry["val"] = state.Val
				entry["ts"] = state.TS
				entry["ack"] = state.Ack
			}
		}
		results = append(results, entry)
	}

	respond(w, http.StatusOK, results, req.q)
}
