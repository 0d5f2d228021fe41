package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/oakhurst-automation/stategate/internal/store"
)

// patternFor extracts the pattern parameter, defaulting to everything.
func patternFor(q *ParsedQuery) string {
	if pattern, ok := q.Get("pattern"); ok && pattern != "" {
		return pattern
	}
	return "*"
}

// needsNarrowing reports whether a glob has a non-trailing wildcard, which
// the store's LIKE translation matches too broadly for multi-segment ids.
func needsNarrowing(pattern string) bool {
	idx := strings.Index(pattern, "*")
	return idx >= 0 && idx != len(pattern)-1
}

// cmdObjects lists metadata objects matching the glob pattern.
func (s *Server) cmdObjects(w http.ResponseWriter, r *http.Request, req *request) {
	pattern := patternFor(req.q)

	objects, err := s.store.ListObjects(r.Context(), pattern)
	if err != nil {
		respondError(w, req.q, err, false)
		return
	}

	if needsNarrowing(pattern) {
		narrowed := objects[:0]
		for _, obj := range objects {
			if store.MatchGlob(pattern, obj.ID) {
				narrowed = append(narrowed, obj)
			}
		}
		objects = narrowed
	}

	if objects == nil {
		objects = []store.Object{}
	}
	respond(w, http.StatusOK, objects, req.q)
}

// cmdStates lists live states matching the glob pattern.
func (s *Server) cmdStates(w http.ResponseWriter, r *http.Request, req *request) {
	pattern := patternFor(req.q)

	entries, err := s.store.ListStates(r.Context(), pattern)
	if err != nil {
		respondError(w, req.q, err, false)
		return
	}

	if needsNarrowing(pattern) {
		narrowed := entries[:0]
		for _, entry := range entries {
			if store.MatchGlob(pattern, entry.ID) {
				narrowed = append(narrowed, entry)
			}
		}
		entries = narrowed
	}

	if entries == nil {
		entries = []store.Entry{}
	}
	respond(w, http.StatusOK, entries, req.q)
}

// cmdSearch lists matching datapoint ids. With a history source configured
// the listing is delegated to it (only recorded datapoints are queryable);
// otherwise the state store serves it.
func (s *Server) cmdSearch(w http.ResponseWriter, r *http.Request, req *request) {
	pattern := patternFor(req.q)

	if s.history != nil {
		targets, err := s.history.Targets(r.Context(), pattern)
		if err != nil {
			respondError(w, req.q, fmt.Errorf("%w: %w", store.ErrUpstream, err), false)
			return
		}
		if targets == nil {
			targets = []string{}
		}
		respond(w, http.StatusOK, targets, req.q)
		return
	}

	entries, err := s.store.ListStates(r.Context(), pattern)
	if err != nil {
		respondError(w, req.q, err, false)
		return
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if needsNarrowing(pattern) && !store.MatchGlob(pattern, entry.ID) {
			continue
		}
		ids = append(ids, entry.ID)
	}
	respond(w, http.StatusOK, ids, req.q)
}
