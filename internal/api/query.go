package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/oakhurst-automation/stategate/internal/history"
	"github.com/oakhurst-automation/stategate/internal/resolver"
	"github.com/oakhurst-automation/stategate/internal/store"
)

// defaultQueryWindow is the time range when no dateFrom is given.
const defaultQueryWindow = time.Hour

// series is one time-series result in the response: datapoints are
// [value, timestamp-ms] pairs.
type series struct {
	Target     string  `json:"target"`
	Datapoints [][]any `json:"datapoints"`
}

// cmdQuery serves time-series data for the given targets.
//
// The range comes from dateFrom/dateTo: named presets and relative offsets
// resolve against now, everything else parses as a literal timestamp.
// With a history source configured the recorded series is returned; without
// one (or with noHistory set) each target degrades to a single point
// carrying its current value.
func (s *Server) cmdQuery(w http.ResponseWriter, r *http.Request, req *request) {
	targets := req.ids
	if len(targets) == 0 {
		targets = bodyTargets(req.q)
	}
	if len(targets) == 0 {
		respondError(w, req.q, validationError("no target given"), false)
		return
	}

	hreq, err := buildHistoryRequest(req.q, time.Now())
	if err != nil {
		respondError(w, req.q, err, false)
		return
	}

	noHistory := false
	if raw, ok := req.q.Get("noHistory"); ok {
		noHistory = raw == "" || raw == "true" || raw == "1"
	}
	useHistory := s.history != nil && !noHistory

	results := make([]series, 0, len(targets))
	for _, id := range targets {
		res, err := s.resolver.Resolve(r.Context(), id)
		if err != nil {
			if errors.Is(err, resolver.ErrNotFound) {
				err = notFoundError(id)
			}
			respondError(w, req.q, err, false)
			return
		}

		var points [][]any
		if useHistory {
			hreq.Target = res.ID
			recorded, err := s.history.Query(r.Context(), hreq)
			if err != nil {
				respondError(w, req.q, fmt.Errorf("%w: %w", store.ErrUpstream, err), false)
				return
			}
			points = make([][]any, 0, len(recorded))
			for _, p := range recorded {
				points = append(points, []any{p.Val, p.TS})
			}
		} else {
			points, err = s.currentValuePoint(r, res.ID)
			if err != nil {
				respondError(w, req.q, err, false)
				return
			}
		}

		results = append(results, series{Target: res.ID, Datapoints: points})
	}

	respond(w, http.StatusOK, results, req.q)
}

// bodyTargets extracts query targets submitted via POST body. The body is
// folded into the query string during parsing, so each target shows up as a
// valueless free-form entry. Bare shaping flags are not targets.
func bodyTargets(q *ParsedQuery) []string {
	var targets []string
	for _, v := range q.Values {
		if v.HasValue || v.Key == "noHistory" {
			continue
		}
		targets = append(targets, splitIDs(v.Key)...)
	}
	return targets
}

// currentValuePoint builds the single-point fallback series.
func (s *Server) currentValuePoint(r *http.Request, id string) ([][]any, error) {
	state, err := s.store.GetState(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// No live value yet: an empty series, not an error.
			return [][]any{}, nil
		}
		return nil, err
	}
	return [][]any{{state.Val, state.TS}}, nil
}

// buildHistoryRequest assembles the range and shaping parameters.
func buildHistoryRequest(q *ParsedQuery, now time.Time) (history.Request, error) {
	hreq := history.Request{
		From: now.Add(-defaultQueryWindow),
		To:   now,
	}

	if raw, ok := q.Get("dateFrom"); ok && raw != "" {
		from, ok := parseTimeParam(raw, now)
		if !ok {
			return hreq, validationError("dateFrom %q is not resolvable", raw)
		}
		hreq.From = from
	}
	if raw, ok := q.Get("dateTo"); ok && raw != "" {
		to, ok := parseTimeParam(raw, now)
		if !ok {
			return hreq, validationError("dateTo %q is not resolvable", raw)
		}
		hreq.To = to
	}

	if raw, ok := q.Get("aggregate"); ok {
		hreq.Aggregate = raw
	}
	if raw, ok := q.Get("count"); ok {
		if n, err := strconv.Atoi(raw); err == nil {
			hreq.Count = n
		}
	}
	if raw, ok := q.Get("step"); ok {
		if ms, err := strconv.Atoi(raw); err == nil {
			hreq.Step = time.Duration(ms) * time.Millisecond
		}
	}

	return hreq, nil
}

// cmdAnnotations always returns an empty list; annotation support is a
// protocol placeholder for charting frontends.
func (s *Server) cmdAnnotations(w http.ResponseWriter, _ *http.Request, req *request) {
	respond(w, http.StatusOK, []any{}, req.q)
}

// cmdHelp returns a self-describing map of example URLs for every command.
func (s *Server) cmdHelp(w http.ResponseWriter, r *http.Request, req *request) {
	scheme := "http"
	if s.cfg.TLS.Enabled || r.TLS != nil {
		scheme = "https"
	}
	base := scheme + "://" + r.Host

	example := "stategate.0.device.state"
	help := map[string]string{
		"getPlainValue":    base + "/getPlainValue/" + example,
		"get":              base + "/get/" + example,
		"getBulk":          base + "/getBulk/" + example + "," + example,
		"set":              base + "/set/" + example + "?value=1&wait=2000",
		"toggle":           base + "/toggle/" + example,
		"setBulk":          base + "/setBulk?" + example + "=1&stategate.0.other.state=true",
		"setValueFromBody": base + "/setValueFromBody/" + example,
		"objects":          base + "/objects?pattern=stategate.0.*",
		"states":           base + "/states?pattern=stategate.0.*",
		"search":           base + "/search?pattern=stategate.0.*",
		"query":            base + "/query/" + example + "?dateFrom=-1h&aggregate=mean",
		"annotations":      base + "/annotations",
		"help":             base + "/help",
	}
	respond(w, http.StatusOK, help, req.q)
}
