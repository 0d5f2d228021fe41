package api

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
)

// respond renders a success payload honoring the request's formatting
// parameters: JSONP callback, prettyPrint, or compact JSON.
func respond(w http.ResponseWriter, status int, payload any, q *ParsedQuery) {
	switch {
	case q.Callback != "":
		body, err := json.Marshal(payload)
		if err != nil {
			respondError(w, q, fmt.Errorf("encoding response: %w", err), false)
			return
		}
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, "%s(%s);", q.Callback, body)

	case q.PrettyPrint:
		body, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			respondError(w, q, fmt.Errorf("encoding response: %w", err), false)
			return
		}
		// Pretty output is meant for humans in a browser.
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		w.Write(body) //nolint:errcheck // best-effort write, connection may be gone

	default:
		body, err := json.Marshal(payload)
		if err != nil {
			respondError(w, q, fmt.Errorf("encoding response: %w", err), false)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		w.Write(body) //nolint:errcheck // best-effort write
	}
}

// respondPlain renders newline-joined plain text (getPlainValue).
func respondPlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

// respondError renders an error with its mapped status code.
//
// Messages are HTML-escaped since they can reflect request input (e.g.
// unresolved ids). A leading "Error: " from wrapped errors is normalized
// away. Plain responses carry "error: <msg>"; JSON responses carry
// {"error": "<msg>"}.
func respondError(w http.ResponseWriter, q *ParsedQuery, err error, plain bool) {
	status := statusFor(err)
	msg := html.EscapeString(normalizeErrorMessage(err.Error()))

	if plain {
		respondPlain(w, status, "error: "+msg)
		return
	}

	if q != nil && q.Callback != "" {
		body, _ := json.Marshal(map[string]string{"error": msg})
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, "%s(%s);", q.Callback, body)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	body, _ := json.Marshal(map[string]string{"error": msg})
	w.Write(body) //nolint:errcheck // best-effort write
}

// normalizeErrorMessage strips a leading "Error: " prefix.
func normalizeErrorMessage(msg string) string {
	return strings.TrimPrefix(msg, "Error: ")
}
