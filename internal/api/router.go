package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/oakhurst-automation/stategate/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Every endpoint is one command with optional comma-separated ids:
	// /{command}/{ids}?{query}. The bare root serves the help map.
	r.Get("/", s.handleCommand)
	r.Post("/", s.handleCommand)
	r.Route("/{command}", func(r chi.Router) {
		r.Get("/", s.handleCommand)
		r.Post("/", s.handleCommand)
		r.Get("/*", s.handleCommand)
		r.Post("/*", s.handleCommand)
	})

	return r
}

// request carries one parsed, authenticated command invocation.
type request struct {
	q    *ParsedQuery
	user string
	ids  []string
	body []byte
}

// handleCommand drives the request pipeline: parse, authenticate,
// authorize, execute, respond. It terminates on the first failure.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	command := chi.URLParam(r, "command")
	if command == "" {
		command = "help"
	}

	req, err := s.parseRequest(r, command)
	if err != nil {
		respondError(w, req.q, err, command == "getPlainValue")
		return
	}

	if err := s.authenticate(r, req); err != nil {
		respondError(w, req.q, err, command == "getPlainValue")
		return
	}

	if err := s.gate.Check(r.Context(), req.user, command); err != nil {
		respondError(w, req.q, err, command == "getPlainValue")
		return
	}

	s.handlerFor(command)(w, r, req)
}

// handlerFor routes a command name to its handler. Unrecognized commands
// fall through to help; non-admin users never reach this point with one
// (the gate denies them first).
func (s *Server) handlerFor(command string) func(http.ResponseWriter, *http.Request, *request) {
	switch command {
	case "getPlainValue":
		return s.cmdGetPlainValue
	case "get":
		return s.cmdGet
	case "getBulk":
		return s.cmdGetBulk
	case "set":
		return s.cmdSet
	case "toggle":
		return s.cmdToggle
	case "setBulk":
		return s.cmdSetBulk
	case "setValueFromBody":
		return s.cmdSetValueFromBody
	case "objects", "getObjects":
		return s.cmdObjects
	case "states", "getStates":
		return s.cmdStates
	case "search":
		return s.cmdSearch
	case "query":
		return s.cmdQuery
	case "annotations":
		return s.cmdAnnotations
	default:
		return s.cmdHelp
	}
}

// parseRequest extracts ids, query parameters, and the POST body.
//
// POST bodies are treated as an extension of the query string, except for
// setValueFromBody where the body is the verbatim value.
func (s *Server) parseRequest(r *http.Request, command string) (*request, error) {
	raw := r.URL.RawQuery
	var body []byte

	if r.Method == http.MethodPost && r.Body != nil {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return &request{q: ParseQuery(raw)}, validationError("reading request body: %v", err)
		}
		body = b

		if command != "setValueFromBody" && len(body) > 0 {
			if raw == "" {
				raw = string(body)
			} else {
				raw += "&" + string(body)
			}
		}
	}

	q := ParseQuery(raw)

	user := q.User
	if user == "" {
		user = s.cfg.DefaultUser
	}

	return &request{
		q:    q,
		user: user,
		ids:  splitIDs(chi.URLParam(r, "*")),
		body: body,
	}, nil
}

// authenticate verifies request credentials when auth is enabled.
// Anonymous requests run as the configured default user otherwise.
func (s *Server) authenticate(r *http.Request, req *request) error {
	if !s.authCfg.Enabled {
		return nil
	}
	if req.q.User == "" {
		return auth.ErrInvalidCredentials
	}
	return s.auth.CheckPassword(r.Context(), req.q.User, req.q.Pass)
}

// splitIDs splits the comma-separated id path segment.
func splitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
