// Package acl gates REST commands on per-user permissions.
//
// Every command carries a static requirement: which resource class it
// touches (states or objects) and what it does to it (read, write, list).
// The gate resolves the acting user's permission profile through an Engine
// and checks the single flag the requirement selects.
package acl

import (
	"context"
	"errors"
)

// ErrPermissionDenied indicates the acting user lacks the permission a
// command requires. Distinguishable from not-found at every call site.
var ErrPermissionDenied = errors.New("acl: permission denied")

// Resource classes a command may touch.
type Resource string

const (
	ResourceState  Resource = "state"
	ResourceObject Resource = "object"
	ResourceNone   Resource = "none"
)

// Operations a command may perform on its resource.
type Operation string

const (
	OpRead  Operation = "read"
	OpWrite Operation = "write"
	OpList  Operation = "list"
	OpNone  Operation = "none"
)

// Requirement is the static permission a command needs.
type Requirement struct {
	Resource  Resource
	Operation Operation
}

// CommandTable maps every REST command to its permission requirement.
// Unknown commands are denied outright for non-admin users.
var CommandTable = map[string]Requirement{
	"getPlainValue":    {ResourceState, OpRead},
	"get":              {ResourceState, OpRead},
	"getBulk":          {ResourceState, OpRead},
	"set":              {ResourceState, OpWrite},
	"toggle":           {ResourceState, OpWrite},
	"setBulk":          {ResourceState, OpWrite},
	"setValueFromBody": {ResourceState, OpWrite},
	"objects":          {ResourceObject, OpList},
	"getObjects":       {ResourceObject, OpList},
	"states":           {ResourceState, OpList},
	"getStates":        {ResourceState, OpList},
	"search":           {ResourceState, OpList},
	"query":            {ResourceState, OpRead},
	"annotations":      {ResourceNone, OpNone},
	"help":             {ResourceNone, OpNone},
}

// Flags is one resource class's permission bits.
type Flags struct {
	Read  bool
	Write bool
	List  bool
}

// Permissions is a user's full permission profile.
type Permissions struct {
	State  Flags
	Object Flags
}

// Allows reports whether the profile satisfies a requirement.
func (p Permissions) Allows(req Requirement) bool {
	var flags Flags
	switch req.Resource {
	case ResourceState:
		flags = p.State
	case ResourceObject:
		flags = p.Object
	default:
		return true
	}

	switch req.Operation {
	case OpList:
		return flags.List
	case OpRead:
		return flags.Read
	default:
		return flags.Write
	}
}

// Engine calculates a user's permission profile.
type Engine interface {
	CalculatePermissions(ctx context.Context, user string) (Permissions, error)
}

// Logger is the logging subset the gate uses.
type Logger interface {
	Warn(msg string, args ...any)
}

// Gate checks commands against user permissions.
type Gate struct {
	engine    Engine
	adminUser string
	logger    Logger
}

// NewGate creates a permission gate. adminUser bypasses all checks.
func NewGate(engine Engine, adminUser string, logger Logger) *Gate {
	return &Gate{engine: engine, adminUser: adminUser, logger: logger}
}

// Check returns nil if user may run command, ErrPermissionDenied if not.
// Engine failures propagate unchanged.
func (g *Gate) Check(ctx context.Context, user, command string) error {
	if user == g.adminUser {
		return nil
	}

	req, ok := CommandTable[command]
	if !ok {
		if g.logger != nil {
			g.logger.Warn("permission check for unknown command", "command", command, "user", user)
		}
		return ErrPermissionDenied
	}

	if req.Resource == ResourceNone {
		return nil
	}

	perms, err := g.engine.CalculatePermissions(ctx, user)
	if err != nil {
		return err
	}
	if !perms.Allows(req) {
		return ErrPermissionDenied
	}
	return nil
}
