package acl

import (
	"context"
	"database/sql"
	"fmt"
)

// defaultPermissions is the profile for users with no explicit grants.
// Read and list are open by default; writes require a grant.
var defaultPermissions = Permissions{
	State:  Flags{Read: true, List: true},
	Object: Flags{Read: true, List: true},
}

// SQLiteEngine calculates permissions from the acl_grants table.
//
// Each row grants or revokes one (resource, operation) flag for a user.
// A user with no rows at all gets the read-only default profile.
type SQLiteEngine struct {
	db *sql.DB
}

// NewSQLiteEngine creates an engine over an open database with the
// StateGate schema applied.
func NewSQLiteEngine(db *sql.DB) *SQLiteEngine {
	return &SQLiteEngine{db: db}
}

// CalculatePermissions builds the user's profile from stored grants.
func (e *SQLiteEngine) CalculatePermissions(ctx context.Context, user string) (Permissions, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT resource, operation, allowed FROM acl_grants WHERE username = ?`, user)
	if err != nil {
		return Permissions{}, fmt.Errorf("querying grants for %q: %w", user, err)
	}
	defer rows.Close()

	perms := defaultPermissions
	found := false
	for rows.Next() {
		var resource, operation string
		var allowed int
		if err := rows.Scan(&resource, &operation, &allowed); err != nil {
			return Permissions{}, fmt.Errorf("scanning grant row: %w", err)
		}
		if !found {
			// Explicit grants replace the default profile entirely.
			perms = Permissions{}
			found = true
		}
		applyGrant(&perms, Resource(resource), Operation(operation), allowed != 0)
	}
	if err := rows.Err(); err != nil {
		return Permissions{}, fmt.Errorf("iterating grants: %w", err)
	}
	return perms, nil
}

// SetGrant stores one permission flag for a user.
func (e *SQLiteEngine) SetGrant(ctx context.Context, user string, resource Resource, operation Operation, allowed bool) error {
	allowedInt := 0
	if allowed {
		allowedInt = 1
	}
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO acl_grants (username, resource, operation, allowed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username, resource, operation) DO UPDATE SET allowed = excluded.allowed`,
		user, string(resource), string(operation), allowedInt)
	if err != nil {
		return fmt.Errorf("storing grant for %q: %w", user, err)
	}
	return nil
}

// applyGrant sets the single flag a grant row addresses.
func applyGrant(p *Permissions, resource Resource, operation Operation, allowed bool) {
	var flags *Flags
	switch resource {
	case ResourceState:
		flags = &p.State
	case ResourceObject:
		flags = &p.Object
	default:
		return
	}

	switch operation {
	case OpRead:
		flags.Read = allowed
	case OpWrite:
		flags.Write = allowed
	case OpList:
		flags.List = allowed
	}
}
