// Package database provides SQLite connectivity for StateGate.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Versioned schema migrations embedded in the binary
//   - Connection pooling and lifecycle management
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive-only: new columns carry defaults, and columns
// are never dropped or renamed. Each migration ships as an .up.sql and
// .down.sql pair named YYYYMMDD_HHMMSS_description.
package database
