// Package database provides SQLite connectivity for grayhub's command audit log.
//
// Hub state is never persisted here; the hub is the source of truth and the
// in-memory store is re-seeded on every connect. The database only records
// what grayhub asked the hub to do and what the hub answered.
//
// This package manages:
//   - Connection with WAL mode and a busy timeout
//   - Forward and rollback schema migrations read from an fs.FS
//   - Connection lifecycle and health checks
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql.
package database
