package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// SchemaVersion is the version recorded for catalogs produced by this
// build. Bump it together with an entry in migrations below.
const SchemaVersion = "3"

type migration struct {
	version int
	apply   func(tx *sql.Tx) error
}

// migrations run in order against catalogs stamped with an older version.
// The base schema in initSchema already reflects the latest version, so
// this list stays empty until a released version needs upgrading in place.
var migrations = []migration{}

// versionNumber parses a stamped schema version. Unstamped or
// unparseable catalogs read as 0 so every migration applies.
func versionNumber(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// migrate brings an existing catalog up to SchemaVersion and stamps the
// version and migration timestamp.
func (db *DB) migrate() error {
	stamped, err := db.GetMetadata("schema_version")
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	current := versionNumber(stamped)

	for _, m := range migrations {
		if current >= m.version {
			continue
		}
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}
		if err := m.apply(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	if err := db.SetMetadata("schema_version", SchemaVersion); err != nil {
		return err
	}
	return db.SetMetadata("schema_migrated_at_utc", time.Now().UTC().Format(time.RFC3339))
}
