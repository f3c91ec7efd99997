package db

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// SetMetadata stores a key/value pair in catalog_metadata.
func (db *DB) SetMetadata(key, value string) error {
	_, err := db.conn.Exec(`
		INSERT INTO catalog_metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata %s: %w", key, err)
	}
	return nil
}

// GetMetadata returns the value for a key, or "" when the key is absent.
func (db *DB) GetMetadata(key string) (string, error) {
	var value string
	err := db.conn.QueryRow(`SELECT value FROM catalog_metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// UpdateRunMetadata stamps the catalog with the details of an ingest run
// inside the run's transaction.
func UpdateRunMetadata(tx *sql.Tx, sourceFiles []string) error {
	sorted := make([]string, len(sourceFiles))
	copy(sorted, sourceFiles)
	sort.Strings(sorted)

	pairs := map[string]string{
		"schema_version":   SchemaVersion,
		"generated_at_utc": time.Now().UTC().Format(time.RFC3339),
		"source_files":     strings.Join(sorted, ","),
	}
	for key, value := range pairs {
		if _, err := tx.Exec(`
			INSERT INTO catalog_metadata (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value); err != nil {
			return fmt.Errorf("failed to set metadata %s: %w", key, err)
		}
	}
	return nil
}
