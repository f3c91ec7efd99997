// Package audit writes the machine-readable record of an ingest run next
// to the catalog it produced.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/neilberkman/cophist/internal/core/importer"
)

// FileName is the audit artifact written into the output directory.
const FileName = "ingest_audit.json"

// Write serializes the run report into outputDir. The report doubles as
// the audit document, so a run is reconstructible from the artifact alone.
func Write(outputDir string, report *importer.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode audit: %w", err)
	}
	path := filepath.Join(outputDir, FileName)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write audit: %w", err)
	}
	return path, nil
}
