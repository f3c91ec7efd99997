package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/neilberkman/cophist/internal/core/config"
	"github.com/neilberkman/cophist/internal/core/db"
)

var infoDBPath string

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show catalog statistics",
	Long: `Display statistics about an existing catalog.

Shows schema version, generation time, row counts per table, and storage size.`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringVar(&infoDBPath, "db", "", "Catalog path (default from config, in the current directory)")
}

func runInfo(cmd *cobra.Command, args []string) error {
	dbPath := infoDBPath
	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dbPath = filepath.Join(cfg.OutputDir, cfg.DBName)
	}
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("catalog not found at %s", dbPath)
	}

	catalog, err := db.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() {
		_ = catalog.Close()
	}()

	fmt.Println("Catalog Info")
	fmt.Println("============")
	fmt.Println()

	for _, key := range []string{"schema_version", "generated_at_utc", "source_files"} {
		value, err := catalog.GetMetadata(key)
		if err != nil {
			return fmt.Errorf("failed to read metadata: %w", err)
		}
		if value != "" {
			fmt.Printf("%-18s %s\n", key+":", value)
		}
	}
	fmt.Println()

	tables := []string{
		"chat_sessions", "requests", "request_parts", "request_variables",
		"responses", "result_messages", "followups", "content_references",
		"code_citations", "tool_outputs", "agents", "metrics_repeat_failures",
	}
	for _, table := range tables {
		var count int64
		if err := catalog.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			return fmt.Errorf("failed to count %s: %w", table, err)
		}
		fmt.Printf("%-24s %s\n", table+":", humanize.Comma(count))
	}

	if info, err := os.Stat(dbPath); err == nil {
		fmt.Println()
		fmt.Printf("Size: %s\n", humanize.Bytes(uint64(info.Size())))
	}
	return nil
}
