package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/neilberkman/cophist/internal/core/audit"
	"github.com/neilberkman/cophist/internal/core/config"
	"github.com/neilberkman/cophist/internal/core/importer"
	"github.com/neilberkman/cophist/internal/core/manifest"
	"github.com/neilberkman/cophist/internal/core/workspace"
)

var (
	ingestDBPath    string
	ingestOutputDir string
	ingestRoot      string
	ingestReset     bool
	ingestNoRedact  bool
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest chat archives into the workspace catalog",
	Long: `Ingest chat session archives from a file, a directory, or the editor's
default storage locations into the workspace catalog.

Re-running on the same archives is safe: sessions are replaced wholesale,
so the catalog never accumulates duplicates.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestDBPath, "db", "", "Catalog path or file name (default from config)")
	ingestCmd.Flags().StringVar(&ingestOutputDir, "output-dir", "", "Output directory for catalog and artifacts")
	ingestCmd.Flags().StringVar(&ingestRoot, "workspace-root", "", "Workspace root the catalog is scoped to (default current directory)")
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", false, "Purge all existing rows before ingesting")
	ingestCmd.Flags().BoolVar(&ingestNoRedact, "no-redact", false, "Disable secret redaction (recorded in the audit)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	opts := importer.Options{
		DBPath:            ingestDBPath,
		OutputDir:         ingestOutputDir,
		WorkspaceRoot:     ingestRoot,
		ScanDirs:          cfg.ScanDirs,
		Reset:             ingestReset,
		RedactionDisabled: ingestNoRedact || cfg.DisableRedaction,
	}
	if len(args) > 0 {
		opts.InputPath = args[0]
	}
	if opts.DBPath == "" {
		opts.DBPath = cfg.DBName
	}
	if opts.OutputDir == "" {
		opts.OutputDir = cfg.OutputDir
	}

	report, err := importer.Run(opts)
	if err != nil {
		var boundaryErr *workspace.BoundaryError
		if errors.As(err, &boundaryErr) {
			return fmt.Errorf("refusing to write outside the workspace: %w", err)
		}
		return err
	}

	if _, _, err := manifest.Write(report.OutputDir, report.DatabasePath, report.WorkspaceFingerprint); err != nil {
		return err
	}
	auditPath, err := audit.Write(report.OutputDir, report)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("Ingest complete"))
	fmt.Printf("  Files:     %s\n", humanize.Comma(int64(len(report.Files))))
	fmt.Printf("  Sessions:  %s\n", humanize.Comma(int64(report.SessionsIngested)))
	fmt.Printf("  Requests:  %s\n", humanize.Comma(int64(report.RequestsIngested)))
	if report.RedactionEnabled {
		fmt.Printf("  Redacted:  %s secrets\n", humanize.Comma(int64(report.SecretsRedacted)))
	} else {
		fmt.Println(warningStyle.Render("  Redaction: DISABLED"))
	}
	fmt.Printf("  Catalog:   %s\n", report.DatabasePath)
	fmt.Printf("  Audit:     %s\n", auditPath)

	if len(report.Warnings) > 0 {
		fmt.Println()
		fmt.Println(warningStyle.Render(fmt.Sprintf("%d warning(s):", len(report.Warnings))))
		for _, w := range report.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
	return nil
}
