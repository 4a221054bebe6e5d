package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/halcyonsec/triage-console/internal/bus"
	"github.com/halcyonsec/triage-console/internal/ingest"
	"github.com/halcyonsec/triage-console/internal/store"
)

var (
	importDir      string
	importWatch    bool
	importPatterns string
	importTailEnd  bool
)

// importCmd reads alert records from files into the local database.
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import alerts from files in a directory (optionally watch for changes)",
	Long: `Import alert records from a directory into the local SQLite database.
Supports JSONL (line-delimited) and JSON files. Imported alerts are
announced on the change bus so running consoles refresh.

Examples:
  # One-shot: import existing files and exit
  triage-console import --dir ./incoming

  # Watch mode: tail JSONL appends and reprocess JSON changes
  triage-console import --dir ./incoming --watch

  # Custom file patterns
  triage-console import --dir ./incoming --pattern "*.jsonl,*.ndjson"`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importDir, "dir", "", "Directory to read files from (required)")
	importCmd.MarkFlagRequired("dir")

	importCmd.Flags().BoolVar(&importWatch, "watch", false, "Watch directory for changes and tail JSONL files")
	importCmd.Flags().StringVar(&importPatterns, "pattern", "*.jsonl,*.json", "Comma-separated glob patterns to match")
	importCmd.Flags().BoolVar(&importTailEnd, "tail-from-end", false, "In watch mode, skip existing JSONL lines and tail from EOF")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()

	logger := log.New(os.Stderr, "[import] ", log.LstdFlags)

	st, err := store.NewStore(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	eventBus := bus.NewBus(config.Redis.URL, logger)
	defer eventBus.Close()

	parser := ingest.NewParser()

	var patterns []string
	for _, p := range strings.Split(importPatterns, ",") {
		if s := strings.TrimSpace(p); s != "" {
			patterns = append(patterns, s)
		}
	}
	if len(patterns) == 0 {
		patterns = []string{"*.jsonl", "*.json"}
	}

	opts := ingest.FolderOptions{
		Dir:         importDir,
		Watch:       importWatch,
		Patterns:    patterns,
		Logger:      logger,
		TailFromEnd: importTailEnd,
	}

	logger.Printf("Starting import dir=%s watch=%v patterns=%v", opts.Dir, opts.Watch, opts.Patterns)

	ingestor := ingest.NewFolderIngestor(parser, st, eventBus, opts)

	if err := ingestor.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("import error: %w", err)
	}

	ingested, failed := ingestor.Counts()
	logger.Printf("Import completed: %d alerts ingested, %d records failed", ingested, failed)
	return nil
}
