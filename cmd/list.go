package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/halcyonsec/triage-console/internal/api"
	"github.com/halcyonsec/triage-console/internal/pagination"
	"github.com/halcyonsec/triage-console/internal/store"
	"github.com/halcyonsec/triage-console/internal/ui"
)

var (
	listLimit    int
	listCursor   string
	listPages    int
	listStatus   string
	listPriority string
	listSeverity string
	listSearch   string
	listTags     []string
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list [alerts|cases]",
	Short: "List alerts and cases as plain text",
	Long: `List alerts and cases in a simple text format. This command works in any
terminal environment and provides an alternative to the interactive
console when terminal capabilities are limited.

Output ends with the cursor of the next page, which can be passed back
via --cursor to continue where the previous invocation stopped.

Examples:
  # First page of alerts
  triage-console list alerts

  # Continue from a cursor printed by a previous run
  triage-console list alerts --cursor eyJ0Ijo...

  # Walk three pages of open critical cases
  triage-console list cases --status new --priority critical --pages 3

  # Search alerts
  triage-console list alerts --search "failed login" --limit 50`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Rows per page")
	listCmd.Flags().StringVar(&listCursor, "cursor", "", "Cursor to resume from (empty for the first page)")
	listCmd.Flags().IntVar(&listPages, "pages", 1, "Number of consecutive pages to print")
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status")
	listCmd.Flags().StringVar(&listPriority, "priority", "", "Filter by priority")
	listCmd.Flags().StringVar(&listSeverity, "severity", "", "Filter by severity")
	listCmd.Flags().StringVar(&listSearch, "search", "", "Free-text search")
	listCmd.Flags().StringSliceVar(&listTags, "tag", nil, "Filter by tag (repeatable, all must match)")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()

	target := "alerts"
	if len(args) > 0 {
		target = strings.ToLower(args[0])
	}

	source, closeSource, err := openSource(config)
	if err != nil {
		return err
	}
	defer closeSource()

	req := pagination.PageRequest{
		Cursor: listCursor,
		Limit:  listLimit,
		Filters: pagination.Filters{
			SearchTerm: listSearch,
			Status:     listStatus,
			Priority:   listPriority,
			Severity:   listSeverity,
			Tags:       listTags,
		},
	}

	switch target {
	case "alerts":
		return walkPages(ctx, req, source.ListAlerts, printAlert)
	case "cases":
		return walkPages(ctx, req, source.ListCases, printCase)
	default:
		return fmt.Errorf("unknown list target: %s (use 'alerts' or 'cases')", target)
	}
}

// openSource picks the API client when one is configured and the local
// database otherwise, mirroring the browse command.
func openSource(config Config) (ui.Source, func(), error) {
	if config.API.URL != "" {
		logger := log.New(os.Stderr, "[list] ", log.LstdFlags)
		client, err := api.NewClient(api.Config{
			BaseURL:   config.API.URL,
			Token:     config.API.Token,
			Workspace: config.API.Workspace,
			Timeout:   config.API.Timeout,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize API client: %w", err)
		}
		return client, func() {}, nil
	}

	st, err := store.NewStore(config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return ui.StoreSource{Store: st}, func() { st.Close() }, nil
}

func walkPages[T any](ctx context.Context, req pagination.PageRequest, query pagination.QueryFunc[T], print func(int, T)) error {
	shown := 0
	for pageNum := 1; pageNum <= listPages; pageNum++ {
		page, err := query(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to fetch page %d: %w", pageNum, err)
		}

		if len(page.Items) == 0 {
			if shown == 0 {
				fmt.Println("No records found.")
			}
			return nil
		}

		for _, item := range page.Items {
			shown++
			print(shown, item)
		}

		if !page.HasMore {
			fmt.Printf("\n%d records, no more pages.\n", shown)
			return nil
		}
		req.Cursor = page.NextCursor
	}

	fmt.Printf("\n%d records shown. Continue with:\n  --cursor %s\n", shown, req.Cursor)
	return nil
}

func printAlert(i int, a api.Alert) {
	fmt.Printf("%d. [%s/%s] %s %s\n", i, strings.ToUpper(a.Priority), a.Severity, a.ShortID, a.Summary)
	fmt.Printf("   Status: %s\n", a.Status)
	fmt.Printf("   Created: %s\n", a.CreatedAt.Format("2006-01-02 15:04:05"))
	if names := tagLine(a.Tags); names != "" {
		fmt.Printf("   Tags: %s\n", names)
	}
	fmt.Println()
}

func printCase(i int, c api.Case) {
	fmt.Printf("%d. [%s/%s] %s %s\n", i, strings.ToUpper(c.Priority), c.Severity, c.ShortID, c.Title)
	fmt.Printf("   Status: %s\n", c.Status)
	fmt.Printf("   Created: %s\n", c.CreatedAt.Format("2006-01-02 15:04:05"))
	if names := tagLine(c.Tags); names != "" {
		fmt.Printf("   Tags: %s\n", names)
	}
	fmt.Println()
}

func tagLine(tags []api.Tag) string {
	if len(tags) == 0 {
		return ""
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return strings.Join(names, ", ")
}
