package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/halcyonsec/triage-console/internal/api"
	"github.com/halcyonsec/triage-console/internal/store"
)

var (
	seedAlertCount int
	seedCaseCount  int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed sample alerts and cases into the database",
	Long: `Seed sample alerts, cases and tags into the local SQLite database.
This is useful for trying the console without a remote API: run seed,
then browse.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().IntVar(&seedAlertCount, "alerts", 60, "Number of sample alerts to create")
	seedCmd.Flags().IntVar(&seedCaseCount, "cases", 25, "Number of sample cases to create")
}

var seedSummaries = []string{
	"Multiple failed logins from external IP",
	"Outbound connection to known C2 domain",
	"Suspicious PowerShell execution on workstation",
	"Impossible travel detected for user account",
	"EDR quarantine of dropped binary",
	"Privilege escalation attempt on database host",
	"Anomalous volume of DNS queries",
	"Disabled account used for interactive logon",
}

var seedTags = []struct {
	name  string
	color string
}{
	{"phishing", "#e06c75"},
	{"malware", "#c678dd"},
	{"lateral-movement", "#61afef"},
	{"needs-review", "#e5c07b"},
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	config := GetConfig()

	logger := log.New(cmd.OutOrStdout(), "[seed] ", log.LstdFlags)
	logger.Println("Seeding sample data...")

	st, err := store.NewStore(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	tags := make([]api.Tag, 0, len(seedTags))
	for _, t := range seedTags {
		tag, err := st.EnsureTag(ctx, t.name, t.color)
		if err != nil {
			return fmt.Errorf("failed to create tag %q: %w", t.name, err)
		}
		tags = append(tags, tag)
	}

	now := time.Now()
	for i := 0; i < seedAlertCount; i++ {
		alert, err := st.CreateAlert(ctx, store.AlertInput{
			Summary:     fmt.Sprintf("%s (#%d)", seedSummaries[i%len(seedSummaries)], i+1),
			Description: fmt.Sprintf("Sample alert %d generated by the seed command.", i+1),
			Status:      api.Statuses[i%len(api.Statuses)],
			Priority:    api.Priorities[i%len(api.Priorities)],
			Severity:    api.Severities[i%len(api.Severities)],
			CreatedAt:   now.Add(-time.Duration(i) * 7 * time.Minute),
		})
		if err != nil {
			return fmt.Errorf("failed to create sample alert: %w", err)
		}
		// Tag roughly every other alert so tag filters have something to match.
		if i%2 == 0 {
			tag := tags[i%len(tags)]
			if err := st.TagAlert(ctx, alert.ID, tag.ID); err != nil {
				logger.Printf("Failed to tag alert %s: %v", alert.ShortID, err)
			}
		}
	}
	logger.Printf("Created %d alerts", seedAlertCount)

	for i := 0; i < seedCaseCount; i++ {
		kase, err := st.CreateCase(ctx, store.CaseInput{
			Title:       fmt.Sprintf("Investigation %d: %s", i+1, seedSummaries[i%len(seedSummaries)]),
			Description: fmt.Sprintf("Sample case %d generated by the seed command.", i+1),
			Status:      api.Statuses[i%len(api.Statuses)],
			Priority:    api.Priorities[(i+1)%len(api.Priorities)],
			Severity:    api.Severities[(i+2)%len(api.Severities)],
			CreatedAt:   now.Add(-time.Duration(i) * 19 * time.Minute),
		})
		if err != nil {
			return fmt.Errorf("failed to create sample case: %w", err)
		}
		if i%3 == 0 {
			tag := tags[i%len(tags)]
			if err := st.TagCase(ctx, kase.ID, tag.ID); err != nil {
				logger.Printf("Failed to tag case %s: %v", kase.ShortID, err)
			}
		}
	}
	logger.Printf("Created %d cases", seedCaseCount)

	logger.Println("Seeding completed")
	return nil
}
