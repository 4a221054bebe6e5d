package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/halcyonsec/triage-console/internal/api"
	"github.com/halcyonsec/triage-console/internal/store"
)

// Record is the wire form of one ingestable alert. Only Summary is required;
// the rest defaults the same way the store defaults them.
type Record struct {
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Severity    string   `json:"severity"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"created_at"`
}

// Parser validates raw JSON records and converts them to store inputs.
type Parser struct{}

// NewParser constructs a record parser.
func NewParser() *Parser {
	return &Parser{}
}

// severityAliases maps common feed spellings onto the canonical severity set.
var severityAliases = map[string]string{
	"info":          api.SeverityInformational,
	"informational": api.SeverityInformational,
	"low":           api.SeverityLow,
	"medium":        api.SeverityMedium,
	"moderate":      api.SeverityMedium,
	"high":          api.SeverityHigh,
	"critical":      api.SeverityCritical,
	"fatal":         api.SeverityFatal,
}

var priorityAliases = map[string]string{
	"low":      api.PriorityLow,
	"medium":   api.PriorityMedium,
	"normal":   api.PriorityMedium,
	"high":     api.PriorityHigh,
	"urgent":   api.PriorityCritical,
	"critical": api.PriorityCritical,
}

// ParseRecord decodes and validates one raw JSON record.
func (p *Parser) ParseRecord(raw []byte) (store.AlertInput, []string, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return store.AlertInput{}, nil, fmt.Errorf("decode record: %w", err)
	}

	rec.Summary = strings.TrimSpace(rec.Summary)
	if rec.Summary == "" {
		return store.AlertInput{}, nil, fmt.Errorf("record has no summary")
	}

	in := store.AlertInput{
		Summary:     rec.Summary,
		Description: rec.Description,
		Status:      strings.ToLower(strings.TrimSpace(rec.Status)),
		Priority:    normalize(rec.Priority, priorityAliases),
		Severity:    normalize(rec.Severity, severityAliases),
	}

	if rec.CreatedAt != "" {
		ts, err := time.Parse(time.RFC3339, rec.CreatedAt)
		if err != nil {
			return store.AlertInput{}, nil, fmt.Errorf("bad created_at %q: %w", rec.CreatedAt, err)
		}
		in.CreatedAt = ts
	}

	var tags []string
	for _, tag := range rec.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return in, tags, nil
}

func normalize(value string, aliases map[string]string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if canonical, ok := aliases[value]; ok {
		return canonical
	}
	// Unknown spellings fall through to the store defaults.
	return ""
}
