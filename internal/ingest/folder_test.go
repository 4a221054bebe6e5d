package ingest

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonsec/triage-console/internal/api"
	"github.com/halcyonsec/triage-console/internal/bus"
	"github.com/halcyonsec/triage-console/internal/pagination"
	"github.com/halcyonsec/triage-console/internal/store"
)

func TestParseRecord(t *testing.T) {
	p := NewParser()

	in, tags, err := p.ParseRecord([]byte(`{
		"summary": "Impossible travel detected",
		"severity": "info",
		"priority": "urgent",
		"status": "NEW",
		"tags": ["VIP", " external ", ""],
		"created_at": "2024-01-15T10:30:00Z"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "Impossible travel detected", in.Summary)
	assert.Equal(t, api.SeverityInformational, in.Severity, "feed aliases normalize")
	assert.Equal(t, api.PriorityCritical, in.Priority)
	assert.Equal(t, "new", in.Status)
	assert.Equal(t, []string{"vip", "external"}, tags)
	assert.Equal(t, 2024, in.CreatedAt.Year())

	_, _, err = p.ParseRecord([]byte(`{"severity": "high"}`))
	assert.Error(t, err, "summary is required")

	_, _, err = p.ParseRecord([]byte(`not json`))
	assert.Error(t, err)

	_, _, err = p.ParseRecord([]byte(`{"summary": "x", "created_at": "yesterday"}`))
	assert.Error(t, err)
}

func TestFolderIngestOneShot(t *testing.T) {
	dir := t.TempDir()

	jsonl := "{\"summary\": \"alert one\", \"severity\": \"high\", \"tags\": [\"vip\"]}\n" +
		"not a record\n" +
		"{\"summary\": \"alert two\"}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feed.jsonl"), []byte(jsonl), 0644))

	batch := `[{"summary": "alert three"}, {"summary": "alert four", "priority": "high"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "batch.json"), []byte(batch), 0644))

	// Non-matching files are skipped.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0644))

	st, err := store.NewStore(":memory:")
	require.NoError(t, err)
	defer st.Close()

	logger := log.New(io.Discard, "", 0)
	fi := NewFolderIngestor(NewParser(), st, bus.NewNullBus(logger), FolderOptions{
		Dir:    dir,
		Logger: logger,
	})

	require.NoError(t, fi.Run(context.Background()))

	ingested, failed := fi.Counts()
	assert.Equal(t, 4, ingested)
	assert.Equal(t, 1, failed, "the bad jsonl line is counted, not fatal")

	page, err := st.ListAlerts(context.Background(), pagination.PageRequest{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Items, 4)

	// Tags from records are created and attached.
	page, err = st.ListAlerts(context.Background(), pagination.PageRequest{
		Limit:   10,
		Filters: pagination.Filters{Tags: []string{"vip"}},
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "alert one", page.Items[0].Summary)
}
