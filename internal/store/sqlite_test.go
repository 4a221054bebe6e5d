package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonsec/triage-console/internal/api"
	"github.com/halcyonsec/triage-console/internal/pagination"
)

func TestNewStore(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	// Verify tables were created
	var count int
	err = store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&count)
	require.NoError(t, err)
	assert.Greater(t, count, 0, "Expected tables to be created")
}

// seedAlerts creates n alerts with deterministic, strictly increasing
// timestamps so created_at DESC ordering is stable across runs.
func seedAlerts(t *testing.T, store *Store, n int) []api.Alert {
	t.Helper()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	alerts := make([]api.Alert, n)
	for i := 0; i < n; i++ {
		a, err := store.CreateAlert(ctx, AlertInput{
			Summary:   fmt.Sprintf("alert %d", i),
			Status:    api.StatusNew,
			Priority:  api.PriorityMedium,
			Severity:  api.SeverityLow,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		alerts[i] = a
	}
	return alerts
}

func TestCreateAlert(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	a, err := store.CreateAlert(ctx, AlertInput{Summary: "Suspicious login from new location"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "ALERT-0001", a.ShortID)
	assert.Equal(t, api.StatusNew, a.Status)
	assert.Equal(t, api.PriorityMedium, a.Priority)
	assert.Equal(t, api.SeverityLow, a.Severity)

	b, err := store.CreateAlert(ctx, AlertInput{Summary: "Second alert"})
	require.NoError(t, err)
	assert.Equal(t, "ALERT-0002", b.ShortID)

	_, err = store.CreateAlert(ctx, AlertInput{})
	assert.Error(t, err, "summary is required")
}

func TestListAlerts_CursorWalk(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	seeded := seedAlerts(t, store, 25)
	ctx := context.Background()

	// Page 1: newest 10 (alert 24 .. alert 15)
	page1, err := store.ListAlerts(ctx, pagination.PageRequest{
		Cursor: pagination.FirstPageCursor,
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, page1.Items, 10)
	assert.True(t, page1.HasMore)
	assert.False(t, page1.HasPrevious)
	assert.NotEmpty(t, page1.NextCursor)
	assert.Empty(t, page1.PrevCursor)
	assert.Equal(t, 25, page1.TotalEstimate)
	assert.Equal(t, "alert 24", page1.Items[0].Summary)
	assert.Equal(t, "alert 15", page1.Items[9].Summary)

	// Page 2
	page2, err := store.ListAlerts(ctx, pagination.PageRequest{
		Cursor: page1.NextCursor,
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, page2.Items, 10)
	assert.True(t, page2.HasMore)
	assert.True(t, page2.HasPrevious)
	assert.Equal(t, "alert 14", page2.Items[0].Summary)
	assert.Equal(t, "alert 5", page2.Items[9].Summary)

	// Page 3: final 5, no more
	page3, err := store.ListAlerts(ctx, pagination.PageRequest{
		Cursor: page2.NextCursor,
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, page3.Items, 5)
	assert.False(t, page3.HasMore)
	assert.True(t, page3.HasPrevious)
	assert.Empty(t, page3.NextCursor)
	assert.Equal(t, "alert 4", page3.Items[0].Summary)
	assert.Equal(t, "alert 0", page3.Items[4].Summary)

	// Walking the three pages covers every seeded alert exactly once.
	seen := map[string]bool{}
	for _, p := range []pagination.Page[api.Alert]{page1, page2, page3} {
		for _, item := range p.Items {
			assert.False(t, seen[item.ID], "alert %s appeared twice", item.ID)
			seen[item.ID] = true
		}
	}
	assert.Len(t, seen, len(seeded))
}

func TestListAlerts_ExactMultiple(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	seedAlerts(t, store, 20)
	ctx := context.Background()

	page1, err := store.ListAlerts(ctx, pagination.PageRequest{Limit: 10})
	require.NoError(t, err)
	assert.True(t, page1.HasMore, "look-ahead should report a second page")

	page2, err := store.ListAlerts(ctx, pagination.PageRequest{
		Cursor: page1.NextCursor,
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, page2.Items, 10)
	assert.False(t, page2.HasMore, "no phantom third page when total is an exact multiple")
	assert.Empty(t, page2.NextCursor)
}

func TestListAlerts_Filters(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	mk := func(i int, summary, status, priority, severity string) api.Alert {
		a, err := store.CreateAlert(ctx, AlertInput{
			Summary:   summary,
			Status:    status,
			Priority:  priority,
			Severity:  severity,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		return a
	}

	a1 := mk(0, "Brute force against vpn", api.StatusNew, api.PriorityHigh, api.SeverityHigh)
	mk(1, "Malware beacon detected", api.StatusInProgress, api.PriorityMedium, api.SeverityCritical)
	a3 := mk(2, "Phishing email reported", api.StatusNew, api.PriorityLow, api.SeverityLow)

	// Status filter
	page, err := store.ListAlerts(ctx, pagination.PageRequest{
		Limit:   10,
		Filters: pagination.Filters{Status: api.StatusNew},
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	// Search term matches summary, case handled by LIKE
	page, err = store.ListAlerts(ctx, pagination.PageRequest{
		Limit:   10,
		Filters: pagination.Filters{SearchTerm: "beacon"},
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Malware beacon detected", page.Items[0].Summary)

	// Combined status + priority
	page, err = store.ListAlerts(ctx, pagination.PageRequest{
		Limit:   10,
		Filters: pagination.Filters{Status: api.StatusNew, Priority: api.PriorityHigh},
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, a1.ID, page.Items[0].ID)

	// Total estimate stays unfiltered even when filters narrow the result
	assert.Equal(t, 3, page.TotalEstimate)

	// Tag filters use AND logic across multiple tags
	vip, err := store.EnsureTag(ctx, "vip", "#ff0000")
	require.NoError(t, err)
	ext, err := store.EnsureTag(ctx, "external", "")
	require.NoError(t, err)
	require.NoError(t, store.TagAlert(ctx, a1.ID, vip.ID))
	require.NoError(t, store.TagAlert(ctx, a1.ID, ext.ID))
	require.NoError(t, store.TagAlert(ctx, a3.ID, vip.ID))

	page, err = store.ListAlerts(ctx, pagination.PageRequest{
		Limit:   10,
		Filters: pagination.Filters{Tags: []string{"vip", "external"}},
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, a1.ID, page.Items[0].ID)
	assert.Len(t, page.Items[0].Tags, 2)
}

func TestListAlerts_SearchValidation(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	long := make([]byte, maxSearchTermLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = store.ListAlerts(ctx, pagination.PageRequest{
		Limit:   10,
		Filters: pagination.Filters{SearchTerm: string(long)},
	})
	var verr *pagination.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = store.ListAlerts(ctx, pagination.PageRequest{
		Limit:   10,
		Filters: pagination.Filters{SearchTerm: "bad\x00term"},
	})
	require.ErrorAs(t, err, &verr)
}

func TestListAlerts_MalformedCursor(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	seedAlerts(t, store, 3)
	ctx := context.Background()

	var verr *pagination.ValidationError

	_, err = store.ListAlerts(ctx, pagination.PageRequest{Cursor: "not base64!!", Limit: 10})
	require.ErrorAs(t, err, &verr)

	// Valid base64 carrying junk JSON is still rejected
	_, err = store.ListAlerts(ctx, pagination.PageRequest{Cursor: "aGVsbG8", Limit: 10})
	require.ErrorAs(t, err, &verr)
}

func TestUpdateAndDeleteAlerts(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	alerts := seedAlerts(t, store, 3)

	err = store.UpdateAlert(ctx, alerts[0].ID, api.AlertUpdate{
		Status:   api.String(api.StatusResolved),
		Priority: api.String(api.PriorityHigh),
	})
	require.NoError(t, err)

	var status, priority string
	err = store.db.QueryRow("SELECT status, priority FROM alerts WHERE id = ?", alerts[0].ID).Scan(&status, &priority)
	require.NoError(t, err)
	assert.Equal(t, api.StatusResolved, status)
	assert.Equal(t, api.PriorityHigh, priority)

	err = store.UpdateAlert(ctx, "missing-id", api.AlertUpdate{Status: api.String(api.StatusClosed)})
	assert.Error(t, err)

	// Delete removes the alert rows and their tag links
	tag, err := store.EnsureTag(ctx, "cleanup", "")
	require.NoError(t, err)
	require.NoError(t, store.TagAlert(ctx, alerts[1].ID, tag.ID))

	err = store.DeleteAlerts(ctx, []string{alerts[1].ID, alerts[2].ID})
	require.NoError(t, err)

	var count int
	err = store.db.QueryRow("SELECT COUNT(1) FROM alerts").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	err = store.db.QueryRow("SELECT COUNT(1) FROM alert_tags WHERE alert_id = ?", alerts[1].ID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestListCases_CursorWalk(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	base := time.Unix(1_700_100_000, 0)

	for i := 0; i < 7; i++ {
		_, err := store.CreateCase(ctx, CaseInput{
			Title:     fmt.Sprintf("case %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	page1, err := store.ListCases(ctx, pagination.PageRequest{Limit: 5})
	require.NoError(t, err)
	require.Len(t, page1.Items, 5)
	assert.True(t, page1.HasMore)
	assert.Equal(t, "case 6", page1.Items[0].Title)
	assert.Equal(t, "CASE-0007", page1.Items[0].ShortID)
	assert.Equal(t, 7, page1.TotalEstimate)

	page2, err := store.ListCases(ctx, pagination.PageRequest{Cursor: page1.NextCursor, Limit: 5})
	require.NoError(t, err)
	require.Len(t, page2.Items, 2)
	assert.False(t, page2.HasMore)
	assert.True(t, page2.HasPrevious)
	assert.Equal(t, "case 0", page2.Items[1].Title)
}

func TestEnsureTag(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	tag, err := store.EnsureTag(ctx, "  VIP  ", "#ff0000")
	require.NoError(t, err)
	assert.Equal(t, "vip", tag.Name, "names normalize to lowercase")

	again, err := store.EnsureTag(ctx, "vip", "#00ff00")
	require.NoError(t, err)
	assert.Equal(t, tag.ID, again.ID, "ensure is idempotent")

	tags, err := store.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
}

func TestTagAlertIdempotent(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	alerts := seedAlerts(t, store, 1)

	tag, err := store.EnsureTag(ctx, "repeat", "")
	require.NoError(t, err)

	require.NoError(t, store.TagAlert(ctx, alerts[0].ID, tag.ID))
	require.NoError(t, store.TagAlert(ctx, alerts[0].ID, tag.ID))

	var count int
	err = store.db.QueryRow("SELECT COUNT(1) FROM alert_tags WHERE alert_id = ?", alerts[0].ID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, store.UntagAlert(ctx, alerts[0].ID, tag.ID))
	err = store.db.QueryRow("SELECT COUNT(1) FROM alert_tags WHERE alert_id = ?", alerts[0].ID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestReset(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	seedAlerts(t, store, 3)
	_, err = store.CreateCase(ctx, CaseInput{Title: "c"})
	require.NoError(t, err)
	_, err = store.EnsureTag(ctx, "x", "")
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx))

	for _, table := range []string{"alerts", "cases", "tags"} {
		var count int
		err = store.db.QueryRow("SELECT COUNT(1) FROM " + table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 0, count, "table %s should be empty", table)
	}
}
