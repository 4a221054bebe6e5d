package ui

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/halcyonsec/triage-console/internal/api"
	"github.com/halcyonsec/triage-console/internal/bus"
	"github.com/halcyonsec/triage-console/internal/pagination"
	"github.com/halcyonsec/triage-console/internal/store"
)

func newTestConsole(t *testing.T, seed int) (*Console, *store.Store) {
	t.Helper()

	st, err := store.NewStore(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < seed; i++ {
		_, err := st.CreateAlert(ctx, store.AlertInput{
			Summary:   "seeded alert",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Failed to seed alert: %v", err)
		}
	}

	logger := log.New(io.Discard, "", 0)
	console, err := NewConsole(ctx, StoreSource{Store: st}, bus.NewNullBus(logger), Options{
		PageSize: 10,
		Identity: "test",
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("Failed to create console: %v", err)
	}
	t.Cleanup(console.Stop)
	return console, st
}

func waitForAlerts(t *testing.T, c *Console, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := c.alerts.ctrl.Snapshot()
		if !snap.IsLoading && len(snap.Data) == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("alerts view never reached %d rows", want)
}

func TestNewConsole(t *testing.T) {
	c, _ := newTestConsole(t, 3)

	if len(c.views) != 2 {
		t.Fatalf("expected 2 tabs, got %d", len(c.views))
	}
	if c.active != 0 {
		t.Error("alerts tab should be active initially")
	}
	if c.views[0].Name() != "Alerts" || c.views[1].Name() != "Cases" {
		t.Errorf("unexpected tab names: %s, %s", c.views[0].Name(), c.views[1].Name())
	}
	if c.origin == "" {
		t.Error("console should have a bus origin id")
	}
}

func TestConsoleRendersSeededAlerts(t *testing.T) {
	c, _ := newTestConsole(t, 3)
	waitForAlerts(t, c, 3)

	c.redraw()
	// Header row plus one row per alert.
	if got := c.alerts.table.GetRowCount(); got != 4 {
		t.Errorf("expected 4 table rows, got %d", got)
	}

	id, label, ok := c.alerts.Selected()
	if !ok {
		t.Fatal("expected a selected row")
	}
	if id == "" || !strings.Contains(label, "seeded alert") {
		t.Errorf("unexpected selection: id=%q label=%q", id, label)
	}
}

func TestSwitchView(t *testing.T) {
	c, _ := newTestConsole(t, 1)

	c.switchView()
	if c.active != 1 {
		t.Errorf("expected cases tab active, got %d", c.active)
	}
	c.switchView()
	if c.active != 0 {
		t.Errorf("expected wrap back to alerts tab, got %d", c.active)
	}
}

func TestStatusLineShowsPageAndRange(t *testing.T) {
	c, _ := newTestConsole(t, 25)
	waitForAlerts(t, c, 10)

	line := c.alerts.StatusLine(c.theme)
	if !strings.Contains(line, "Page 1") {
		t.Errorf("status line missing page index: %q", line)
	}
	if !strings.Contains(line, "1-10 of ~25") {
		t.Errorf("status line missing item range: %q", line)
	}
}

func TestStatusLineShowsActiveFilters(t *testing.T) {
	c, _ := newTestConsole(t, 5)
	waitForAlerts(t, c, 5)

	c.alerts.CycleStatus()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !c.alerts.ctrl.Snapshot().IsLoading {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	line := c.alerts.StatusLine(c.theme)
	if !strings.Contains(line, "status="+api.StatusNew) {
		t.Errorf("status line should show the active filter: %q", line)
	}
}

func TestCycleValue(t *testing.T) {
	options := []string{"a", "b", "c"}

	if got := cycleValue("", options); got != "a" {
		t.Errorf("unset should cycle to first, got %q", got)
	}
	if got := cycleValue("a", options); got != "b" {
		t.Errorf("expected b, got %q", got)
	}
	if got := cycleValue("c", options); got != "" {
		t.Errorf("last should cycle back to unset, got %q", got)
	}
	if got := cycleValue("bogus", options); got != "" {
		t.Errorf("unknown value should reset to unset, got %q", got)
	}
}

func TestTagNames(t *testing.T) {
	if got := tagNames(nil); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
	tags := []api.Tag{{Name: "vip"}, {Name: "external"}}
	if got := tagNames(tags); got != "vip,external" {
		t.Errorf("unexpected tag list: %q", got)
	}
}

func TestUpdateStatusPersists(t *testing.T) {
	c, st := newTestConsole(t, 2)
	waitForAlerts(t, c, 2)
	c.redraw()

	ctx := context.Background()

	id, _, ok := c.alerts.Selected()
	if !ok {
		t.Fatal("expected a selected row")
	}
	c.updateStatus(id, true, api.StatusResolved)

	page, err := st.ListAlerts(ctx, pagination.PageRequest{
		Limit:   10,
		Filters: pagination.Filters{Status: api.StatusResolved},
	})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != id {
		t.Fatalf("expected alert %s to be resolved, got %d matches", id, len(page.Items))
	}

	kase, err := st.CreateCase(ctx, store.CaseInput{Title: "triage me"})
	if err != nil {
		t.Fatalf("CreateCase failed: %v", err)
	}
	c.updateStatus(kase.ID, false, api.StatusClosed)

	cases, err := st.ListCases(ctx, pagination.PageRequest{
		Limit:   10,
		Filters: pagination.Filters{Status: api.StatusClosed},
	})
	if err != nil {
		t.Fatalf("ListCases failed: %v", err)
	}
	if len(cases.Items) != 1 || cases.Items[0].ID != kase.ID {
		t.Fatalf("expected case %s to be closed, got %d matches", kase.ID, len(cases.Items))
	}
}

func TestResolveTagCreatesViaStore(t *testing.T) {
	c, st := newTestConsole(t, 1)

	tag, err := c.resolveTag("  Escalated ")
	if err != nil {
		t.Fatalf("resolveTag failed: %v", err)
	}
	if tag.Name != "escalated" {
		t.Errorf("expected normalized name, got %q", tag.Name)
	}

	tags, err := st.ListTags(context.Background())
	if err != nil {
		t.Fatalf("ListTags failed: %v", err)
	}
	if len(tags) != 1 {
		t.Errorf("expected tag to be created, got %d tags", len(tags))
	}
}
