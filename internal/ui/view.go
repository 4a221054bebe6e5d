package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/halcyonsec/triage-console/internal/api"
	"github.com/halcyonsec/triage-console/internal/pagination"
)

// view is one switchable list tab. Both tabs are the same machinery over
// different record types, so the console only talks to this interface.
type view interface {
	Name() string
	Table() *tview.Table
	Redraw(theme Theme)
	StatusLine(theme Theme) string

	Next()
	Prev()
	First()
	Refresh()
	SetSearch(term string)
	SearchTerm() string
	CycleStatus()
	CyclePriority()
	CycleSeverity()
	ClearFilters()
	AdjustPageSize(delta int) error

	// Selected returns the id and a short label of the highlighted row.
	Selected() (id, label string, ok bool)
}

// rowCells renders one record into table cells, severity-colored by theme.
type rowCells[T any] func(theme Theme, item T) []*tview.TableCell

// listView binds a pagination controller to a tview table.
type listView[T any] struct {
	name    string
	table   *tview.Table
	ctrl    *pagination.Controller[T]
	headers []string
	cells   rowCells[T]
	id      func(T) string
	label   func(T) string
}

func newListView[T any](name string, ctrl *pagination.Controller[T], headers []string,
	cells rowCells[T], id, label func(T) string) *listView[T] {

	table := tview.NewTable()
	table.SetTitle(" " + name + " ")
	table.SetBorder(true)
	table.SetTitleAlign(tview.AlignLeft)
	table.SetSelectable(true, false)
	// Pin header row so it stays visible when selecting/scrolling.
	table.SetFixed(1, 0)

	return &listView[T]{
		name:    name,
		table:   table,
		ctrl:    ctrl,
		headers: headers,
		cells:   cells,
		id:      id,
		label:   label,
	}
}

func (v *listView[T]) Name() string        { return v.name }
func (v *listView[T]) Table() *tview.Table { return v.table }

func (v *listView[T]) Next()    { v.ctrl.GoToNextPage() }
func (v *listView[T]) Prev()    { v.ctrl.GoToPreviousPage() }
func (v *listView[T]) First()   { v.ctrl.GoToFirstPage() }
func (v *listView[T]) Refresh() { v.ctrl.Refresh() }

func (v *listView[T]) SetSearch(term string) {
	f := v.ctrl.Filters()
	f.SearchTerm = strings.TrimSpace(term)
	v.ctrl.SetFilters(f)
}

func (v *listView[T]) SearchTerm() string {
	return v.ctrl.Filters().SearchTerm
}

func (v *listView[T]) CycleStatus() {
	f := v.ctrl.Filters()
	f.Status = cycleValue(f.Status, api.Statuses)
	v.ctrl.SetFilters(f)
}

func (v *listView[T]) CyclePriority() {
	f := v.ctrl.Filters()
	f.Priority = cycleValue(f.Priority, api.Priorities)
	v.ctrl.SetFilters(f)
}

func (v *listView[T]) CycleSeverity() {
	f := v.ctrl.Filters()
	f.Severity = cycleValue(f.Severity, api.Severities)
	v.ctrl.SetFilters(f)
}

func (v *listView[T]) ClearFilters() {
	v.ctrl.SetFilters(pagination.Filters{})
}

func (v *listView[T]) AdjustPageSize(delta int) error {
	return v.ctrl.SetPageSize(v.ctrl.Snapshot().PageSize + delta)
}

func (v *listView[T]) Selected() (string, string, bool) {
	snap := v.ctrl.Snapshot()
	row, _ := v.table.GetSelection()
	idx := row - 1 // header row
	if idx < 0 || idx >= len(snap.Data) {
		return "", "", false
	}
	item := snap.Data[idx]
	return v.id(item), v.label(item), true
}

// Redraw repaints the table from the controller's current snapshot. Must run
// on the UI goroutine.
func (v *listView[T]) Redraw(theme Theme) {
	snap := v.ctrl.Snapshot()

	v.table.Clear()
	for col, header := range v.headers {
		v.table.SetCell(0, col, tview.NewTableCell(header).
			SetTextColor(theme.TableHeader).
			SetBackgroundColor(theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false))
	}

	if len(snap.Data) == 0 {
		placeholder := "No records"
		if snap.IsLoading {
			placeholder = "Loading..."
		}
		v.table.SetCell(1, 0, tview.NewTableCell(placeholder).
			SetTextColor(theme.TableRowMuted))
		return
	}

	for i, item := range snap.Data {
		for col, cell := range v.cells(theme, item) {
			v.table.SetCell(i+1, col, cell)
		}
	}

	// Keep the selection inside the new page.
	row, _ := v.table.GetSelection()
	if row < 1 || row > len(snap.Data) {
		v.table.Select(1, 0)
	}
}

// StatusLine formats the pagination summary for the status bar.
func (v *listView[T]) StatusLine(theme Theme) string {
	snap := v.ctrl.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "Page %d", snap.CurrentPage)
	if len(snap.Data) > 0 {
		fmt.Fprintf(&b, " · %d-%d", snap.StartItem, snap.EndItem)
		if snap.TotalEstimate >= 0 {
			fmt.Fprintf(&b, " of ~%d", snap.TotalEstimate)
		}
	}

	if f := v.ctrl.Filters(); !f.IsZero() {
		var parts []string
		if f.SearchTerm != "" {
			parts = append(parts, fmt.Sprintf("q=%q", f.SearchTerm))
		}
		if f.Status != "" {
			parts = append(parts, "status="+f.Status)
		}
		if f.Priority != "" {
			parts = append(parts, "priority="+f.Priority)
		}
		if f.Severity != "" {
			parts = append(parts, "severity="+f.Severity)
		}
		if len(f.Tags) > 0 {
			parts = append(parts, "tags="+strings.Join(f.Tags, ","))
		}
		fmt.Fprintf(&b, " [%s]| %s[-]", theme.TagAccent, strings.Join(parts, " "))
	}

	if snap.IsLoading {
		fmt.Fprintf(&b, " [%s]loading...[-]", theme.TagWarning)
	}
	if snap.Err != nil {
		fmt.Fprintf(&b, " [%s]stale: %v[-]", theme.TagError, snap.Err)
	}
	return b.String()
}

// cycleValue steps through options: unset -> first -> ... -> last -> unset.
func cycleValue(current string, options []string) string {
	if current == "" {
		return options[0]
	}
	for i, opt := range options {
		if opt == current {
			if i+1 < len(options) {
				return options[i+1]
			}
			return ""
		}
	}
	return ""
}
