package ui

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"github.com/rivo/tview"

	"github.com/halcyonsec/triage-console/internal/api"
	"github.com/halcyonsec/triage-console/internal/bus"
	"github.com/halcyonsec/triage-console/internal/pagination"
)

// Options configures the console.
type Options struct {
	// PageSize is the initial page size for both tabs.
	PageSize int

	// Identity prefixes controller cache keys, e.g. the workspace id. Keeps
	// cached pages from different backends apart.
	Identity string

	// Title is shown in the header, e.g. the workspace or database name.
	Title string

	Theme  string
	Logger *log.Logger
}

// Console is the terminal front-end: an alerts tab and a cases tab, each
// backed by its own pagination controller. All rendering happens on the tview
// event goroutine; controller callbacks queue redraws onto it.
type Console struct {
	app    *tview.Application
	source Source
	bus    bus.Bus
	logger *log.Logger

	alerts *listView[api.Alert]
	cases  *listView[api.Case]
	views  []view
	active int

	header    *tview.TextView
	content   *tview.Flex
	statusBar *tview.TextView
	searchBox *tview.InputField
	root      *tview.Flex
	searching bool

	theme     Theme
	themeName string

	title string

	// origin identifies this console on the change bus so it can skip its
	// own notifications.
	origin string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewConsole builds the console and kicks off the initial page fetches.
func NewConsole(ctx context.Context, source Source, b bus.Bus, opts Options) (*Console, error) {
	if source == nil {
		return nil, fmt.Errorf("ui: source is required")
	}
	if b == nil {
		b = bus.NewNullBus(opts.Logger)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[UI] ", log.LstdFlags)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = pagination.DefaultPageSize
	}
	if opts.Identity == "" {
		opts.Identity = "local"
	}
	if opts.Title == "" {
		opts.Title = opts.Identity
	}

	uiCtx, cancel := context.WithCancel(ctx)
	c := &Console{
		app:    tview.NewApplication(),
		source: source,
		bus:    b,
		logger: logger,
		title:  opts.Title,
		origin: "console-" + uuid.New().String()[:8],
		ctx:    uiCtx,
		cancel: cancel,
	}

	c.themeName = opts.Theme
	switch c.themeName {
	case "light":
		c.theme = themeLight()
	default:
		c.themeName = "dark"
		c.theme = themeDark()
	}

	onChange := func() {
		c.app.QueueUpdateDraw(c.redraw)
	}

	alertsCtrl, err := pagination.New(uiCtx, opts.Identity+"/alerts", pagination.QueryFunc[api.Alert](source.ListAlerts),
		pagination.WithPageSize[api.Alert](opts.PageSize),
		pagination.WithLogger[api.Alert](logger),
		pagination.WithOnChange[api.Alert](onChange))
	if err != nil {
		cancel()
		return nil, err
	}
	casesCtrl, err := pagination.New(uiCtx, opts.Identity+"/cases", pagination.QueryFunc[api.Case](source.ListCases),
		pagination.WithPageSize[api.Case](opts.PageSize),
		pagination.WithLogger[api.Case](logger),
		pagination.WithOnChange[api.Case](onChange))
	if err != nil {
		cancel()
		return nil, err
	}

	c.alerts = newListView("Alerts", alertsCtrl,
		[]string{"ID", "Summary", "Status", "Priority", "Severity", "Tags", "Created"},
		alertCells,
		func(a api.Alert) string { return a.ID },
		func(a api.Alert) string { return a.ShortID + " " + a.Summary })

	c.cases = newListView("Cases", casesCtrl,
		[]string{"ID", "Title", "Status", "Priority", "Severity", "Tags", "Created"},
		caseCells,
		func(cs api.Case) string { return cs.ID },
		func(cs api.Case) string { return cs.ShortID + " " + cs.Title })

	c.views = []view{c.alerts, c.cases}

	c.setupLayout()
	c.setupKeybindings()
	c.redraw()

	return c, nil
}

func alertCells(theme Theme, a api.Alert) []*tview.TableCell {
	return []*tview.TableCell{
		tview.NewTableCell(a.ShortID).SetTextColor(theme.TableRowMuted),
		tview.NewTableCell(a.Summary).SetTextColor(theme.TableRow).SetExpansion(1),
		tview.NewTableCell(a.Status).SetTextColor(theme.TableRow),
		tview.NewTableCell(a.Priority).SetTextColor(theme.TableRow),
		tview.NewTableCell(a.Severity).SetTextColor(theme.severityColor(a.Severity)),
		tview.NewTableCell(tagNames(a.Tags)).SetTextColor(theme.TableRowMuted),
		tview.NewTableCell(a.CreatedAt.Format("2006-01-02 15:04")).SetTextColor(theme.TableRowMuted),
	}
}

func caseCells(theme Theme, cs api.Case) []*tview.TableCell {
	return []*tview.TableCell{
		tview.NewTableCell(cs.ShortID).SetTextColor(theme.TableRowMuted),
		tview.NewTableCell(cs.Title).SetTextColor(theme.TableRow).SetExpansion(1),
		tview.NewTableCell(cs.Status).SetTextColor(theme.TableRow),
		tview.NewTableCell(cs.Priority).SetTextColor(theme.TableRow),
		tview.NewTableCell(cs.Severity).SetTextColor(theme.severityColor(cs.Severity)),
		tview.NewTableCell(tagNames(cs.Tags)).SetTextColor(theme.TableRowMuted),
		tview.NewTableCell(cs.CreatedAt.Format("2006-01-02 15:04")).SetTextColor(theme.TableRowMuted),
	}
}

func tagNames(tags []api.Tag) string {
	if len(tags) == 0 {
		return ""
	}
	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.Name
	}
	return strings.Join(names, ",")
}

func (c *Console) setupLayout() {
	c.header = tview.NewTextView()
	c.header.SetDynamicColors(true)
	c.header.SetTextAlign(tview.AlignLeft)
	c.header.SetBackgroundColor(c.theme.Surface)

	c.statusBar = tview.NewTextView()
	c.statusBar.SetDynamicColors(true)

	c.searchBox = tview.NewInputField()
	c.searchBox.SetLabel("/ ")
	c.searchBox.SetFieldBackgroundColor(c.theme.Surface)
	c.searchBox.SetDoneFunc(func(key tcell.Key) {
		term := c.searchBox.GetText()
		c.closeSearch()
		if key == tcell.KeyEnter {
			c.activeView().SetSearch(term)
		}
	})

	c.content = tview.NewFlex().SetDirection(tview.FlexRow)
	c.content.AddItem(c.activeView().Table(), 0, 1, true)

	c.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.header, 1, 0, false).
		AddItem(c.content, 0, 1, true).
		AddItem(c.statusBar, 1, 0, false)

	c.app.SetRoot(c.root, true)
	c.app.SetFocus(c.activeView().Table())
}

func (c *Console) setupKeybindings() {
	c.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// While the search box or a modal owns focus, keys go to it.
		if c.searching || c.app.GetFocus() != c.activeView().Table() {
			return event
		}

		switch event.Key() {
		case tcell.KeyTab:
			c.switchView()
			return nil
		}

		switch event.Rune() {
		case 'q':
			c.Stop()
			return nil
		case ']':
			c.activeView().Next()
			return nil
		case '[':
			c.activeView().Prev()
			return nil
		case 'g':
			c.activeView().First()
			return nil
		case 'r':
			c.activeView().Refresh()
			return nil
		case '/':
			c.openSearch()
			return nil
		case 's':
			c.activeView().CycleStatus()
			return nil
		case 'p':
			c.activeView().CyclePriority()
			return nil
		case 'v':
			c.activeView().CycleSeverity()
			return nil
		case 'c':
			c.activeView().ClearFilters()
			return nil
		case '+', '=':
			c.adjustPageSize(10)
			return nil
		case '-':
			c.adjustPageSize(-10)
			return nil
		case 'u':
			c.promptStatus()
			return nil
		case 'x':
			c.confirmDelete()
			return nil
		case 't':
			c.promptTag()
			return nil
		case 'T':
			c.cycleTheme()
			return nil
		case '?':
			c.showHelp()
			return nil
		}
		return event
	})
}

func (c *Console) activeView() view {
	return c.views[c.active]
}

func (c *Console) switchView() {
	c.active = (c.active + 1) % len(c.views)
	c.content.Clear()
	c.content.AddItem(c.activeView().Table(), 0, 1, true)
	c.app.SetFocus(c.activeView().Table())
	c.redraw()
}

// redraw repaints the active tab, header and status bar. Must run on the UI
// goroutine.
func (c *Console) redraw() {
	c.activeView().Redraw(c.theme)

	tabs := make([]string, len(c.views))
	for i, v := range c.views {
		if i == c.active {
			tabs[i] = fmt.Sprintf("[%s]%s[-]", c.theme.TagAccent, v.Name())
		} else {
			tabs[i] = fmt.Sprintf("[%s]%s[-]", c.theme.TagMuted, v.Name())
		}
	}
	c.header.SetText(fmt.Sprintf(" [%s]triage-console[-] %s | %s",
		c.theme.TagAccent, c.title, strings.Join(tabs, "  ")))

	hints := fmt.Sprintf("[%s]][-]:next [%s][[-]:prev [%s]g[-]:first [%s]/[-]:search [%s]s/p/v[-]:filter [%s]u[-]:status [%s]x[-]:delete [%s]t[-]:tag [%s]Tab[-]:switch [%s]q[-]:quit",
		c.theme.TagMuted, c.theme.TagMuted, c.theme.TagMuted, c.theme.TagMuted, c.theme.TagMuted,
		c.theme.TagMuted, c.theme.TagMuted, c.theme.TagMuted, c.theme.TagMuted, c.theme.TagMuted)
	c.statusBar.SetText(" " + c.activeView().StatusLine(c.theme) + "  " + hints)
}

func (c *Console) setStatus(format string, args ...interface{}) {
	c.statusBar.SetText(" " + fmt.Sprintf(format, args...))
}

func (c *Console) openSearch() {
	c.searching = true
	c.searchBox.SetText(c.activeView().SearchTerm())
	c.root.RemoveItem(c.statusBar)
	c.root.AddItem(c.searchBox, 1, 0, true)
	c.app.SetFocus(c.searchBox)
}

func (c *Console) closeSearch() {
	c.searching = false
	c.root.RemoveItem(c.searchBox)
	c.root.AddItem(c.statusBar, 1, 0, false)
	c.app.SetFocus(c.activeView().Table())
}

func (c *Console) adjustPageSize(delta int) {
	if err := c.activeView().AdjustPageSize(delta); err != nil {
		c.setStatus("[%s]page size: %v[-]", c.theme.TagError, err)
	}
}

func (c *Console) cycleTheme() {
	if c.themeName == "dark" {
		c.themeName = "light"
		c.theme = themeLight()
	} else {
		c.themeName = "dark"
		c.theme = themeDark()
	}
	c.redraw()
}

func (c *Console) confirmDelete() {
	id, label, ok := c.activeView().Selected()
	if !ok {
		return
	}
	isAlert := c.active == 0

	modal := tview.NewModal().
		SetText(fmt.Sprintf("Delete %s?", label)).
		AddButtons([]string{"Delete", "Cancel"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			c.app.SetRoot(c.root, true)
			c.app.SetFocus(c.activeView().Table())
			if buttonLabel != "Delete" {
				return
			}
			go c.deleteRecord(id, isAlert)
		})
	c.app.SetRoot(modal, true)
}

func (c *Console) deleteRecord(id string, isAlert bool) {
	var err error
	kind := bus.KindCase
	if isAlert {
		kind = bus.KindAlert
		err = c.source.DeleteAlert(c.ctx, id)
	} else {
		err = c.source.DeleteCase(c.ctx, id)
	}
	if err != nil {
		c.logger.Printf("delete %s failed: %v", id, err)
		c.app.QueueUpdateDraw(func() {
			c.setStatus("[%s]delete failed: %v[-]", c.theme.TagError, err)
		})
		return
	}

	_ = c.bus.PublishChange(c.ctx, bus.ChangeMessage{
		Kind:   kind,
		ID:     id,
		Action: bus.ActionDeleted,
		Origin: c.origin,
	})
	c.activeView().Refresh()
}

// promptStatus offers the selectable statuses for the highlighted record in
// a modal and applies the chosen one.
func (c *Console) promptStatus() {
	id, label, ok := c.activeView().Selected()
	if !ok {
		return
	}
	isAlert := c.active == 0

	buttons := append(append([]string(nil), api.Statuses...), "Cancel")
	modal := tview.NewModal().
		SetText(fmt.Sprintf("Set status for %s", label)).
		AddButtons(buttons).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			c.app.SetRoot(c.root, true)
			c.app.SetFocus(c.activeView().Table())
			if buttonLabel == "" || buttonLabel == "Cancel" {
				return
			}
			go c.updateStatus(id, isAlert, buttonLabel)
		})
	c.app.SetRoot(modal, true)
}

func (c *Console) updateStatus(id string, isAlert bool, status string) {
	var err error
	kind := bus.KindCase
	if isAlert {
		kind = bus.KindAlert
		err = c.source.UpdateAlert(c.ctx, id, api.AlertUpdate{Status: api.String(status)})
	} else {
		err = c.source.UpdateCase(c.ctx, id, api.CaseUpdate{Status: api.String(status)})
	}
	if err != nil {
		c.logger.Printf("update %s failed: %v", id, err)
		c.app.QueueUpdateDraw(func() {
			c.setStatus("[%s]update failed: %v[-]", c.theme.TagError, err)
		})
		return
	}

	_ = c.bus.PublishChange(c.ctx, bus.ChangeMessage{
		Kind:   kind,
		ID:     id,
		Action: bus.ActionUpdated,
		Origin: c.origin,
	})
	if isAlert {
		c.alerts.Refresh()
	} else {
		c.cases.Refresh()
	}
}

func (c *Console) promptTag() {
	if c.active != 0 {
		return
	}
	id, _, ok := c.alerts.Selected()
	if !ok {
		return
	}

	input := tview.NewInputField()
	input.SetLabel("tag: ")
	input.SetFieldBackgroundColor(c.theme.Surface)
	input.SetDoneFunc(func(key tcell.Key) {
		name := strings.TrimSpace(input.GetText())
		c.root.RemoveItem(input)
		c.root.AddItem(c.statusBar, 1, 0, false)
		c.searching = false
		c.app.SetFocus(c.activeView().Table())
		if key != tcell.KeyEnter || name == "" {
			return
		}
		go c.tagAlert(id, name)
	})

	c.searching = true
	c.root.RemoveItem(c.statusBar)
	c.root.AddItem(input, 1, 0, true)
	c.app.SetFocus(input)
}

func (c *Console) tagAlert(alertID, name string) {
	tag, err := c.resolveTag(name)
	if err == nil {
		err = c.source.AddAlertTag(c.ctx, alertID, tag.ID)
	}
	if err != nil {
		c.logger.Printf("tag %s failed: %v", alertID, err)
		c.app.QueueUpdateDraw(func() {
			c.setStatus("[%s]tag failed: %v[-]", c.theme.TagError, err)
		})
		return
	}

	_ = c.bus.PublishChange(c.ctx, bus.ChangeMessage{
		Kind:   bus.KindAlert,
		ID:     alertID,
		Action: bus.ActionTagged,
		Origin: c.origin,
	})
	c.alerts.Refresh()
}

// resolveTag finds a tag by name, creating it when the source supports that.
func (c *Console) resolveTag(name string) (api.Tag, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if creator, ok := c.source.(TagCreator); ok {
		return creator.EnsureTag(c.ctx, name, "")
	}

	tags, err := c.source.ListTags(c.ctx)
	if err != nil {
		return api.Tag{}, err
	}
	for _, tag := range tags {
		if strings.EqualFold(tag.Name, name) {
			return tag, nil
		}
	}
	return api.Tag{}, fmt.Errorf("no such tag %q", name)
}

func (c *Console) showHelp() {
	help := strings.Join([]string{
		"]  next page        [  previous page",
		"g  first page       r  refresh",
		"/  search           c  clear filters",
		"s  cycle status     p  cycle priority",
		"v  cycle severity   +/- page size",
		"u  set status       x  delete record",
		"t  tag alert",
		"Tab switch tab      T  toggle theme",
		"q  quit",
	}, "\n")

	modal := tview.NewModal().
		SetText(help).
		AddButtons([]string{"Close"}).
		SetDoneFunc(func(int, string) {
			c.app.SetRoot(c.root, true)
			c.app.SetFocus(c.activeView().Table())
		})
	c.app.SetRoot(modal, true)
}

// watchChanges subscribes to the change bus and refreshes the affected tab
// when another console mutates records.
func (c *Console) watchChanges() {
	handler := func(ctx context.Context, change bus.ChangeMessage) error {
		if change.Origin == c.origin {
			return nil
		}
		c.logger.Printf("change from %s: %s %s %s", change.Origin, change.Kind, change.ID, change.Action)
		switch change.Kind {
		case bus.KindAlert:
			c.alerts.Refresh()
		case bus.KindCase:
			c.cases.Refresh()
		}
		return nil
	}

	if err := c.bus.ReadChanges(c.ctx, "triage-console", c.origin, handler); err != nil && c.ctx.Err() == nil {
		c.logger.Printf("change stream stopped: %v", err)
	}
}

// Run starts the console and blocks until it exits.
func (c *Console) Run() error {
	c.logger.Println("Starting TUI application")

	go c.watchChanges()

	go func() {
		<-c.ctx.Done()
		c.app.Stop()
	}()

	err := c.app.Run()
	c.cancel()
	c.logger.Printf("app.Run() returned with error: %v", err)
	return err
}

// Stop shuts the console down.
func (c *Console) Stop() {
	c.cancel()
	c.app.Stop()
}
