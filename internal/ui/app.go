package ui

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/calref/curator/internal/labelbase"
	"github.com/calref/curator/internal/nav"
	"github.com/calref/curator/internal/prefs"
	"github.com/calref/curator/internal/store"
	"github.com/calref/curator/internal/views"
)

// Options configure the UI.
type Options struct {
	Context context.Context
	App     *store.AppStore
	Views   *views.Store
	Prefs   *prefs.Store
	Nav     *nav.History
	Host    *Host
}

// refreshMsg asks the model to rebuild its derived state from the stores.
type refreshMsg struct{}

// errMsg carries a background failure into the status bar.
type errMsg struct{ err error }

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx     context.Context
	app     *store.AppStore
	views   *views.Store
	prefs   *prefs.Store
	history *nav.History
	host    *Host

	keys   keyMap
	theme  Theme
	styles Styles

	table table.Model
	spin  spinner.Model

	width  int
	height int
	ready  bool

	mode        store.Mode
	status      string
	showHelp    bool
	showActions bool
	actionIdx   int

	labelItem       *store.Item
	labelAnnotation int64
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	themeName := "Dracula"
	if opts.Prefs != nil {
		themeName = opts.Prefs.Theme()
	}
	theme := GetTheme(themeName)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	tbl := table.New(table.WithFocused(true))

	return Model{
		ctx:     ctx,
		app:     opts.App,
		views:   opts.Views,
		prefs:   opts.Prefs,
		history: opts.Nav,
		host:    opts.Host,
		keys:    DefaultKeyMap(),
		theme:   theme,
		styles:  theme.Styles(),
		table:   tbl,
		spin:    sp,
		mode:    store.ModeExplorer,
	}
}

// Run starts the UI and blocks until exit.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	if opts.Host != nil {
		opts.Host.Attach(p.Send)
	}
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.bootCmd())
}

func (m Model) bootCmd() tea.Cmd {
	app, ctx := m.app, m.ctx
	return func() tea.Msg {
		if err := app.FetchInitial(ctx); err != nil {
			return errMsg{err}
		}
		if ds := app.DataStore(); ds != nil {
			if err := ds.Fetch(ctx, store.FetchOptions{Reload: true}); err != nil {
				return errMsg{err}
			}
		}
		app.StartPolling(ctx)
		return refreshMsg{}
	}
}

func (m Model) fetchCmd(opts store.FetchOptions) tea.Cmd {
	app, ctx := m.app, m.ctx
	return func() tea.Msg {
		ds := app.DataStore()
		if ds == nil {
			return refreshMsg{}
		}
		if err := ds.Fetch(ctx, opts); err != nil {
			return errMsg{err}
		}
		return refreshMsg{}
	}
}

func (m Model) invokeCmd(actionID string) tea.Cmd {
	app, ctx := m.app, m.ctx
	return func() tea.Msg {
		if err := app.InvokeAction(ctx, actionID, store.InvokeOptions{}); err != nil {
			return errMsg{err}
		}
		return refreshMsg{}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layoutTable()
		m.rebuildRows()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case refreshMsg:
		m.rebuildRows()
		return m, nil

	case errMsg:
		m.status = msg.err.Error()
		m.rebuildRows()
		return m, nil

	case HostEventMsg:
		return m.handleHostEvent(msg)

	case ModeChangedMsg:
		m.mode = msg.Mode
		return m, nil

	case EditorClosedMsg:
		m.labelItem = nil
		m.labelAnnotation = 0
		return m, nil

	case ReloadRequestedMsg:
		return m, m.bootCmd()
	}

	return m, nil
}

func (m Model) handleHostEvent(msg HostEventMsg) (tea.Model, tea.Cmd) {
	switch msg.Event {
	case store.EventTaskSelected:
		if sel, ok := msg.Payload.(store.TaskSelection); ok {
			m.labelItem = sel.Item
			m.labelAnnotation = sel.AnnotationID
		}
		m.rebuildRows()
	case store.EventDataFetched:
		m.rebuildRows()
	case store.EventError:
		if res, ok := msg.Payload.(labelbase.Result); ok && res.Err != nil {
			m.status = res.Err.Error()
		}
	case store.EventSettingsClicked:
		m.status = "project is not configured for labeling; set up a label config first"
	case store.EventCrash:
		m.status = "fatal: application crashed; restart curator"
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.app.Destroy()
		return m, tea.Quit
	}

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if key.Matches(msg, m.keys.Help) {
		m.showHelp = true
		return m, nil
	}

	if m.showActions {
		return m.handleActionsKey(msg)
	}

	if m.mode != store.ModeExplorer {
		return m.handleLabelingKey(msg)
	}

	ds := m.app.DataStore()

	switch {
	case key.Matches(msg, m.keys.Down):
		if ds != nil {
			ds.FocusNext()
		}
		m.rebuildRows()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if ds != nil {
			ds.FocusPrev()
		}
		m.rebuildRows()
		return m, nil

	case key.Matches(msg, m.keys.NextPage):
		if ds != nil && ds.HasNextPage() {
			return m, m.fetchCmd(store.FetchOptions{})
		}
		return m, nil

	case key.Matches(msg, m.keys.Reload):
		return m, m.fetchCmd(store.FetchOptions{Reload: true})

	case key.Matches(msg, m.keys.NextTab):
		m.cycleTab(1)
		return m, m.fetchCmd(store.FetchOptions{Reload: true})

	case key.Matches(msg, m.keys.PrevTab):
		m.cycleTab(-1)
		return m, m.fetchCmd(store.FetchOptions{Reload: true})

	case key.Matches(msg, m.keys.Back):
		if m.history != nil && m.history.Depth() > 1 {
			m.history.Back()
			return m, m.fetchCmd(store.FetchOptions{Reload: true})
		}
		return m, nil

	case key.Matches(msg, m.keys.ToggleSelect):
		if view, ok := m.views.Selected(); ok && ds != nil {
			if item := ds.Highlighted(); item != nil {
				m.views.ToggleSelected(view.ID, item.ID)
			}
		}
		m.rebuildRows()
		return m, nil

	case key.Matches(msg, m.keys.SelectAll):
		if view, ok := m.views.Selected(); ok {
			m.views.SelectAll(view.ID)
		}
		m.rebuildRows()
		return m, nil

	case key.Matches(msg, m.keys.Label):
		if ds != nil {
			if item := ds.Highlighted(); item != nil {
				app, ctx := m.app, m.ctx
				return m, func() tea.Msg {
					app.StartLabeling(ctx, item)
					return refreshMsg{}
				}
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.LabelStream):
		app, ctx := m.app, m.ctx
		return m, func() tea.Msg {
			app.StartLabelStream(ctx)
			return refreshMsg{}
		}

	case key.Matches(msg, m.keys.Actions):
		m.showActions = true
		m.actionIdx = 0
		return m, nil
	}

	return m, nil
}

func (m Model) handleLabelingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		app, ctx := m.app, m.ctx
		return m, func() tea.Msg {
			app.CloseLabeling(ctx)
			return refreshMsg{}
		}

	case key.Matches(msg, m.keys.NextRecord):
		if m.mode == store.ModeLabelStream {
			return m, m.invokeCmd(store.ActionNextTask)
		}
	}
	return m, nil
}

func (m Model) handleActionsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	actions := m.app.AvailableActions()
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.showActions = false
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.actionIdx < len(actions)-1 {
			m.actionIdx++
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.actionIdx > 0 {
			m.actionIdx--
		}
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		m.showActions = false
		if m.actionIdx < len(actions) {
			return m, m.invokeCmd(actions[m.actionIdx].ID)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) cycleTab(delta int) {
	tabs := m.views.Tabs()
	if len(tabs) == 0 {
		return
	}
	current, _ := m.views.Selected()
	idx := 0
	for i, tab := range tabs {
		if tab.ID == current.ID {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(tabs)) % len(tabs)
	m.views.Select(tabs[idx].ID)
	if m.history != nil {
		m.history.Navigate(nav.State{TabID: tabs[idx].ID})
	}
}

// layoutTable sizes the table and its columns to the window.
func (m *Model) layoutTable() {
	height := m.height - 5
	if height < 3 {
		height = 3
	}
	m.table.SetHeight(height)
	m.table.SetWidth(m.width)

	idWidth := 8
	rest := m.width - idWidth - 4
	if rest < 20 {
		rest = 20
	}
	m.table.SetColumns([]table.Column{
		{Title: "ID", Width: idWidth},
		{Title: "Record", Width: rest * 2 / 3},
		{Title: "Sel", Width: rest / 3},
	})
}

// rebuildRows projects the active list store into table rows and moves the
// cursor to the highlighted record.
func (m *Model) rebuildRows() {
	ds := m.app.DataStore()
	if ds == nil {
		m.table.SetRows(nil)
		return
	}

	var selection labelbase.Selection
	if view, ok := m.views.Selected(); ok {
		selection = m.views.Selection(view.ID)
	}
	selected := make(map[int64]bool, len(selection.Included))
	for _, id := range selection.Included {
		selected[id] = true
	}

	items := ds.List()
	rows := make([]table.Row, 0, len(items))
	cursor := 0
	highlighted := ds.HighlightedID()
	for i, item := range items {
		if item.ID == highlighted {
			cursor = i
		}
		mark := ""
		if selection.All || selected[item.ID] {
			mark = "✓"
		}
		rows = append(rows, table.Row{
			strconv.FormatInt(item.ID, 10),
			summarize(item),
			mark,
		})
	}
	m.table.SetRows(rows)
	if len(rows) > 0 {
		m.table.SetCursor(cursor)
	}
}

// summarize picks a short display string for a record.
func summarize(item *store.Item) string {
	for _, field := range []string{"title", "text", "data"} {
		if s := item.StringField(field); s != "" {
			return truncate(s, 80)
		}
	}
	keys := make([]string, 0, len(item.Fields))
	for k := range item.Fields {
		if k == "id" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, item.Fields[k]))
	}
	return truncate(strings.Join(parts, " "), 80)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	if m.mode != store.ModeExplorer {
		b.WriteString(m.renderLabeling())
	} else if m.showActions {
		b.WriteString(m.renderActions())
	} else {
		b.WriteString(m.table.View())
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	return b.String()
}

func (m Model) renderHeader() string {
	title := "curator"
	if project, ok := m.app.Project(); ok && project.Title != "" {
		title = project.Title
	}
	ds := m.app.DataStore()
	pageInfo := ""
	if ds != nil {
		pageInfo = fmt.Sprintf("%d records · page %d/%d", ds.Total(), ds.Page(), ds.TotalPages())
		if ds.Loading() {
			pageInfo += " " + m.spin.View()
		}
	}
	left := m.styles.Header.Render(title)
	mode := m.styles.Accent.Render(m.mode.String())
	return left + "  " + mode + "  " + m.styles.Muted.Render(pageInfo)
}

func (m Model) renderTabs() string {
	tabs := m.views.Tabs()
	if len(tabs) == 0 {
		return m.styles.Muted.Render("(no views)")
	}
	current, _ := m.views.Selected()
	parts := make([]string, 0, len(tabs))
	for _, tab := range tabs {
		label := tab.Title
		if label == "" {
			label = fmt.Sprintf("view %d", tab.ID)
		}
		if m.views.Locked(tab.ID) {
			label += " ⏳"
		}
		if tab.ID == current.ID {
			parts = append(parts, m.styles.TabActive.Render(label))
		} else {
			parts = append(parts, m.styles.TabIdle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderLabeling() string {
	var b strings.Builder
	if m.labelItem == nil {
		b.WriteString(m.styles.Muted.Render("waiting for record..."))
	} else {
		b.WriteString(m.styles.Header.Render(fmt.Sprintf("Record #%d", m.labelItem.ID)))
		if m.labelAnnotation != 0 {
			b.WriteString(m.styles.Muted.Render(fmt.Sprintf("  annotation #%d", m.labelAnnotation)))
		}
		b.WriteString("\n\n")
		keys := make([]string, 0, len(m.labelItem.Fields))
		for k := range m.labelItem.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf("%s: %v\n", m.styles.Accent.Render(k), m.labelItem.Fields[k]))
		}
	}
	hint := "esc close"
	if m.mode == store.ModeLabelStream {
		hint = "l next record · esc close"
	}
	b.WriteString("\n" + m.styles.Muted.Render(hint))
	return m.styles.Pane.Width(m.width - 2).Render(b.String())
}

func (m Model) renderActions() string {
	actions := m.app.AvailableActions()
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("Actions") + "\n\n")
	if len(actions) == 0 {
		b.WriteString(m.styles.Muted.Render("(none available)"))
	}
	for i, action := range actions {
		line := action.Title
		if line == "" {
			line = action.ID
		}
		if i == m.actionIdx {
			b.WriteString(m.styles.Selected.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n" + m.styles.Muted.Render("enter run · esc close"))
	return m.styles.Pane.Width(m.width - 2).Render(b.String())
}

func (m Model) renderStatus() string {
	if m.app.Crashed() {
		return m.styles.Danger.Render("crashed — restart curator")
	}
	if m.status != "" {
		return m.styles.Warning.Render(truncate(m.status, m.width))
	}
	if errs := m.app.ServerErrors(); len(errs) > 0 {
		methods := make([]string, 0, len(errs))
		for method := range errs {
			methods = append(methods, method)
		}
		sort.Strings(methods)
		return m.styles.Warning.Render("server errors: " + strings.Join(methods, ", "))
	}
	return m.styles.Muted.Render("? help · q quit")
}

func (m Model) renderHelp() string {
	lines := []string{
		m.styles.Header.Render("Curator — keys"),
		"",
		"j/k       highlight next/previous record",
		"enter     open highlighted record for labeling",
		"s         start label stream",
		"l         next record (while streaming)",
		"esc       close labeling / overlay",
		"space     toggle row selection",
		"A         select all rows in view",
		"a         actions",
		"n         fetch next page",
		"r         reload view",
		"tab       switch view",
		"backspace back to previous view",
		"q         quit",
		"",
		m.styles.Muted.Render("press any key to close"),
	}
	return strings.Join(lines, "\n")
}
