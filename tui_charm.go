package main

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

type activitiesPageMsg struct {
	page    int
	perPage int
	records []Activity
	err     error
}

type activityDetailMsg struct {
	id     int64
	detail DetailedActivity
	err    error
}

// retryPageMsg re-evaluates the prefetch some time after a failed page.
type retryPageMsg struct{}

var pageRetryDelay = 5 * time.Second

type keyMap struct {
	Quit       key.Binding
	Dashboard  key.Binding
	Activities key.Binding
	Up         key.Binding
	Down       key.Binding
	First      key.Binding
	Last       key.Binding
	Left       key.Binding
	Right      key.Binding
	Enter      key.Binding
	Back       key.Binding
	Open       key.Binding
	Copy       key.Binding
	Retry      key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	Help       key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Dashboard, k.Activities, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.First, k.Last, k.Left, k.Right},
		{k.Enter, k.Back, k.PageUp, k.PageDown},
		{k.Dashboard, k.Activities, k.Open, k.Copy, k.Retry},
		{k.Help, k.Quit},
	}
}

var keys = keyMap{
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Dashboard:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "dashboard")),
	Activities: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "activities")),
	Up:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
	Down:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
	First:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "first")),
	Last:       key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "last")),
	Left:       key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "scroll left")),
	Right:      key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "scroll right")),
	Enter:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
	Back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Open:       key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open in browser")),
	Copy:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy url")),
	Retry:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
	PageUp:     key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "scroll details up")),
	PageDown:   key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "scroll details down")),
	Help:       key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "help")),
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("240"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	upStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	downStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type tuiModel struct {
	ctx          context.Context
	app          *App
	width        int
	height       int
	keys         keyMap
	help         help.Model
	spinner      spinner.Model
	showHelp     bool
	detailScroll int
}

var (
	teaNewProgram  = tea.NewProgram
	runTeaProgram  = defaultRunTeaProgram
	programExecute = func(program *tea.Program) (tea.Model, error) { return program.Run() }
)

func defaultRunTeaProgram(program *tea.Program) (tea.Model, error) {
	return programExecute(program)
}

func RunTUI(ctx context.Context, app *App) error {
	model := newTUIModel(ctx, app)
	program := teaNewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := runTeaProgram(program)
	return err
}

func newTUIModel(ctx context.Context, app *App) tuiModel {
	s := spinner.New()
	s.Spinner = spinner.Line
	return tuiModel{
		ctx:     ctx,
		app:     app,
		keys:    keys,
		help:    help.New(),
		spinner: s,
	}
}

func (m tuiModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.app.EnsurePageSize(msg.Height)
		if m.app.lastErr != nil {
			return m, nil
		}
		return m, m.maybePrefetch()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case activitiesPageMsg:
		m.app.ApplyPage(msg.page, msg.perPage, msg.records, msg.err)
		if msg.err != nil {
			if IsAuthError(msg.err) {
				return m, nil
			}
			return m, tea.Tick(pageRetryDelay, func(time.Time) tea.Msg { return retryPageMsg{} })
		}
		return m, m.maybePrefetch()
	case retryPageMsg:
		if m.app.lastErr == nil {
			return m, nil
		}
		return m, m.maybePrefetch()
	case activityDetailMsg:
		m.app.ApplyDetail(msg.id, msg.detail, msg.err)
		return m, nil
	case tea.KeyMsg:
		if m.showHelp {
			if key.Matches(msg, m.keys.Help, m.keys.Back, m.keys.Quit) {
				m.showHelp = false
			}
			return m, nil
		}
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		cmd := m.handleKey(msg)
		return m, tea.Batch(cmd, m.maybePrefetch())
	}
	return m, nil
}

func (m *tuiModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	feed := m.app.Feed()
	view := m.app.CurrentView()
	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.Dashboard):
		m.app.SetView(ViewDashboard)
	case key.Matches(msg, m.keys.Activities):
		m.app.SetView(ViewActivities)
	case key.Matches(msg, m.keys.Down):
		if view == ViewActivities {
			feed.SelectNext()
		} else if view == ViewActivityDetail {
			m.detailScroll++
		}
	case key.Matches(msg, m.keys.Up):
		if view == ViewActivities {
			feed.SelectPrevious()
		} else if view == ViewActivityDetail {
			m.adjustDetailScroll(-1)
		}
	case key.Matches(msg, m.keys.First):
		if view == ViewActivities {
			feed.SelectFirst()
		}
	case key.Matches(msg, m.keys.Last):
		if view == ViewActivities {
			feed.SelectLast()
		}
	case key.Matches(msg, m.keys.Left):
		if view == ViewActivities {
			feed.ScrollLeft()
		}
	case key.Matches(msg, m.keys.Right):
		if view == ViewActivities {
			feed.ScrollRight()
		}
	case key.Matches(msg, m.keys.Enter):
		if view == ViewActivities {
			m.detailScroll = 0
		}
		if m.app.OpenDetail() {
			return m.fetchDetail()
		}
	case key.Matches(msg, m.keys.Back):
		m.app.CloseDetail()
	case key.Matches(msg, m.keys.PageUp):
		m.adjustDetailScroll(-5)
	case key.Matches(msg, m.keys.PageDown):
		m.adjustDetailScroll(5)
	case key.Matches(msg, m.keys.Open):
		if err := m.app.OpenSelected(); err != nil {
			m.app.status = "Open failed: " + err.Error()
		}
	case key.Matches(msg, m.keys.Copy):
		if err := m.app.CopySelectedURL(); err != nil {
			m.app.status = "Copy failed: " + err.Error()
		}
	case key.Matches(msg, m.keys.Retry):
		if m.app.lastErr == nil {
			m.app.status = "Nothing to retry"
		}
	}
	return nil
}

// maybePrefetch starts the next page request when the controller says one is
// due. The request runs off the update loop; its result comes back as an
// activitiesPageMsg.
func (m tuiModel) maybePrefetch() tea.Cmd {
	page, perPage, ok := m.app.StartPrefetch()
	if !ok {
		return nil
	}
	return fetchPageCmd(m.ctx, m.app.client, page, perPage)
}

func fetchPageCmd(ctx context.Context, client ActivityClient, page, perPage int) tea.Cmd {
	return func() tea.Msg {
		records, err := client.Activities(ctx, page, perPage)
		return activitiesPageMsg{page: page, perPage: perPage, records: records, err: err}
	}
}

func (m tuiModel) fetchDetail() tea.Cmd {
	id := m.app.detailFor
	client := m.app.client
	ctx := m.ctx
	logger.Debug("requesting activity detail", "id", id)
	return func() tea.Msg {
		detail, err := client.Activity(ctx, id)
		return activityDetailMsg{id: id, detail: detail, err: err}
	}
}

func (m *tuiModel) adjustDetailScroll(delta int) {
	m.detailScroll += delta
	if m.detailScroll < 0 {
		m.detailScroll = 0
	}
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	header := titleStyle.Render("SportFrei - " + m.app.CurrentView().Title())
	bodyHeight := max(m.height-2, 1)
	var body string
	switch m.app.CurrentView() {
	case ViewActivities:
		body = m.renderActivities(bodyHeight)
	case ViewActivityDetail:
		body = m.renderDetail(bodyHeight)
	default:
		body = m.renderDashboard()
	}
	body = lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderStatusBar(m.width))
}

func (m tuiModel) renderDashboard() string {
	feed := m.app.Feed()
	summary := feed.DashboardSummary(m.app.now())
	cardWidth := max((m.width-6)/3, 20)
	borders := []string{"51", "42", "226"}
	cards := []string{}
	for i, card := range dashboardCards(summary) {
		trendStyle := downStyle
		if card.trend == TrendUp {
			trendStyle = upStyle
		}
		content := strings.Join([]string{
			lipgloss.NewStyle().Bold(true).Render(card.title),
			"",
			trendStyle.Render(card.value + " " + card.trend.Arrow()),
			mutedStyle.Render("(" + card.note + ")"),
		}, "\n")
		box := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(borders[i%len(borders)])).
			Padding(0, 1).
			Width(cardWidth)
		cards = append(cards, box.Render(content))
	}
	stats := lipgloss.NewStyle().Padding(1, 1, 0, 1).Render(strings.Join(statsLines(feed.Stats()), "\n"))
	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Padding(1, 1, 0, 1).Bold(true).Render(greeting(feed.Athlete())),
		lipgloss.JoinHorizontal(lipgloss.Top, cards...),
		stats,
	)
}

func (m tuiModel) renderActivities(height int) string {
	feed := m.app.Feed()
	lines := []string{titleStyle.Render(activitiesTitle(feed))}
	if feed.Len() == 0 {
		if feed.IsLoading() {
			lines = append(lines, m.spinner.View()+" Loading activities...")
		} else {
			lines = append(lines, "No activities found")
		}
		return strings.Join(lines, "\n")
	}
	offset := feed.ScrollOffset() * hScrollStep
	lines = append(lines, headerStyle.Render(padRight(shiftLine(headerRow(), offset, m.width), m.width)))
	rows := max(height-2, 1)
	start, end := windowBounds(feed.SelectedIndex(), feed.Len(), rows)
	activities := feed.Activities()
	for i := start; i < end; i++ {
		row := padRight(shiftLine(activityRow(activities[i]), offset, m.width), m.width)
		if i == feed.SelectedIndex() {
			row = selectedStyle.Render(row)
		} else {
			row = sportStyle(activities[i]).Render(row)
		}
		lines = append(lines, row)
	}
	return strings.Join(lines, "\n")
}

func (m tuiModel) renderDetail(height int) string {
	selected, ok := m.app.Feed().SelectedActivity()
	if !ok {
		return "No activity selected"
	}
	detail, loaded := m.app.CurrentDetail()
	raw := detailLines(selected, detail, loaded, m.app.detailStatus, m.app.now())
	width := max(m.width-2, 4)
	lines := []string{titleStyle.Render(raw[0])}
	for _, line := range raw[1:] {
		lines = append(lines, wrapText(line, width)...)
	}
	scroll := m.detailScroll
	visible := visibleLines(lines, height-1, &scroll)
	visible = append(visible, mutedStyle.Render("esc to go back · enter to reload · pgup/pgdn to scroll"))
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(visible, "\n"))
}

func (m tuiModel) renderStatusBar(width int) string {
	style := lipgloss.NewStyle().Width(width).Padding(0, 1).Foreground(lipgloss.Color("241"))
	status := valueOrFallback(m.app.status, "Ready")
	if m.app.Feed().IsLoading() || m.app.detailStatus == DetailLoading {
		status = m.spinner.View() + " " + status
	}
	hint := m.help.View(m.keys)
	padding := width - ansi.StringWidth(status) - ansi.StringWidth(hint) - 2
	if padding < 1 {
		padding = 1
	}
	return style.Render(ansi.Truncate(status+strings.Repeat(" ", padding)+hint, max(width-2, 0), "…"))
}

func (m tuiModel) renderHelpOverlay() string {
	box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2).BorderForeground(lipgloss.Color("63"))
	content := "Quick Commands\n\n" + m.help.FullHelpView(m.keys.FullHelp()) + "\n\n/ or esc - close"
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box.Render(content))
}

func sportStyle(a Activity) lipgloss.Style {
	sport := valueOrFallback(a.SportType, a.Type)
	color := "201"
	switch sport {
	case "Run", "TrailRun", "VirtualRun":
		color = "42"
	case "Ride", "GravelRide", "MountainBikeRide", "VirtualRide", "EBikeRide":
		color = "33"
	case "Swim":
		color = "51"
	case "Hike", "Walk":
		color = "226"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func padRight(value string, width int) string {
	gap := width - ansi.StringWidth(value)
	if gap <= 0 {
		return value
	}
	return value + strings.Repeat(" ", gap)
}

func formatLocalTime(value time.Time) string {
	if value.IsZero() {
		return "Unknown"
	}
	return value.Format("2006-01-02 15:04")
}

func valueOrFallback(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

func wrapText(text string, width int) []string {
	if width < 1 {
		return []string{""}
	}
	lines := []string{}
	for _, para := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(para)
		if trimmed == "" {
			lines = append(lines, "")
			continue
		}
		if ansi.StringWidth(para) <= width {
			lines = append(lines, para)
			continue
		}
		line := ""
		for _, word := range strings.Fields(trimmed) {
			if line == "" {
				if len(word) > width {
					lines = append(lines, truncate(word, width))
					continue
				}
				line = word
				continue
			}
			if len(line)+1+len(word) > width {
				lines = append(lines, line)
				if len(word) > width {
					lines = append(lines, truncate(word, width))
					line = ""
				} else {
					line = word
				}
				continue
			}
			line = line + " " + word
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func visibleLines(lines []string, height int, scroll *int) []string {
	if height <= 0 {
		return []string{}
	}
	if len(lines) <= height {
		*scroll = 0
		return padLines(append([]string{}, lines...), height)
	}
	maxScroll := len(lines) - height
	if *scroll > maxScroll {
		*scroll = maxScroll
	}
	if *scroll < 0 {
		*scroll = 0
	}
	return lines[*scroll : *scroll+height]
}
