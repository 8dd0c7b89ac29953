package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
)

const (
	plainHeight   = 30
	plainRows     = 10
	plainWidth    = 100
	hScrollStep   = 4
	nameColumnMax = 25
)

type column struct {
	title string
	width int
}

var activityColumns = []column{
	{"Date", 12},
	{"Name", nameColumnMax},
	{"Distance", 8},
	{"Elev", 7},
	{"Duration", 8},
	{"Pace", 7},
	{"HR", 5},
	{"Cal", 5},
	{"RelPerf", 7},
}

// Run drives the app from line commands when no terminal is attached. Due
// pages are fetched synchronously between commands.
func Run(ctx context.Context, app *App, in io.Reader, out io.Writer) error {
	app.EnsurePageSize(plainHeight)
	loadDue(ctx, app)
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, render(app))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "q" || line == "quit" {
			break
		}
		if err := handleCommand(ctx, app, line, out); err != nil {
			app.status = err.Error()
		}
		loadDue(ctx, app)
		fmt.Fprintln(out, render(app))
	}
	return scanner.Err()
}

func loadDue(ctx context.Context, app *App) {
	// A failed page is not retried until the next command.
	_, _ = app.LoadNextPage(ctx)
}

func handleCommand(ctx context.Context, app *App, line string, out io.Writer) error {
	feed := app.Feed()
	switch line {
	case "d", "dashboard":
		app.SetView(ViewDashboard)
	case "a", "activities":
		app.SetView(ViewActivities)
	case "j", "down":
		if app.CurrentView() == ViewActivities {
			feed.SelectNext()
		}
	case "k", "up":
		if app.CurrentView() == ViewActivities {
			feed.SelectPrevious()
		}
	case "g", "first":
		if app.CurrentView() == ViewActivities {
			feed.SelectFirst()
		}
	case "G", "last":
		if app.CurrentView() == ViewActivities {
			feed.SelectLast()
		}
	case "h", "left":
		if app.CurrentView() == ViewActivities {
			feed.ScrollLeft()
		}
	case "l", "right":
		if app.CurrentView() == ViewActivities {
			feed.ScrollRight()
		}
	case "more":
		app.SetView(ViewActivities)
		feed.SelectLast()
	case "enter":
		if app.OpenDetail() {
			return app.LoadDetail(ctx)
		}
	case "esc":
		app.CloseDetail()
	case "o", "open":
		return app.OpenSelected()
	case "y", "copy":
		return app.CopySelectedURL()
	case "?", "help":
		fmt.Fprintln(out, helpText())
	default:
		return fmt.Errorf("unknown command %q", line)
	}
	return nil
}

func render(app *App) string {
	lines := []string{"SportFrei - " + app.CurrentView().Title(), ""}
	switch app.CurrentView() {
	case ViewActivities:
		lines = append(lines, renderActivitiesText(app)...)
	case ViewActivityDetail:
		lines = append(lines, renderDetailText(app)...)
	default:
		lines = append(lines, renderDashboardText(app)...)
	}
	lines = append(lines, "", "Status: "+valueOrFallback(app.status, "Ready"))
	return strings.Join(lines, "\n")
}

func renderDashboardText(app *App) []string {
	summary := app.Feed().DashboardSummary(app.now())
	lines := []string{greeting(app.Feed().Athlete()), ""}
	for _, card := range dashboardCards(summary) {
		lines = append(lines, fmt.Sprintf("%-18s %s %s  (%s)", card.title, card.value, card.trend.Arrow(), card.note))
	}
	lines = append(lines, "")
	return append(lines, statsLines(app.Feed().Stats())...)
}

func renderActivitiesText(app *App) []string {
	feed := app.Feed()
	lines := []string{activitiesTitle(feed)}
	if feed.Len() == 0 {
		return append(lines, "No activities found")
	}
	offset := feed.ScrollOffset() * hScrollStep
	lines = append(lines, "  "+shiftLine(headerRow(), offset, plainWidth))
	start, end := windowBounds(feed.SelectedIndex(), feed.Len(), plainRows)
	activities := feed.Activities()
	for i := start; i < end; i++ {
		prefix := "  "
		if i == feed.SelectedIndex() {
			prefix = "> "
		}
		lines = append(lines, prefix+shiftLine(activityRow(activities[i]), offset, plainWidth))
	}
	return lines
}

func renderDetailText(app *App) []string {
	selected, ok := app.Feed().SelectedActivity()
	if !ok {
		return []string{"No activity selected"}
	}
	detail, loaded := app.CurrentDetail()
	return detailLines(selected, detail, loaded, app.detailStatus, app.now())
}

func greeting(athlete Athlete) string {
	return fmt.Sprintf("Welcome, %s!", valueOrFallback(athlete.FirstName, "Athlete"))
}

func activitiesTitle(feed *FeedController) string {
	marker := ""
	switch {
	case feed.IsLoading():
		marker = " - loading…"
	case !feed.HasMore():
		marker = " - end"
	}
	return fmt.Sprintf("Activities (%d total%s) - h/l scroll, j/k nav", feed.Len(), marker)
}

type dashboardCard struct {
	title string
	value string
	trend Trend
	note  string
}

func dashboardCards(s DashboardSummary) []dashboardCard {
	return []dashboardCard{
		{
			title: "Biggest Distance",
			value: fmt.Sprintf("%.1f km", s.FarthestKm),
			trend: s.DistanceTrend,
			note:  fmt.Sprintf("last 30 days: %.1f km", s.RecentKm),
		},
		{
			title: "Best Pace",
			value: s.RecentPace.String() + " /km",
			trend: s.PaceTrend,
			note:  "vs " + s.BestPace.String(),
		},
		{
			title: "This Month",
			value: strconv.Itoa(s.ThisMonth),
			trend: s.CountTrend,
			note:  fmt.Sprintf("vs %d last month", s.LastMonth),
		},
	}
}

func statsLines(stats AthleteStats) []string {
	lines := []string{
		totalsLine("Recent runs", stats.RecentRunTotals),
		totalsLine("Recent rides", stats.RecentRideTotals),
		totalsLine("YTD runs", stats.YTDRunTotals),
		totalsLine("YTD rides", stats.YTDRideTotals),
		totalsLine("All-time runs", stats.AllRunTotals),
		totalsLine("All-time rides", stats.AllRideTotals),
	}
	if stats.BiggestRideDistance != nil {
		lines = append(lines, fmt.Sprintf("%-15s %s km", "Longest ride", humanize.CommafWithDigits(*stats.BiggestRideDistance/1000, 1)))
	}
	if stats.BiggestClimbElevationGain != nil {
		lines = append(lines, fmt.Sprintf("%-15s %s m", "Biggest climb", humanize.CommafWithDigits(*stats.BiggestClimbElevationGain, 0)))
	}
	return lines
}

func totalsLine(label string, totals ActivityTotals) string {
	return fmt.Sprintf("%-15s %s activities · %s km · %s · %s m climbed",
		label,
		humanize.Comma(int64(totals.Count)),
		humanize.CommafWithDigits(totals.Distance/1000, 1),
		formatDuration(totals.MovingTime),
		humanize.CommafWithDigits(totals.ElevationGain, 0),
	)
}

func detailLines(a Activity, detail DetailedActivity, loaded bool, status DetailStatus, now time.Time) []string {
	started := formatLocalTime(a.StartDateLocal)
	if !a.StartDate.IsZero() {
		started += " (" + humanize.RelTime(a.StartDate, now, "ago", "from now") + ")"
	}
	lines := []string{
		a.Name,
		"",
		"Type: " + valueOrFallback(a.SportType, a.Type),
		"Started: " + started,
		fmt.Sprintf("Distance: %.2f km", a.Distance/1000),
		"Moving Time: " + formatDuration(a.MovingTime),
		"Elapsed Time: " + formatDuration(a.ElapsedTime),
		fmt.Sprintf("Elevation Gain: %.0f m", a.TotalElevationGain),
		"Average Speed: " + formatSpeed(a.AverageSpeed),
		"Pace: " + PaceOf(a).String() + " /km",
		"Heart Rate: " + formatOptional(a.AverageHeartrate, "%.0f") + " avg / " + formatOptional(a.MaxHeartrate, "%.0f") + " max",
		"Calories: " + formatOptional(a.Calories, "%.0f"),
		"Relative Performance: " + relPerfText(a),
		fmt.Sprintf("Kudos: %d  Comments: %d  Achievements: %d  PRs: %d", a.KudosCount, a.CommentCount, a.AchievementCount, a.PRCount),
		"URL: " + a.URL(),
	}
	switch {
	case loaded:
		lines = append(lines, detailSections(detail)...)
	case status == DetailLoading:
		lines = append(lines, "", "Loading details...")
	case status == DetailFailed:
		lines = append(lines, "", "Details unavailable. Press enter to retry.")
	}
	return lines
}

func detailSections(detail DetailedActivity) []string {
	lines := []string{}
	if desc := strings.TrimSpace(detail.Description); desc != "" {
		lines = append(lines, "", desc)
	}
	if len(detail.SplitsMetric) > 0 {
		lines = append(lines, "", "Splits")
		for _, split := range detail.SplitsMetric {
			pace := PaceOf(Activity{Distance: split.Distance, MovingTime: split.MovingTime})
			lines = append(lines, fmt.Sprintf("  km %-3d %6s /km  %+5.0f m", split.Split, pace, split.ElevationDifference))
		}
	}
	if len(detail.Laps) > 0 {
		lines = append(lines, "", "Laps")
		for _, lap := range detail.Laps {
			lines = append(lines, fmt.Sprintf("  %-12s %6.2f km  %8s  HR %s",
				truncate(valueOrFallback(lap.Name, "Lap "+strconv.Itoa(lap.LapIndex)), 12),
				lap.Distance/1000,
				formatDuration(lap.MovingTime),
				formatOptional(lap.AverageHeartrate, "%.0f"),
			))
		}
	}
	if len(detail.BestEfforts) > 0 {
		lines = append(lines, "", "Best Efforts")
		for _, effort := range detail.BestEfforts {
			pr := ""
			if effort.PRRank != nil {
				pr = fmt.Sprintf("  PR #%d", *effort.PRRank)
			}
			lines = append(lines, fmt.Sprintf("  %-14s %8s%s", truncate(effort.Name, 14), formatDuration(effort.ElapsedTime), pr))
		}
	}
	return lines
}

func headerRow() string {
	cells := make([]string, len(activityColumns))
	for i, col := range activityColumns {
		cells[i] = col.title
	}
	return formatRow(cells)
}

func activityRow(a Activity) string {
	return formatRow([]string{
		a.StartDateLocal.Format("01-02 15:04"),
		truncate(a.Name, nameColumnMax),
		fmt.Sprintf("%.1f", a.Distance/1000),
		fmt.Sprintf("%.0f", a.TotalElevationGain),
		formatDuration(a.MovingTime),
		PaceOf(a).String(),
		formatOptional(a.AverageHeartrate, "%.0f"),
		formatOptional(a.Calories, "%.0f"),
		relPerfText(a),
	})
}

func formatRow(cells []string) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		width := activityColumns[i].width
		parts[i] = cell + strings.Repeat(" ", max(0, width-ansi.StringWidth(cell)))
	}
	return strings.Join(parts, " ")
}

// shiftLine drops offset columns from the left of line and clips the rest to
// width.
func shiftLine(line string, offset int, width int) string {
	return ansi.Cut(line, offset, offset+width)
}

// windowBounds returns the half-open range of rows to show so the selected
// row stays visible.
func windowBounds(selected, total, height int) (int, int) {
	if height <= 0 || total == 0 {
		return 0, 0
	}
	if total <= height {
		return 0, total
	}
	start := selected - height/2
	start = clamp(start, 0, total-height)
	return start, start + height
}

func relPerfText(a Activity) string {
	value, ok := RelativePerformance(a)
	if !ok {
		return "---"
	}
	return fmt.Sprintf("%.0f", value)
}

func formatOptional(value *float64, format string) string {
	if value == nil {
		return "---"
	}
	return fmt.Sprintf(format, *value)
}

func formatSpeed(speed *float64) string {
	if speed == nil {
		return "---"
	}
	return fmt.Sprintf("%.2f km/h", *speed*3.6)
}

func formatDuration(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

func padLines(lines []string, total int) []string {
	for len(lines) < total {
		lines = append(lines, "")
	}
	return lines
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	if max <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func helpText() string {
	return strings.Join([]string{
		"Commands:",
		"  d: dashboard",
		"  a: activities",
		"  j/k: move",
		"  g/G: first/last",
		"  h/l: scroll columns",
		"  more: jump to the end and load the next page",
		"  enter: activity details",
		"  esc: back",
		"  o: open in browser",
		"  y: copy url",
		"  q: quit",
	}, "\n")
}
