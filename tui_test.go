package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPlainSession(t *testing.T) {
	app, client := newTUIApp(t, 30)
	input := "a\nj\n\nG\nenter\nesc\n?\nbogus\nq\nj\n"
	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), app, strings.NewReader(input), &out))

	output := out.String()
	assert.Contains(t, output, "Welcome, Ada!")
	assert.Contains(t, output, "Activities (24 total) - h/l scroll, j/k nav")
	assert.Contains(t, output, "Activities (30 total - end)")
	assert.Contains(t, output, "SportFrei - Activity Details")
	assert.Contains(t, output, "Splits")
	assert.Contains(t, output, "Commands:")
	assert.Contains(t, output, `unknown command "bogus"`)
	assert.Equal(t, [][2]int{{1, 24}, {2, 24}}, client.calls)
	assert.Equal(t, []int64{24}, client.detailCalls)
	assert.Equal(t, 23, app.Feed().SelectedIndex(), "input after q is ignored")
}

func TestRunPlainMoreLoadsNextPage(t *testing.T) {
	app, client := newTUIApp(t, 50)
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), app, strings.NewReader("more\nmore\n"), &out))
	assert.Equal(t, [][2]int{{1, 24}, {2, 24}, {3, 24}}, client.calls)
	assert.Equal(t, 50, app.Feed().Len())
}

func TestHandleCommandNavigation(t *testing.T) {
	app, _ := newTUIApp(t, 12)
	app.EnsurePageSize(plainHeight)
	_, err := app.LoadNextPage(context.Background())
	require.NoError(t, err)
	ctx := context.Background()

	for _, cmd := range []string{"activities", "down", "down", "up", "right", "right", "left"} {
		require.NoError(t, handleCommand(ctx, app, cmd, io.Discard))
	}
	assert.Equal(t, ViewActivities, app.CurrentView())
	assert.Equal(t, 1, app.Feed().SelectedIndex())
	assert.Equal(t, 1, app.Feed().ScrollOffset())

	require.NoError(t, handleCommand(ctx, app, "last", io.Discard))
	assert.Equal(t, 11, app.Feed().SelectedIndex())
	require.NoError(t, handleCommand(ctx, app, "first", io.Discard))
	assert.Equal(t, 0, app.Feed().SelectedIndex())

	var opened string
	app.openURL = func(target string) error { opened = target; return nil }
	require.NoError(t, handleCommand(ctx, app, "o", io.Discard))
	assert.Equal(t, "https://www.strava.com/activities/1", opened)
	require.NoError(t, handleCommand(ctx, app, "y", io.Discard))

	require.NoError(t, handleCommand(ctx, app, "d", io.Discard))
	assert.Equal(t, ViewDashboard, app.CurrentView())
	assert.Error(t, handleCommand(ctx, app, "x", io.Discard))
}

func TestHandleCommandNavigationOnlyInActivities(t *testing.T) {
	app, client := newTUIApp(t, 12)
	app.EnsurePageSize(plainHeight)
	_, err := app.LoadNextPage(context.Background())
	require.NoError(t, err)
	ctx := context.Background()

	for _, cmd := range []string{"j", "l", "G"} {
		require.NoError(t, handleCommand(ctx, app, cmd, io.Discard))
	}
	assert.Equal(t, ViewDashboard, app.CurrentView())
	assert.Equal(t, 0, app.Feed().SelectedIndex())
	assert.Equal(t, 0, app.Feed().ScrollOffset())

	require.NoError(t, handleCommand(ctx, app, "a", io.Discard))
	require.NoError(t, handleCommand(ctx, app, "enter", io.Discard))
	for _, cmd := range []string{"j", "k", "g", "G", "h", "l"} {
		require.NoError(t, handleCommand(ctx, app, cmd, io.Discard))
	}
	assert.Equal(t, ViewActivityDetail, app.CurrentView())
	assert.Equal(t, 0, app.Feed().SelectedIndex())
	detail, loaded := app.CurrentDetail()
	require.True(t, loaded)
	assert.Equal(t, "Tempo session", detail.Description)
	assert.Equal(t, []int64{1}, client.detailCalls)
	assert.Contains(t, render(app), "Splits")

	require.NoError(t, handleCommand(ctx, app, "more", io.Discard))
	assert.Equal(t, ViewActivities, app.CurrentView())
	assert.Equal(t, 11, app.Feed().SelectedIndex())
}

func TestRenderActivitiesWindow(t *testing.T) {
	app, _ := newTUIApp(t, 30)
	app.EnsurePageSize(plainHeight)
	_, err := app.LoadNextPage(context.Background())
	require.NoError(t, err)
	app.SetView(ViewActivities)
	app.Feed().SelectLast()

	lines := renderActivitiesText(app)
	require.Len(t, lines, 2+plainRows)
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "> "))
	assert.Contains(t, lines[len(lines)-1], "Run 24")
	assert.NotContains(t, strings.Join(lines, "\n"), "Run 1 ")
}

func TestRenderDetailText(t *testing.T) {
	app, _ := newTUIApp(t, 3)
	app.EnsurePageSize(plainHeight)
	_, err := app.LoadNextPage(context.Background())
	require.NoError(t, err)
	app.SetView(ViewActivities)
	app.Feed().SelectNext()
	require.True(t, app.OpenDetail())

	text := render(app)
	assert.Contains(t, text, "Run 2")
	assert.Contains(t, text, "1 day ago")
	assert.Contains(t, text, "Loading details...")
	assert.Contains(t, text, "Pace: 5:00 /km")
}

func TestStatsLines(t *testing.T) {
	climb := 2345.0
	lines := statsLines(AthleteStats{
		AllRunTotals:              ActivityTotals{Count: 1234, Distance: 6543210, MovingTime: 3725, ElevationGain: 12345},
		BiggestClimbElevationGain: &climb,
	})
	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "All-time runs   1,234 activities · 6,543.2 km · 1:02:05 · 12,345 m climbed")
	assert.Contains(t, joined, "Biggest climb   2,345 m")
	assert.NotContains(t, joined, "Longest ride")
}

func TestActivityRowFormatting(t *testing.T) {
	a := Activity{
		Name:               "A very long activity name that keeps going",
		StartDateLocal:     testNow,
		Distance:           10234,
		TotalElevationGain: 87.4,
		MovingTime:         3100,
		AverageSpeed:       floatPtr(3.3),
		AverageHeartrate:   floatPtr(151.2),
	}
	row := activityRow(a)
	assert.True(t, strings.HasPrefix(row, "03-15 12:00 "))
	assert.Contains(t, row, "A very long activity n...")
	assert.Contains(t, row, "10.2")
	assert.Contains(t, row, "0:51:40")
	assert.Contains(t, row, "5:02")
	assert.Contains(t, row, "151")
	assert.Contains(t, row, "---")

	assert.Equal(t, "Name", strings.TrimSpace(shiftLine(headerRow(), 13, 8)))
}

func TestWindowBounds(t *testing.T) {
	start, end := windowBounds(0, 0, 10)
	assert.Equal(t, 0, start)
	assert.Equal(t, 0, end)

	start, end = windowBounds(3, 5, 10)
	assert.Equal(t, []int{0, 5}, []int{start, end})

	start, end = windowBounds(50, 100, 10)
	assert.Equal(t, []int{45, 55}, []int{start, end})

	start, end = windowBounds(99, 100, 10)
	assert.Equal(t, []int{90, 100}, []int{start, end})
}

func TestTruncateAndDuration(t *testing.T) {
	assert.Equal(t, "abc", truncate("  abc ", 5))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	assert.Equal(t, "abc...", truncate("abcdefgh", 6))
	assert.Equal(t, "", truncate("abc", 0))
	assert.Equal(t, "Läu...", truncate("Läufer Runde", 6))

	assert.Equal(t, "0:00:00", formatDuration(-5))
	assert.Equal(t, "10:00:01", formatDuration(36001))
}
