package main

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type View int

const (
	ViewDashboard View = iota
	ViewActivities
	ViewActivityDetail
)

func (v View) Title() string {
	switch v {
	case ViewActivities:
		return "Activities"
	case ViewActivityDetail:
		return "Activity Details"
	default:
		return "Dashboard"
	}
}

type DetailStatus string

const (
	DetailIdle    DetailStatus = "idle"
	DetailLoading DetailStatus = "loading"
	DetailLoaded  DetailStatus = "loaded"
	DetailFailed  DetailStatus = "failed"
)

type ActivityClient interface {
	RemoteActivitySource
	Activity(ctx context.Context, id int64) (DetailedActivity, error)
}

type App struct {
	config       Config
	client       ActivityClient
	feed         *FeedController
	view         View
	pageSize     int
	status       string
	lastErr      error
	detail       DetailedActivity
	detailFor    int64
	detailStatus DetailStatus
	openURL      func(string) error
	copyText     func(string) error
	now          func() time.Time
}

func NewApp(cfg Config, client ActivityClient, athlete Athlete, stats AthleteStats) *App {
	app := &App{
		config:       cfg,
		client:       client,
		feed:         NewFeedController(athlete, stats),
		view:         ViewDashboard,
		pageSize:     cfg.PageSize,
		detailStatus: DetailIdle,
		openURL:      openURL,
		copyText:     clipboardWrite,
		now:          time.Now,
	}
	app.status = fmt.Sprintf("Welcome, %s", valueOrFallback(athlete.FirstName, "Athlete"))
	return app
}

func (a *App) Feed() *FeedController {
	return a.feed
}

func (a *App) CurrentView() View {
	return a.view
}

func (a *App) SetView(view View) {
	a.view = view
}

// EnsurePageSize fixes the page size for the session the first time the
// viewport height is known. Later resizes keep the original value so every
// request in the session uses the same per-page count.
func (a *App) EnsurePageSize(height int) {
	if a.pageSize > 0 {
		return
	}
	a.pageSize = a.config.PageSizeFor(height)
	logger.Debug("page size fixed", "per_page", a.pageSize, "height", height)
}

func (a *App) PageSize() int {
	return a.pageSize
}

func (a *App) StartPrefetch() (page int, perPage int, ok bool) {
	if a.pageSize <= 0 || !a.feed.ShouldPrefetch() {
		return 0, 0, false
	}
	page = a.feed.BeginPrefetch()
	logger.Info("requesting activities", "page", page, "per_page", a.pageSize)
	return page, a.pageSize, true
}

// ApplyPage feeds a finished request back into the controller. perPage must
// be the value StartPrefetch returned for this request.
func (a *App) ApplyPage(page int, perPage int, records []Activity, err error) {
	if err != nil {
		a.feed.ApplyFetchFailure()
		a.lastErr = err
		a.status = fetchFailureStatus(err)
		logger.Error("load activities failed", "page", page, "err", err, "auth", IsAuthError(err))
		return
	}
	a.feed.ApplyFetchedPage(records, perPage)
	a.lastErr = nil
	a.status = fmt.Sprintf("%d activities loaded", a.feed.Len())
	if !a.feed.HasMore() {
		a.status += " (all)"
	}
	logger.Info("activities loaded", "page", page, "count", len(records), "total", a.feed.Len(), "has_more", a.feed.HasMore())
}

func (a *App) LoadNextPage(ctx context.Context) (bool, error) {
	page, perPage, ok := a.StartPrefetch()
	if !ok {
		return false, nil
	}
	records, err := a.client.Activities(ctx, page, perPage)
	a.ApplyPage(page, perPage, records, err)
	return true, err
}

func fetchFailureStatus(err error) string {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.Kind {
		case FetchMissingScope:
			return "Missing permission: " + fetchErr.Message
		case FetchUnauthorized:
			return "Not authorized: " + fetchErr.Error()
		}
	}
	return "Load failed: " + err.Error() + " (r to retry)"
}

// OpenDetail switches to the detail view for the selected activity and
// reports whether its detailed payload still needs fetching. Calling it from
// the detail view retries a failed fetch.
func (a *App) OpenDetail() bool {
	if a.view != ViewActivities && a.view != ViewActivityDetail {
		return false
	}
	selected, ok := a.feed.SelectedActivity()
	if !ok {
		return false
	}
	a.view = ViewActivityDetail
	if a.detailFor == selected.ID && (a.detailStatus == DetailLoaded || a.detailStatus == DetailLoading) {
		return false
	}
	a.detailFor = selected.ID
	a.detail = DetailedActivity{}
	a.detailStatus = DetailLoading
	return true
}

func (a *App) CloseDetail() {
	if a.view == ViewActivityDetail {
		a.view = ViewActivities
	}
}

func (a *App) ApplyDetail(id int64, detail DetailedActivity, err error) {
	if id != a.detailFor {
		// stale
		return
	}
	if err != nil {
		a.detailStatus = DetailFailed
		a.status = "Detail failed: " + err.Error()
		logger.Error("load activity detail failed", "id", id, "err", err)
		return
	}
	a.detail = detail
	a.detailStatus = DetailLoaded
}

func (a *App) LoadDetail(ctx context.Context) error {
	if a.detailStatus != DetailLoading {
		return nil
	}
	id := a.detailFor
	detail, err := a.client.Activity(ctx, id)
	a.ApplyDetail(id, detail, err)
	return err
}

func (a *App) CurrentDetail() (DetailedActivity, bool) {
	selected, ok := a.feed.SelectedActivity()
	if !ok || a.detailStatus != DetailLoaded || a.detailFor != selected.ID {
		return DetailedActivity{}, false
	}
	return a.detail, true
}

func (a *App) OpenSelected() error {
	selected, ok := a.feed.SelectedActivity()
	if !ok {
		return nil
	}
	return a.openURL(selected.URL())
}

func (a *App) CopySelectedURL() error {
	selected, ok := a.feed.SelectedActivity()
	if !ok {
		return nil
	}
	if err := a.copyText(selected.URL()); err != nil {
		return err
	}
	a.status = "URL copied to clipboard"
	return nil
}
