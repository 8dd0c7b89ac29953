package main

// PrefetchMargin is how many rows from the end of the loaded list the
// selection may come before the next page is requested.
const PrefetchMargin = 5

// FeedController owns the session's activity feed: the accumulated pages,
// the pagination cursor, the in-flight flag and the list selection.
//
// It is not safe for concurrent use. Exactly one goroutine (the UI update
// loop) may call its methods; fetch results must be handed back to that
// goroutine before they are applied.
type FeedController struct {
	athlete    Athlete
	stats      AthleteStats
	activities []Activity
	nextPage   int
	hasMore    bool
	loading    bool
	selected   int
	scroll     int
}

func NewFeedController(athlete Athlete, stats AthleteStats) *FeedController {
	c := &FeedController{}
	c.Initialize(athlete, stats)
	return c
}

func (c *FeedController) Initialize(athlete Athlete, stats AthleteStats) {
	c.athlete = athlete
	c.stats = stats
	c.activities = nil
	c.nextPage = 1
	c.hasMore = true
	c.loading = false
	c.selected = 0
	c.scroll = 0
}

// ShouldPrefetch reports whether the next page should be requested now.
// On an empty feed the margin clamps to zero, so the first page is always due.
func (c *FeedController) ShouldPrefetch() bool {
	if c.loading || !c.hasMore {
		return false
	}
	threshold := len(c.activities) - PrefetchMargin
	if threshold < 0 {
		threshold = 0
	}
	return c.selected >= threshold
}

// BeginPrefetch marks a fetch as in flight and returns the page to request.
// Callers must only call it after ShouldPrefetch returned true.
func (c *FeedController) BeginPrefetch() int {
	c.loading = true
	return c.nextPage
}

// ApplyFetchedPage appends a fetched page. requestedPageSize must be the
// per-page value the request was made with: a short page ends the feed.
func (c *FeedController) ApplyFetchedPage(records []Activity, requestedPageSize int) {
	c.activities = append(c.activities, records...)
	c.nextPage++
	if len(records) < requestedPageSize {
		c.hasMore = false
	}
	c.loading = false
}

// ApplyFetchFailure clears the in-flight flag only. The cursor does not move,
// so the same page is requested again on the next prefetch.
func (c *FeedController) ApplyFetchFailure() {
	c.loading = false
}

func (c *FeedController) SelectNext() {
	c.moveSelection(1)
}

func (c *FeedController) SelectPrevious() {
	c.moveSelection(-1)
}

func (c *FeedController) SelectFirst() {
	if len(c.activities) == 0 {
		return
	}
	c.selected = 0
}

func (c *FeedController) SelectLast() {
	if len(c.activities) == 0 {
		return
	}
	c.selected = len(c.activities) - 1
}

func (c *FeedController) moveSelection(delta int) {
	if len(c.activities) == 0 {
		return
	}
	idx := c.selected + delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(c.activities) {
		idx = len(c.activities) - 1
	}
	c.selected = idx
}

func (c *FeedController) ScrollLeft() {
	if c.scroll > 0 {
		c.scroll--
	}
}

// ScrollRight has no upper bound; the renderer clips to the content width.
func (c *FeedController) ScrollRight() {
	c.scroll++
}

func (c *FeedController) SelectedActivity() (Activity, bool) {
	if len(c.activities) == 0 || c.selected < 0 || c.selected >= len(c.activities) {
		return Activity{}, false
	}
	return c.activities[c.selected], true
}

// Activities returns the loaded feed. The slice is capped so appends by the
// caller cannot write into the controller's backing array.
func (c *FeedController) Activities() []Activity {
	return c.activities[:len(c.activities):len(c.activities)]
}

func (c *FeedController) Len() int            { return len(c.activities) }
func (c *FeedController) SelectedIndex() int  { return c.selected }
func (c *FeedController) ScrollOffset() int   { return c.scroll }
func (c *FeedController) IsLoading() bool     { return c.loading }
func (c *FeedController) HasMore() bool       { return c.hasMore }
func (c *FeedController) NextPage() int       { return c.nextPage }
func (c *FeedController) Athlete() Athlete    { return c.athlete }
func (c *FeedController) Stats() AthleteStats { return c.stats }
