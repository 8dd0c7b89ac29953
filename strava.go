package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

const (
	detailCacheSize = 64
	maxErrorBody    = 64 << 10
)

// RemoteActivitySource returns one page of the athlete's activities, most
// recent first. Pages are 1-indexed.
type RemoteActivitySource interface {
	Activities(ctx context.Context, page, perPage int) ([]Activity, error)
}

type FetchErrorKind int

const (
	FetchFailed FetchErrorKind = iota
	FetchUnauthorized
	FetchMissingScope
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchUnauthorized:
		return "unauthorized"
	case FetchMissingScope:
		return "missing_scope"
	default:
		return "failed"
	}
}

type FetchError struct {
	Kind    FetchErrorKind
	Status  int
	Message string
	Err     error

	transient bool
}

func (e *FetchError) Error() string {
	var b strings.Builder
	if e.Status != 0 {
		fmt.Fprintf(&b, "strava api %d", e.Status)
	} else {
		b.WriteString("strava api")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func IsAuthError(err error) bool {
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		return false
	}
	return fetchErr.Kind == FetchUnauthorized || fetchErr.Kind == FetchMissingScope
}

const missingScopeHelp = "your token lacks activity read permission. " +
	"Authorize again with the activity:read_all scope by running sportfrei --login"

type StravaClient struct {
	baseURL     string
	credentials CredentialProvider
	client      *http.Client
	limiter     *rate.Limiter
	details     *lru.Cache[int64, DetailedActivity]
	backoff     func() retry.Backoff
}

// NewStravaClient builds an API client. The limiter keeps requests under the
// default application quota of 100 per 15 minutes with room for bursts.
func NewStravaClient(baseURL string, credentials CredentialProvider, httpClient *http.Client) (*StravaClient, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	details, err := lru.New[int64, DetailedActivity](detailCacheSize)
	if err != nil {
		return nil, err
	}
	return &StravaClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		credentials: credentials,
		client:      httpClient,
		limiter:     rate.NewLimiter(rate.Every(9*time.Second), 20),
		details:     details,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(2, retry.NewExponential(250*time.Millisecond))
		},
	}, nil
}

func (c *StravaClient) Athlete(ctx context.Context) (Athlete, error) {
	var athlete Athlete
	err := c.getJSON(ctx, "/athlete", nil, &athlete)
	return athlete, err
}

func (c *StravaClient) AthleteStats(ctx context.Context, athleteID int64) (AthleteStats, error) {
	var stats AthleteStats
	err := c.getJSON(ctx, "/athletes/"+strconv.FormatInt(athleteID, 10)+"/stats", nil, &stats)
	return stats, err
}

func (c *StravaClient) Activities(ctx context.Context, page, perPage int) ([]Activity, error) {
	if page < 1 {
		return nil, fmt.Errorf("invalid page %d", page)
	}
	if perPage < 1 || perPage > maxPageSize {
		return nil, fmt.Errorf("invalid page size %d", perPage)
	}
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPage))
	var activities []Activity
	if err := c.getJSON(ctx, "/athlete/activities", query, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// Activity fetches the detailed payload for one activity. Results are kept
// for the session so reopening a detail view does not hit the API again.
func (c *StravaClient) Activity(ctx context.Context, id int64) (DetailedActivity, error) {
	if cached, ok := c.details.Get(id); ok {
		return cached, nil
	}
	var detail DetailedActivity
	if err := c.getJSON(ctx, "/activities/"+strconv.FormatInt(id, 10), nil, &detail); err != nil {
		return DetailedActivity{}, err
	}
	c.details.Add(id, detail)
	return detail, nil
}

func (c *StravaClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	start := time.Now()
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		err := c.doGet(ctx, endpoint, out)
		if isRetryable(err) {
			logger.Debug("retrying request", "path", path, "err", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		logger.Warn("request failed", "path", path, "err", err)
		return err
	}
	logger.Debug("request ok", "path", path, "took", time.Since(start))
	return nil
}

func (c *StravaClient) doGet(ctx context.Context, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	token, err := c.credentials.AccessToken(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("authorization", "Bearer "+token)
	req.Header.Set("accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return &FetchError{Kind: FetchFailed, Message: "request failed", Err: err, transient: true}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return classifyHTTPError(resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Kind: FetchFailed, Status: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

func classifyHTTPError(status int, body []byte) *FetchError {
	var parsed ErrorResponse
	_ = json.Unmarshal(body, &parsed)
	message := strings.TrimSpace(parsed.Message)
	if message == "" {
		message = truncate(string(body), 200)
	}
	if message == "" {
		message = http.StatusText(status)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		if missingScope(parsed, body) {
			return &FetchError{Kind: FetchMissingScope, Status: status, Message: missingScopeHelp}
		}
		return &FetchError{Kind: FetchUnauthorized, Status: status, Message: message}
	}
	transient := status == http.StatusTooManyRequests || status >= 500
	return &FetchError{Kind: FetchFailed, Status: status, Message: message, transient: transient}
}

func missingScope(parsed ErrorResponse, body []byte) bool {
	for _, e := range parsed.Errors {
		if e.Field == "activity:read_permission" || e.Code == "missing" {
			return true
		}
	}
	return strings.Contains(string(body), "activity:read_permission")
}

func isRetryable(err error) bool {
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		return false
	}
	return fetchErr.transient
}

func activityURL(id int64) string {
	return "https://www.strava.com/activities/" + strconv.FormatInt(id, 10)
}
