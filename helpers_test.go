package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newResponse(status int, body string, headers map[string]string, req *http.Request) *http.Response {
	resp := &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
		Request:    req,
	}
	for k, v := range headers {
		resp.Header.Set(k, v)
	}
	return resp
}

type staticToken string

func (s staticToken) AccessToken(context.Context) (string, error) {
	return string(s), nil
}

var testNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func floatPtr(v float64) *float64 {
	return &v
}

// makeActivities returns n runs, newest first, one per day before testNow.
func makeActivities(n int) []Activity {
	activities := make([]Activity, n)
	for i := range activities {
		start := testNow.AddDate(0, 0, -i)
		activities[i] = Activity{
			ID:             int64(i + 1),
			Name:           "Run " + strconv.Itoa(i+1),
			Type:           "Run",
			SportType:      "Run",
			StartDate:      start,
			StartDateLocal: start,
			Distance:       5000,
			MovingTime:     1500,
		}
	}
	return activities
}

// fakeStrava serves the OAuth token endpoint and the API routes the client
// uses, backed by an in-memory activity list.
type fakeStrava struct {
	t      *testing.T
	server *httptest.Server

	mu               sync.Mutex
	activities       []Activity
	pageRequests     []string
	detailRequests   int
	tokenRequests    int
	rotateTo         string
	activitiesStatus int
	activitiesBody   string
	failuresLeft     int
	lastAuth         string
}

func newFakeStrava(t *testing.T, count int) *fakeStrava {
	t.Helper()
	f := &fakeStrava{t: t, activities: makeActivities(count)}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", f.handleToken)
	mux.HandleFunc("/api/v3/athlete", f.handleAthlete)
	mux.HandleFunc("/api/v3/athletes/", f.handleStats)
	mux.HandleFunc("/api/v3/athlete/activities", f.handleActivities)
	mux.HandleFunc("/api/v3/activities/", f.handleDetail)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeStrava) config() Config {
	cfg := DefaultConfig()
	cfg.ClientID = "client"
	cfg.ClientSecret = "secret"
	cfg.RefreshToken = "refresh-1"
	cfg.APIBaseURL = f.server.URL + "/api/v3"
	cfg.OAuthBaseURL = f.server.URL + "/oauth"
	return cfg
}

func (f *fakeStrava) client(t *testing.T) *StravaClient {
	t.Helper()
	client, err := NewStravaClient(f.server.URL+"/api/v3", staticToken("token"), f.server.Client())
	if err != nil {
		t.Fatalf("NewStravaClient: %v", err)
	}
	fastClient(client)
	return client
}

func fastClient(client *StravaClient) {
	client.limiter = rate.NewLimiter(rate.Inf, 1)
	client.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(2, retry.NewConstant(time.Millisecond))
	}
}

func (f *fakeStrava) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.tokenRequests++
	refresh := r.PostForm.Get("refresh_token")
	if f.rotateTo != "" {
		refresh = f.rotateTo
	}
	if r.PostForm.Get("grant_type") == "authorization_code" {
		refresh = "refresh-from-code"
	}
	f.mu.Unlock()
	if r.PostForm.Get("client_id") != "client" || r.PostForm.Get("client_secret") != "secret" {
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Bad Request","errors":[{"resource":"Application","field":"client_id","code":"invalid"}]}`))
		return
	}
	w.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "access-1",
		"token_type":    "Bearer",
		"expires_in":    21600,
		"refresh_token": refresh,
	})
}

func (f *fakeStrava) record(r *http.Request) {
	f.mu.Lock()
	f.lastAuth = r.Header.Get("authorization")
	f.mu.Unlock()
}

func (f *fakeStrava) handleAthlete(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	writeJSON(w, Athlete{ID: 7, FirstName: "Ada", LastName: "Lovelace"})
}

func (f *fakeStrava) handleStats(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	if !strings.HasSuffix(r.URL.Path, "/7/stats") {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, AthleteStats{
		BiggestRideDistance: floatPtr(120500),
		AllRunTotals:        ActivityTotals{Count: 1234, Distance: 6543210, MovingTime: 7200},
	})
}

func (f *fakeStrava) handleActivities(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	f.mu.Lock()
	f.pageRequests = append(f.pageRequests, r.URL.RawQuery)
	status := f.activitiesStatus
	body := f.activitiesBody
	if f.failuresLeft > 0 {
		f.failuresLeft--
		status = http.StatusInternalServerError
		body = `{"message":"Internal Error"}`
	}
	all := f.activities
	f.mu.Unlock()
	if status != 0 && status != http.StatusOK {
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	start := (page - 1) * perPage
	if start > len(all) {
		start = len(all)
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	writeJSON(w, all[start:end])
}

func (f *fakeStrava) handleDetail(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	f.mu.Lock()
	f.detailRequests++
	f.mu.Unlock()
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/v3/activities/"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	rank := 1
	writeJSON(w, DetailedActivity{
		Activity: Activity{ID: id, Name: fmt.Sprintf("Run %d", id), SportType: "Run", Distance: 5000, MovingTime: 1500},
		SplitsMetric: []Split{
			{Split: 1, Distance: 1000, MovingTime: 300, ElevationDifference: 4},
			{Split: 2, Distance: 1000, MovingTime: 290, ElevationDifference: -2},
		},
		Laps:        []Lap{{Name: "Lap 1", LapIndex: 1, Distance: 5000, MovingTime: 1500}},
		BestEfforts: []BestEffort{{Name: "1k", Distance: 1000, ElapsedTime: 290, PRRank: &rank}},
	})
}

func (f *fakeStrava) requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.pageRequests...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeStrava) detailCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailRequests
}

func (f *fakeStrava) tokenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenRequests
}

func (f *fakeStrava) authHeader() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}
