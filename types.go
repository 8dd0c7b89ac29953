package main

import "time"

type Athlete struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	FirstName     string `json:"firstname"`
	LastName      string `json:"lastname"`
	City          string `json:"city"`
	Country       string `json:"country"`
	Profile       string `json:"profile"`
	ProfileMedium string `json:"profile_medium"`
}

type ActivityTotals struct {
	Count         int     `json:"count"`
	Distance      float64 `json:"distance"`
	MovingTime    int     `json:"moving_time"`
	ElapsedTime   int     `json:"elapsed_time"`
	ElevationGain float64 `json:"elevation_gain"`
}

// AthleteStats is the server-side aggregate snapshot. It is displayed as-is;
// nothing in this program recomputes it.
type AthleteStats struct {
	BiggestRideDistance       *float64       `json:"biggest_ride_distance"`
	BiggestClimbElevationGain *float64       `json:"biggest_climb_elevation_gain"`
	RecentRunTotals           ActivityTotals `json:"recent_run_totals"`
	RecentRideTotals          ActivityTotals `json:"recent_ride_totals"`
	YTDRunTotals              ActivityTotals `json:"ytd_run_totals"`
	YTDRideTotals             ActivityTotals `json:"ytd_ride_totals"`
	AllRunTotals              ActivityTotals `json:"all_run_totals"`
	AllRideTotals             ActivityTotals `json:"all_ride_totals"`
}

type Activity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	SportType          string    `json:"sport_type"`
	StartDate          time.Time `json:"start_date"`
	StartDateLocal     time.Time `json:"start_date_local"`
	Timezone           string    `json:"timezone"`
	Distance           float64   `json:"distance"`
	MovingTime         int       `json:"moving_time"`
	ElapsedTime        int       `json:"elapsed_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	AverageSpeed       *float64  `json:"average_speed"`
	MaxSpeed           *float64  `json:"max_speed"`
	AverageHeartrate   *float64  `json:"average_heartrate"`
	MaxHeartrate       *float64  `json:"max_heartrate"`
	Calories           *float64  `json:"calories"`
	Description        string    `json:"description"`
	KudosCount         int       `json:"kudos_count"`
	CommentCount       int       `json:"comment_count"`
	AchievementCount   int       `json:"achievement_count"`
	PRCount            int       `json:"pr_count"`
	Private            bool      `json:"private"`
	Commute            bool      `json:"commute"`
	Manual             bool      `json:"manual"`
	GearID             string    `json:"gear_id"`
}

// DetailedActivity is the single-activity payload. The embedded summary
// fields decode from the same JSON object.
type DetailedActivity struct {
	Activity
	SplitsMetric []Split      `json:"splits_metric"`
	Laps         []Lap        `json:"laps"`
	BestEfforts  []BestEffort `json:"best_efforts"`
}

type Split struct {
	Split               int     `json:"split"`
	Distance            float64 `json:"distance"`
	ElapsedTime         int     `json:"elapsed_time"`
	MovingTime          int     `json:"moving_time"`
	ElevationDifference float64 `json:"elevation_difference"`
	PaceZone            int     `json:"pace_zone"`
}

type Lap struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	LapIndex         int      `json:"lap_index"`
	Distance         float64  `json:"distance"`
	MovingTime       int      `json:"moving_time"`
	ElapsedTime      int      `json:"elapsed_time"`
	AverageSpeed     float64  `json:"average_speed"`
	AverageHeartrate *float64 `json:"average_heartrate"`
}

type BestEffort struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Distance    float64 `json:"distance"`
	MovingTime  int     `json:"moving_time"`
	ElapsedTime int     `json:"elapsed_time"`
	PRRank      *int    `json:"pr_rank"`
}

type ErrorResponse struct {
	Message string        `json:"message"`
	Errors  []StravaError `json:"errors"`
}

type StravaError struct {
	Resource string `json:"resource"`
	Field    string `json:"field"`
	Code     string `json:"code"`
}

func (a Activity) IsRun() bool {
	return a.SportType == "Run" || a.Type == "Run"
}

func (a Activity) URL() string {
	return activityURL(a.ID)
}
