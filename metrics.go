package main

import (
	"fmt"
	"math"
	"time"
)

const (
	recentWindow      = 30 * 24 * time.Hour
	previousMonthBack = -35
	monthLabelLayout  = "2006-01"
)

// Pace is seconds per kilometre. The zero value means no pace could be
// computed and renders as "--:--".
type Pace float64

func (p Pace) Valid() bool {
	return p > 0 && !math.IsInf(float64(p), 0) && !math.IsNaN(float64(p))
}

func (p Pace) String() string {
	if !p.Valid() {
		return "--:--"
	}
	secs := float64(p)
	minutes := int(secs / 60)
	rem := int(math.Mod(secs, 60))
	return fmt.Sprintf("%d:%02d", minutes, rem)
}

func PaceOf(a Activity) Pace {
	if a.Distance <= 0 {
		return 0
	}
	return Pace(float64(a.MovingTime) / (a.Distance / 1000))
}

// FarthestDistance returns the longest loaded activity in km and the summed
// km of activities that started within the last 30 days of now.
func (c *FeedController) FarthestDistance(now time.Time) (float64, float64) {
	cutoff := now.Add(-recentWindow)
	farthest := 0.0
	recent := 0.0
	for _, a := range c.activities {
		km := a.Distance / 1000
		if km > farthest {
			farthest = km
		}
		if a.StartDateLocal.After(cutoff) {
			recent += km
		}
	}
	return farthest, recent
}

// BestPace returns the fastest run pace over all loaded activities and over
// the last 30 days. Non-runs and zero-distance activities are ignored.
func (c *FeedController) BestPace(now time.Time) (Pace, Pace) {
	cutoff := now.Add(-recentWindow)
	best := math.Inf(1)
	recentBest := math.Inf(1)
	for _, a := range c.activities {
		if a.Distance <= 0 || !a.IsRun() {
			continue
		}
		pace := float64(a.MovingTime) / (a.Distance / 1000)
		if pace < best {
			best = pace
		}
		if a.StartDateLocal.After(cutoff) && pace < recentBest {
			recentBest = pace
		}
	}
	return finitePace(best), finitePace(recentBest)
}

func finitePace(secs float64) Pace {
	if math.IsInf(secs, 0) || secs == 0 {
		return 0
	}
	return Pace(secs)
}

// MonthlyCount counts loaded activities in the calendar month of now and in
// the month 35 days before it, matching on the year-month label.
func (c *FeedController) MonthlyCount(now time.Time) (int, int) {
	current := now.Format(monthLabelLayout)
	previous := now.AddDate(0, 0, previousMonthBack).Format(monthLabelLayout)
	currentCount := 0
	previousCount := 0
	for _, a := range c.activities {
		switch a.StartDateLocal.Format(monthLabelLayout) {
		case current:
			currentCount++
		case previous:
			previousCount++
		}
	}
	return currentCount, previousCount
}

// RelativePerformance is (distance / average speed) / average heart rate.
// It is undefined unless both averages are present and the speed is positive.
func RelativePerformance(a Activity) (float64, bool) {
	if a.AverageSpeed == nil || a.AverageHeartrate == nil {
		return 0, false
	}
	if *a.AverageSpeed <= 0 || *a.AverageHeartrate == 0 {
		return 0, false
	}
	return (a.Distance / *a.AverageSpeed) / *a.AverageHeartrate, true
}

type Trend int

const (
	TrendDown Trend = iota
	TrendUp
)

func (t Trend) Arrow() string {
	if t == TrendUp {
		return "↑"
	}
	return "↓"
}

type DashboardSummary struct {
	FarthestKm    float64
	RecentKm      float64
	DistanceTrend Trend
	BestPace      Pace
	RecentPace    Pace
	PaceTrend     Trend
	ThisMonth     int
	LastMonth     int
	CountTrend    Trend
}

func (c *FeedController) DashboardSummary(now time.Time) DashboardSummary {
	farthest, recent := c.FarthestDistance(now)
	best, recentBest := c.BestPace(now)
	thisMonth, lastMonth := c.MonthlyCount(now)
	summary := DashboardSummary{
		FarthestKm: farthest,
		RecentKm:   recent,
		BestPace:   best,
		RecentPace: recentBest,
		ThisMonth:  thisMonth,
		LastMonth:  lastMonth,
	}
	if recent > 0 {
		summary.DistanceTrend = TrendUp
	}
	// The recent runs are a subset of all runs, so the recent best can only
	// tie the overall best. A tie means the best pace was set in the last 30 days.
	if recentBest.Valid() && best.Valid() && recentBest <= best {
		summary.PaceTrend = TrendUp
	}
	if thisMonth > lastMonth {
		summary.CountTrend = TrendUp
	}
	return summary
}
