// Package activity holds the normalized workout shape every data source
// (Strava API, FIT file upload) is mapped into, so downstream consumers
// cannot tell where an activity came from.
package activity

import (
	"math"
	"time"

	"github.com/pacemates/paceline/internal/strava"
)

const MetersPerMile = 1609.34

// Activity origin markers.
const (
	SourceStrava    = "strava"
	SourceFitUpload = "fit-upload"
)

// Activity is one recorded workout. Stored fields keep the raw units of the
// Strava API (meters, seconds, m/s); display conversions are methods so the
// two sources can never drift apart.
type Activity struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	Type                string    `json:"type"`
	StartDate           time.Time `json:"start_date"`
	StartDateLocal      time.Time `json:"start_date_local"`
	DistanceMeters      float64   `json:"distance"`
	MovingTimeSeconds   int64     `json:"moving_time"`
	ElapsedTimeSeconds  int64     `json:"elapsed_time"`
	ElevationGainMeters float64   `json:"total_elevation_gain"`
	AverageHeartRate    float64   `json:"average_heartrate,omitempty"`
	AverageSpeed        float64   `json:"average_speed"` // m/s
	AverageCadence      float64   `json:"average_cadence,omitempty"`
	Calories            float64   `json:"calories,omitempty"`
	Source              string    `json:"source"`
	Splits              []Split   `json:"splits,omitempty"`
}

// Split is a chronological sub-segment of an activity. Number is 1-based.
type Split struct {
	Number              int     `json:"split"`
	DistanceMeters      float64 `json:"distance"`
	ElapsedTimeSeconds  int64   `json:"elapsed_time"`
	MovingTimeSeconds   int64   `json:"moving_time"`
	AverageSpeed        float64 `json:"average_speed"` // m/s
	ElevationDifference float64 `json:"elevation_difference"`
	AverageHeartRate    float64 `json:"average_heartrate,omitempty"`
}

func (a *Activity) DistanceMiles() float64 {
	return round2(a.DistanceMeters / MetersPerMile)
}

// PaceMinPerMile returns the average pace in minutes per mile, 0 for
// distance-less activities.
func (a *Activity) PaceMinPerMile() float64 {
	miles := a.DistanceMeters / MetersPerMile
	if miles <= 0 {
		return 0
	}
	return round2(float64(a.MovingTimeSeconds) / 60 / miles)
}

func (s Split) DistanceMiles() float64 {
	return round2(s.DistanceMeters / MetersPerMile)
}

func (s Split) PaceMinPerMile() float64 {
	miles := s.DistanceMeters / MetersPerMile
	if miles <= 0 {
		return 0
	}
	return round2(float64(s.MovingTimeSeconds) / 60 / miles)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FromStravaSummary maps a list-endpoint activity into the normalized shape.
func FromStravaSummary(act strava.SummaryActivity) Activity {
	return Activity{
		ID:                  act.ID,
		Name:                act.Name,
		Type:                act.Type,
		StartDate:           act.StartDate,
		StartDateLocal:      act.StartDateLocal,
		DistanceMeters:      act.Distance,
		MovingTimeSeconds:   act.MovingTime,
		ElapsedTimeSeconds:  act.ElapsedTime,
		ElevationGainMeters: act.TotalElevationGain,
		AverageHeartRate:    act.AverageHeartrate,
		AverageSpeed:        act.AverageSpeed,
		AverageCadence:      act.AverageCadence,
		Source:              SourceStrava,
	}
}

// FromStravaDetail maps a detail-endpoint activity, splits included.
func FromStravaDetail(detail *strava.DetailedActivity) Activity {
	act := FromStravaSummary(detail.SummaryActivity)
	act.Calories = detail.Calories
	for _, split := range detail.SplitsStandard {
		act.Splits = append(act.Splits, Split{
			Number:              split.Split,
			DistanceMeters:      split.Distance,
			ElapsedTimeSeconds:  split.ElapsedTime,
			MovingTimeSeconds:   split.MovingTime,
			AverageSpeed:        split.AverageSpeed,
			ElevationDifference: split.ElevationDifference,
			AverageHeartRate:    split.AverageHeartrate,
		})
	}
	return act
}

// FromStravaSummaries maps a whole list, keeping the service response order.
func FromStravaSummaries(activities []strava.SummaryActivity) []Activity {
	normalized := make([]Activity, 0, len(activities))
	for _, act := range activities {
		normalized = append(normalized, FromStravaSummary(act))
	}
	return normalized
}
