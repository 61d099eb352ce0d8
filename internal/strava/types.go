package strava

import "time"

// SummaryActivity is one item of the /api/v3/athlete/activities response.
// https://developers.strava.com/docs/reference/#api-models-SummaryActivity
type SummaryActivity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	SportType          string    `json:"sport_type"`
	StartDate          time.Time `json:"start_date"`
	StartDateLocal     time.Time `json:"start_date_local"`
	Distance           float64   `json:"distance"`
	MovingTime         int64     `json:"moving_time"`
	ElapsedTime        int64     `json:"elapsed_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	AverageHeartrate   float64   `json:"average_heartrate"`
	AverageSpeed       float64   `json:"average_speed"`
	AverageCadence     float64   `json:"average_cadence"`
}

// DetailedActivity is the /api/v3/activities/{id} response.
type DetailedActivity struct {
	SummaryActivity
	Calories       float64         `json:"calories"`
	SplitsStandard []SplitStandard `json:"splits_standard"`
}

// SplitStandard is one mile split of a detailed activity.
type SplitStandard struct {
	Split               int     `json:"split"`
	Distance            float64 `json:"distance"`
	ElapsedTime         int64   `json:"elapsed_time"`
	MovingTime          int64   `json:"moving_time"`
	AverageSpeed        float64 `json:"average_speed"`
	ElevationDifference float64 `json:"elevation_difference"`
	AverageHeartrate    float64 `json:"average_heartrate"`
}

// Athlete is the /api/v3/athlete response (the fields we care about).
type Athlete struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

func (a Athlete) DisplayName() string {
	switch {
	case a.Firstname != "" && a.Lastname != "":
		return a.Firstname + " " + a.Lastname
	case a.Firstname != "":
		return a.Firstname
	default:
		return a.Username
	}
}
