package athletes

import "time"

// TokenRecord holds one athlete's Strava OAuth credentials. ExpiresAt is
// epoch seconds, the way Strava reports it.
type TokenRecord struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Expired reports whether the access token must be refreshed before use.
// The skew treats tokens about to expire as already expired, so an outbound
// call can't start with a token that dies mid-flight.
func (tr TokenRecord) Expired(now time.Time, skew time.Duration) bool {
	return now.Add(skew).Unix() >= tr.ExpiresAt
}

// Athlete is one registered member of the group: identity, credentials and
// the yearly aggregate stats kept in the summary table.
type Athlete struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Token TokenRecord `json:"token"`
	Stats Stats       `json:"stats,omitempty"`
}

// Stats are the per-athlete yearly aggregates, recomputed externally and
// read back for the leaderboard and weekly volume reports.
type Stats struct {
	Name               string    `json:"name"`
	TotalDistanceMiles float64   `json:"total_distance_miles"`
	RunCount           int       `json:"run_count"`
	WeeklyVolumes      []float64 `json:"weekly_volumes,omitempty"`
	WeekLabels         []string  `json:"week_labels,omitempty"`
}

// CurrentWeekMiles is the latest weekly volume, 0 when none are recorded.
func (s Stats) CurrentWeekMiles() float64 {
	if len(s.WeeklyVolumes) == 0 {
		return 0
	}
	return s.WeeklyVolumes[len(s.WeeklyVolumes)-1]
}
