package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pacemates/paceline/internal/activity"
	"github.com/pacemates/paceline/internal/strava"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveActivitiesList(t *testing.T, deps *testDeps, activities []strava.SummaryActivity) {
	t.Helper()
	deps.stravaMux.HandleFunc("/api/v3/athlete/activities", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer valid-access-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(activities))
	})
}

func TestHandleList(t *testing.T) {
	deps := setupRouterForTests(t)
	registerTestAthlete(t, deps.store, 7)

	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	serveActivitiesList(t, deps, []strava.SummaryActivity{
		{
			ID:             1,
			Name:           "Morning Run",
			Type:           "Run",
			StartDate:      day.Add(7 * time.Hour),
			StartDateLocal: day.Add(9 * time.Hour),
			Distance:       8046.7,
			MovingTime:     2400,
		},
	})

	req := httptest.NewRequest("GET", "/activities?date=2025-06-15", nil)
	rec := httptest.NewRecorder()
	deps.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Activities []activity.Activity `json:"activities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Activities, 1)
	assert.Equal(t, "Morning Run", resp.Activities[0].Name)
	assert.Equal(t, activity.SourceStrava, resp.Activities[0].Source)
}

func TestHandleList_EmptyDayIsOK(t *testing.T) {
	deps := setupRouterForTests(t)
	registerTestAthlete(t, deps.store, 7)
	serveActivitiesList(t, deps, nil)

	req := httptest.NewRequest("GET", "/activities?date=2025-06-15", nil)
	rec := httptest.NewRecorder()
	deps.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"activities":[]`)
}

func TestHandleList_Validation(t *testing.T) {
	deps := setupRouterForTests(t)
	registerTestAthlete(t, deps.store, 7)

	for caseName, tc := range map[string]struct {
		url      string
		expected string
	}{
		"missing date": {
			url:      "/activities",
			expected: "missing date parameter",
		},
		"bad date": {
			url:      "/activities?date=15-06-2025",
			expected: "invalid date",
		},
		"bad end": {
			url:      "/activities?date=2025-06-15&end=nope",
			expected: "invalid end date",
		},
		"end before start": {
			url:      "/activities?date=2025-06-15&end=2025-06-10",
			expected: "end date is before start date",
		},
		"bad athlete id": {
			url:      "/activities?date=2025-06-15&athlete=abc",
			expected: "invalid athlete id",
		},
	} {
		t.Run(caseName, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.url, nil)
			rec := httptest.NewRecorder()
			deps.router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.expected)
		})
	}
}

func TestHandleList_UnknownAthlete(t *testing.T) {
	deps := setupRouterForTests(t)

	// no athletes registered at all
	req := httptest.NewRequest("GET", "/activities?date=2025-06-15", nil)
	rec := httptest.NewRecorder()
	deps.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "/auth/login")
}

func TestHandleList_StravaUnauthorized(t *testing.T) {
	deps := setupRouterForTests(t)
	registerTestAthlete(t, deps.store, 7)

	deps.stravaMux.HandleFunc("/api/v3/athlete/activities", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"Authorization Error"}`, http.StatusUnauthorized)
	})

	req := httptest.NewRequest("GET", "/activities?date=2025-06-15", nil)
	rec := httptest.NewRecorder()
	deps.router.ServeHTTP(rec, req)

	// expired/revoked strava access surfaces as a re-auth prompt
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "re-authenticate")
}

func TestHandleGet(t *testing.T) {
	deps := setupRouterForTests(t)
	registerTestAthlete(t, deps.store, 7)

	deps.stravaMux.HandleFunc("/api/v3/activities/1234", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{
			"id": 1234, "name": "Tempo Run", "type": "Run",
			"distance": 10000, "moving_time": 3000, "calories": 650,
			"splits_standard": [{"split": 1, "distance": 1609.34, "moving_time": 480}]
		}`)
	})

	req := httptest.NewRequest("GET", "/activities/1234", nil)
	rec := httptest.NewRecorder()
	deps.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var act activity.Activity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &act))
	assert.Equal(t, "Tempo Run", act.Name)
	assert.Equal(t, float64(650), act.Calories)
	require.Len(t, act.Splits, 1)
}

func TestHandleAnalyze(t *testing.T) {
	deps := setupRouterForTests(t)
	registerTestAthlete(t, deps.store, 7)

	deps.stravaMux.HandleFunc("/api/v3/activities/1234", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"id": 1234, "type": "Run", "distance": 8046.7, "moving_time": 2400}`)
	})

	req := httptest.NewRequest(
		"POST", "/activities/1234/analyze",
		strings.NewReader(`{"intent":"pacing"}`),
	)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	deps.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ActivityID int64  `json:"activity_id"`
		Analysis   string `json:"analysis"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1234), resp.ActivityID)
	assert.Equal(t, "Nice steady effort.", resp.Analysis)
}

func TestHandleAnalyze_MalformedBody(t *testing.T) {
	deps := setupRouterForTests(t)
	registerTestAthlete(t, deps.store, 7)

	req := httptest.NewRequest(
		"POST", "/activities/1234/analyze",
		strings.NewReader(`{"intent": not-json`),
	)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	deps.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid analyze request body")
}

func TestHandleAnalyze_UpstreamFailure(t *testing.T) {
	deps := setupRouterForTests(t)
	registerTestAthlete(t, deps.store, 7)

	deps.stravaMux.HandleFunc("/api/v3/activities/1234", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"id": 1234, "type": "Run", "distance": 8046.7, "moving_time": 2400}`)
	})
	deps.openaiHandler = func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}

	req := httptest.NewRequest("POST", "/activities/1234/analyze", nil)
	rec := httptest.NewRecorder()
	deps.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "analysis service failure")
}

func TestHandleWeeklySummary(t *testing.T) {
	deps := setupRouterForTests(t)
	registerTestAthlete(t, deps.store, 7)

	day := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC) // a Monday
	serveActivitiesList(t, deps, []strava.SummaryActivity{
		{ID: 1, Type: "Run", StartDate: day.Add(8 * time.Hour), StartDateLocal: day.Add(10 * time.Hour), MovingTime: 1800},
		{ID: 2, Type: "Ride", StartDate: day.Add(30 * time.Hour), StartDateLocal: day.Add(32 * time.Hour), MovingTime: 3600},
	})

	req := httptest.NewRequest("GET", "/summary/weekly?date=2025-06-09&end=2025-06-15", nil)
	rec := httptest.NewRecorder()
	deps.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var summary activity.WeeklySummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, []string{"Ride", "Run"}, summary.ActivityTypes)
	require.Len(t, summary.Rows, 1)
	assert.Equal(t, "2025-06-09", summary.Rows[0].Week)
	assert.Equal(t, "01:30:00", summary.Rows[0].Total)
}

func TestHandleStats(t *testing.T) {
	deps := setupRouterForTests(t)
	registerTestAthlete(t, deps.store, 7)

	req := httptest.NewRequest("GET", "/athletes/stats", nil)
	rec := httptest.NewRecorder()
	deps.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		YearlyMessage string `json:"yearly_message"`
		WeeklyMessage string `json:"weekly_message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.YearlyMessage, "YEARLY RUNNING SUMMARY")
	assert.Contains(t, resp.WeeklyMessage, "WEEKLY RUNNING LEADERBOARD")
}
