package strava_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pacemates/paceline/internal/strava"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_FetchForDateRange(t *testing.T) {
	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	activities := []strava.SummaryActivity{
		{
			ID:             1,
			Name:           "Morning Run",
			Type:           "Run",
			StartDate:      day.Add(7 * time.Hour),
			StartDateLocal: day.Add(9 * time.Hour),
			Distance:       8046.7,
			MovingTime:     2400,
		},
		{
			// recorded in a timezone far enough that the epoch window
			// caught it, but the local date is the day before
			ID:             2,
			Name:           "Late Night Ride",
			Type:           "Ride",
			StartDate:      day.Add(2 * time.Hour),
			StartDateLocal: day.Add(-3 * time.Hour),
			Distance:       30000,
		},
	}

	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/athlete/activities", r.URL.Path)
		assert.Equal(t, "Bearer test-access-token", r.Header.Get("Authorization"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") != "1" {
			_, _ = w.Write([]byte("[]"))
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(activities))
	}))
	defer testServer.Close()

	client := strava.NewClient(testServer.URL, testServer.Client())

	got, err := client.FetchForDateRange(
		context.Background(), "test-access-token", day, day, strava.DateModeLocal,
	)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)

	// in utc mode both activities started on the requested day
	got, err = client.FetchForDateRange(
		context.Background(), "test-access-token", day, day, strava.DateModeUTC,
	)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestClient_ListActivities_Pagination(t *testing.T) {
	pagesServed := 0
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		page := r.URL.Query().Get("page")

		var activities []strava.SummaryActivity
		if page == "1" {
			// a full page forces the client to ask for the next one
			for i := 0; i < 100; i++ {
				activities = append(activities, strava.SummaryActivity{ID: int64(i + 1), Type: "Run"})
			}
		} else {
			activities = []strava.SummaryActivity{{ID: 101, Type: "Run"}}
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(activities))
	}))
	defer testServer.Close()

	client := strava.NewClient(testServer.URL, testServer.Client())

	activities, err := client.ListActivities(
		context.Background(), "t", time.Now().Add(-time.Hour), time.Now(),
	)
	require.NoError(t, err)
	assert.Len(t, activities, 101)
	assert.Equal(t, 2, pagesServed)
}

func TestClient_FetchForDateRange_EmptyDay(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}))
	defer testServer.Close()

	client := strava.NewClient(testServer.URL, testServer.Client())

	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	activities, err := client.FetchForDateRange(context.Background(), "t", day, day, strava.DateModeLocal)
	require.NoError(t, err)
	assert.Empty(t, activities)
}

func TestClient_Unauthorized(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"Authorization Error"}`, http.StatusUnauthorized)
	}))
	defer testServer.Close()

	client := strava.NewClient(testServer.URL, testServer.Client())

	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := client.FetchForDateRange(context.Background(), "expired", day, day, strava.DateModeLocal)
	require.ErrorIs(t, err, strava.ErrUnauthorized)

	_, err = client.GetActivity(context.Background(), "expired", 42)
	require.ErrorIs(t, err, strava.ErrUnauthorized)
}

func TestClient_UnexpectedStatus(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer testServer.Close()

	client := strava.NewClient(testServer.URL, testServer.Client())

	_, err := client.GetActivity(context.Background(), "t", 42)
	var statusErr *strava.UnexpectedStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}

func TestClient_GetActivity(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/activities/1234", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("include_all_efforts"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{
			"id": 1234,
			"name": "Tempo Run",
			"type": "Run",
			"distance": 10000,
			"moving_time": 3000,
			"calories": 650,
			"splits_standard": [
				{"split": 1, "distance": 1609.34, "moving_time": 480, "average_heartrate": 152},
				{"split": 2, "distance": 1609.34, "moving_time": 470, "average_heartrate": 158}
			]
		}`)
	}))
	defer testServer.Close()

	client := strava.NewClient(testServer.URL, testServer.Client())

	detail, err := client.GetActivity(context.Background(), "t", 1234)
	require.NoError(t, err)
	assert.Equal(t, "Tempo Run", detail.Name)
	assert.Equal(t, float64(650), detail.Calories)
	require.Len(t, detail.SplitsStandard, 2)
	assert.Equal(t, 1, detail.SplitsStandard[0].Split)
	assert.Equal(t, float64(158), detail.SplitsStandard[1].AverageHeartrate)
}

func TestClient_GetAthlete_Cached(t *testing.T) {
	apiCallsCount := 0
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCallsCount++
		require.Equal(t, "/api/v3/athlete", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"id": 7, "firstname": "Mira", "lastname": "K"}`)
	}))
	defer testServer.Close()

	client := strava.NewClient(testServer.URL, testServer.Client())

	athlete, err := client.GetAthlete(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, int64(7), athlete.ID)

	// second call for the same token is served from the cache
	athlete, err = client.GetAthlete(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "Mira K", athlete.DisplayName())
	assert.Equal(t, 1, apiCallsCount)
}
