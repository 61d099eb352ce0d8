package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pacemates/paceline/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultBaseURL is the Strava API host, configurable for tests.
	DefaultBaseURL = "https://www.strava.com"

	activitiesPerPage = 100

	oneHour            = 60 * 60
	athleteCacheExpire = oneHour * 1
	athleteCacheSize   = 1024 * 1024
)

// UnexpectedStatusError is returned for non-2xx responses which are not
// auth failures (those map to ErrUnauthorized).
type UnexpectedStatusError struct {
	StatusCode int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("strava: unexpected response status %d", e.StatusCode)
}

// DateMode picks which start timestamp of an activity is used when
// filtering a day window.
type DateMode string

const (
	// DateModeLocal filters by the athlete's local start date (default).
	DateModeLocal DateMode = "local"
	// DateModeUTC filters by the UTC start date.
	DateModeUTC DateMode = "utc"
)

func ParseDateMode(s string) DateMode {
	if DateMode(s) == DateModeUTC {
		return DateModeUTC
	}
	return DateModeLocal
}

// Client is a bearer-token REST client for the Strava v3 API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	athleteCache *freecache.Cache
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:      baseURL,
		httpClient:   httpClient,
		athleteCache: freecache.NewCache(athleteCacheSize),
	}
}

// ListActivities returns all activities within (after, before), paginating
// until a page comes back shorter than the page size. An empty result is a
// valid, non-error outcome.
func (c *Client) ListActivities(ctx context.Context, accessToken string, after, before time.Time) (activities []SummaryActivity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "stravaClient.listActivities")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("after", strconv.FormatInt(after.Unix(), 10))
		query.Set("before", strconv.FormatInt(before.Unix(), 10))
		query.Set("per_page", strconv.Itoa(activitiesPerPage))
		query.Set("page", strconv.Itoa(page))

		reqURL := fmt.Sprintf("%s/api/v3/athlete/activities?%s", c.baseURL, query.Encode())
		var pageActivities []SummaryActivity
		if err = c.getJSON(ctx, accessToken, reqURL, &pageActivities); err != nil {
			return nil, err
		}

		activities = append(activities, pageActivities...)
		if len(pageActivities) < activitiesPerPage {
			break
		}
	}

	span.SetAttributes(attribute.Int("activities.count", len(activities)))
	log.Debugf("strava: fetched %d activities between %s and %s", len(activities), after, before)

	return activities, nil
}

// FetchForDateRange lists the activities of the inclusive calendar day range
// [start, end] and filters out everything whose start date falls outside it.
// The Strava after/before window is epoch based, so activities recorded in a
// different timezone can leak in; the exact-date filter below drops those.
func (c *Client) FetchForDateRange(ctx context.Context, accessToken string, start, end time.Time, mode DateMode) ([]SummaryActivity, error) {
	after := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	before := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, end.Location())

	activities, err := c.ListActivities(ctx, accessToken, after, before)
	if err != nil {
		return nil, err
	}

	startDay := start.Format("2006-01-02")
	endDay := end.Format("2006-01-02")

	filtered := make([]SummaryActivity, 0, len(activities))
	for _, act := range activities {
		day := act.StartDateLocal.Format("2006-01-02")
		if mode == DateModeUTC {
			day = act.StartDate.UTC().Format("2006-01-02")
		}
		if day < startDay || day > endDay {
			continue
		}
		filtered = append(filtered, act)
	}

	return filtered, nil
}

// GetActivity fetches one activity with all efforts and standard splits.
func (c *Client) GetActivity(ctx context.Context, accessToken string, activityID int64) (detail *DetailedActivity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "stravaClient.getActivity")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("activity.id", activityID))

	reqURL := fmt.Sprintf("%s/api/v3/activities/%d?include_all_efforts=true", c.baseURL, activityID)
	detail = &DetailedActivity{}
	if err = c.getJSON(ctx, accessToken, reqURL, detail); err != nil {
		return nil, err
	}
	return detail, nil
}

// GetAthlete fetches the token owner's profile. Responses are cached for an
// hour, keyed by access token.
func (c *Client) GetAthlete(ctx context.Context, accessToken string) (athlete *Athlete, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "stravaClient.getAthlete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	// must initialize it, otherwise json.Unmarshal(...) below fails
	athlete = &Athlete{}

	cacheKey := []byte("athlete::" + accessToken)
	if athleteBytes, cacheErr := c.athleteCache.Get(cacheKey); cacheErr == nil {
		if err := json.Unmarshal(athleteBytes, athlete); err == nil {
			log.Tracef("strava: athlete profile served from cache")
			return athlete, nil
		} else {
			log.Errorf("strava: failed to unmarshal cached athlete profile: %s", err)
		}
	}

	reqURL := fmt.Sprintf("%s/api/v3/athlete", c.baseURL)
	respBytes, err := c.get(ctx, accessToken, reqURL)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(respBytes, athlete); err != nil {
		return nil, fmt.Errorf("unmarshal athlete response: %w", err)
	}

	if err := c.athleteCache.Set(cacheKey, respBytes, athleteCacheExpire); err != nil {
		log.Errorf("strava: failed to cache athlete profile: %s", err)
	}

	return athlete, nil
}

func (c *Client) getJSON(ctx context.Context, accessToken, reqURL string, dest interface{}) error {
	respBytes, err := c.get(ctx, accessToken, reqURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(respBytes, dest); err != nil {
		return fmt.Errorf("unmarshal strava response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, accessToken, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &UnexpectedStatusError{StatusCode: resp.StatusCode}
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read strava response bytes: %w", err)
	}
	return respBytes, nil
}
