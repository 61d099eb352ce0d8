package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pacemates/paceline/internal/activity"
	"github.com/pacemates/paceline/internal/analysis"
	"github.com/pacemates/paceline/internal/athletes"
	"github.com/pacemates/paceline/internal/strava"
	"github.com/pacemates/paceline/internal/telemetry/metrics"
	"github.com/pacemates/paceline/internal/telemetry/tracing"
	"github.com/pacemates/paceline/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// ActivitiesHandler serves activity retrieval and analysis: the token is
// refreshed as needed through the Keeper before every Strava call.
type ActivitiesHandler struct {
	keeper         *athletes.Keeper
	store          athletes.Store
	client         *strava.Client
	analyzer       *analysis.Analyzer
	dateMode       strava.DateMode
	metricsManager *metrics.Manager
}

func NewActivitiesHandler(
	keeper *athletes.Keeper,
	store athletes.Store,
	client *strava.Client,
	analyzer *analysis.Analyzer,
	dateMode strava.DateMode,
	metricsManager *metrics.Manager,
) *ActivitiesHandler {
	return &ActivitiesHandler{
		keeper:         keeper,
		store:          store,
		client:         client,
		analyzer:       analyzer,
		dateMode:       dateMode,
		metricsManager: metricsManager,
	}
}

func (h *ActivitiesHandler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/activities", h.HandleList).
		Methods("GET", "OPTIONS").Name("list-activities")
	router.HandleFunc("/activities/{id}", h.HandleGet).
		Methods("GET", "OPTIONS").Name("get-activity")
	router.HandleFunc("/activities/{id}/analyze", h.HandleAnalyze).
		Methods("POST", "OPTIONS").Name("analyze-activity")
	router.HandleFunc("/summary/weekly", h.HandleWeeklySummary).
		Methods("GET", "OPTIONS").Name("weekly-summary")
	router.HandleFunc("/athletes/stats", h.HandleStats).
		Methods("GET", "OPTIONS").Name("athletes-stats")
}

type analyzeRequest struct {
	Intent string `json:"intent"`
}

type listActivitiesResponse struct {
	Activities []activity.Activity `json:"activities"`
}

type analysisResponse struct {
	ActivityID int64  `json:"activity_id"`
	Analysis   string `json:"analysis"`
}

type statsResponse struct {
	Stats         []athletes.Stats `json:"stats"`
	YearlyMessage string           `json:"yearly_message"`
	WeeklyMessage string           `json:"weekly_message"`
}

func (h *ActivitiesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "activitiesHandler.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	normalized, err := h.fetchForRequest(ctx, r)
	if err != nil {
		respondError(w, err)
		return
	}

	span.SetAttributes(attribute.Int("activities.count", len(normalized)))
	writeJSON(w, listActivitiesResponse{Activities: normalized})
}

func (h *ActivitiesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "activitiesHandler.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	activityID, err := activityIDFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	detail, err := h.fetchDetail(ctx, r, activityID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, detail)
}

func (h *ActivitiesHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "activitiesHandler.analyze")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	activityID, err := activityIDFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var analyzeReq analyzeRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&analyzeReq); decodeErr != nil {
		// an empty body is fine, the default intent kicks in
		if !errors.Is(decodeErr, io.EOF) {
			err = newValidationError("invalid analyze request body")
			respondError(w, err)
			return
		}
	}

	detail, err := h.fetchDetail(ctx, r, activityID)
	if err != nil {
		respondError(w, err)
		return
	}

	h.metricsManager.CounterAnalysisRequests.Inc()
	analysisText, err := h.analyzer.Analyze(ctx, detail, analyzeReq.Intent)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, analysisResponse{
		ActivityID: activityID,
		Analysis:   analysisText,
	})
}

func (h *ActivitiesHandler) HandleWeeklySummary(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "activitiesHandler.weeklySummary")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	normalized, err := h.fetchForRequest(ctx, r)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, activity.SummarizeWeekly(normalized))
}

func (h *ActivitiesHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "activitiesHandler.stats")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	stats, err := h.store.ListStats(ctx)
	if err != nil {
		respondError(w, fmt.Errorf("list athlete stats: %w", err))
		return
	}

	writeJSON(w, statsResponse{
		Stats:         stats,
		YearlyMessage: athletes.YearlyStatsMessage(stats, time.Now()),
		WeeklyMessage: athletes.WeeklyLeaderboardMessage(stats),
	})
}

// fetchForRequest resolves the athlete, refreshes the token when expired and
// fetches + normalizes the activities of the requested day or range.
func (h *ActivitiesHandler) fetchForRequest(ctx context.Context, r *http.Request) ([]activity.Activity, error) {
	start, end, err := dateRangeFromRequest(r)
	if err != nil {
		return nil, err
	}

	accessToken, err := h.accessTokenForRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	h.metricsManager.CounterActivityFetches.Inc()
	stravaActivities, err := h.client.FetchForDateRange(ctx, accessToken, start, end, h.dateMode)
	if err != nil {
		return nil, err
	}

	// an empty day is a valid result, not an error
	return activity.FromStravaSummaries(stravaActivities), nil
}

func (h *ActivitiesHandler) fetchDetail(ctx context.Context, r *http.Request, activityID int64) (*activity.Activity, error) {
	accessToken, err := h.accessTokenForRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	detail, err := h.client.GetActivity(ctx, accessToken, activityID)
	if err != nil {
		return nil, err
	}

	normalized := activity.FromStravaDetail(detail)
	return &normalized, nil
}

func (h *ActivitiesHandler) accessTokenForRequest(ctx context.Context, r *http.Request) (string, error) {
	athleteID, err := h.resolveAthleteID(ctx, r)
	if err != nil {
		return "", err
	}
	return h.keeper.FreshAccessToken(ctx, athleteID)
}

// resolveAthleteID takes the athlete query param; without one, a
// single-athlete store resolves implicitly.
func (h *ActivitiesHandler) resolveAthleteID(ctx context.Context, r *http.Request) (int64, error) {
	if athleteParam := r.URL.Query().Get("athlete"); athleteParam != "" {
		athleteID, err := strconv.ParseInt(athleteParam, 10, 64)
		if err != nil {
			return 0, newValidationError("invalid athlete id: %s", athleteParam)
		}
		return athleteID, nil
	}

	registered, err := h.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list athletes: %w", err)
	}
	switch len(registered) {
	case 0:
		return 0, athletes.ErrAthleteNotFound
	case 1:
		return registered[0].ID, nil
	default:
		return 0, newValidationError("multiple athletes registered, pass ?athlete=<id>")
	}
}

func activityIDFromRequest(r *http.Request) (int64, error) {
	idParam := mux.Vars(r)["id"]
	activityID, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		return 0, newValidationError("invalid activity id: %s", idParam)
	}
	return activityID, nil
}

// dateRangeFromRequest parses date (required) and end (optional, defaults
// to date) as YYYY-MM-DD calendar days.
func dateRangeFromRequest(r *http.Request) (start, end time.Time, err error) {
	dateParam := r.URL.Query().Get("date")
	if dateParam == "" {
		return start, end, newValidationError("missing date parameter (YYYY-MM-DD)")
	}
	start, err = time.Parse("2006-01-02", dateParam)
	if err != nil {
		return start, end, newValidationError("invalid date: %s", dateParam)
	}

	end = start
	if endParam := r.URL.Query().Get("end"); endParam != "" {
		end, err = time.Parse("2006-01-02", endParam)
		if err != nil {
			return start, end, newValidationError("invalid end date: %s", endParam)
		}
	}
	if end.Before(start) {
		return start, end, newValidationError("end date is before start date")
	}
	return start, end, nil
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("marshal response: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, payloadBytes)
}
