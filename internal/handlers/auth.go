package handlers

import (
	"net/http"

	"github.com/pacemates/paceline/internal/athletes"
	"github.com/pacemates/paceline/internal/strava"
	"github.com/pacemates/paceline/internal/telemetry/tracing"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// AuthHandler runs the Strava OAuth dance and registers the athlete's
// credentials in the store.
type AuthHandler struct {
	auth               *strava.Authenticator
	store              athletes.Store
	randStateGenerator func() string
	state              string
}

func NewAuthHandler(
	auth *strava.Authenticator,
	store athletes.Store,
	randStateGenerator func() string,
) *AuthHandler {
	return &AuthHandler{
		auth:               auth,
		store:              store,
		randStateGenerator: randStateGenerator,
	}
}

func (h *AuthHandler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/auth/login", h.HandleLogin).Methods("GET").Name("auth-login")
	router.HandleFunc("/auth/callback", h.HandleCallback).Methods("GET").Name("auth-callback")
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "authHandler.login")
	defer span.End()

	h.state = h.randStateGenerator()
	redirectURL := h.auth.AuthCodeURL(h.state)
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "authHandler.callback")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tok, err := h.auth.Token(ctx, h.state, r)
	if err != nil {
		log.Errorf("auth callback, get token: %s", err)
		writeErrorJSON(w, "failed to get strava token", http.StatusForbidden)
		return
	}

	athleteID, athleteName := strava.AthleteFromToken(tok)
	if athleteID == 0 {
		log.Errorf("auth callback: token response carries no athlete summary")
		writeErrorJSON(w, "strava token response is missing the athlete", http.StatusBadGateway)
		return
	}

	record := &athletes.Athlete{
		ID:   athleteID,
		Name: athleteName,
		Token: athletes.TokenRecord{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			ExpiresAt:    tok.Expiry.Unix(),
		},
	}
	if existing, getErr := h.store.Get(ctx, athleteID); getErr == nil {
		record.Stats = existing.Stats
		if record.Name == "" {
			record.Name = existing.Name
		}
	}

	if err = h.store.Save(ctx, record); err != nil {
		log.Errorf("auth callback, save athlete %d: %s", athleteID, err)
		respondError(w, err)
		return
	}

	log.Infof("athlete %d (%s) authenticated", athleteID, athleteName)
	http.Redirect(w, r, "/", http.StatusFound)
}
