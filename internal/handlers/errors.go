// Package handlers wires the HTTP surface: auth flow, activity retrieval,
// FIT uploads, analysis and the summary endpoints.
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/pacemates/paceline/internal/analysis"
	"github.com/pacemates/paceline/internal/athletes"
	"github.com/pacemates/paceline/internal/fitfile"
	"github.com/pacemates/paceline/internal/strava"
	"github.com/pacemates/paceline/pkg"

	log "github.com/sirupsen/logrus"
)

// ValidationError - missing or invalid request input, rendered inline as 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// respondError maps the domain error kinds onto HTTP statuses at the
// request boundary. Everything becomes a JSON message - nothing crashes
// the process, nothing is swallowed.
func respondError(w http.ResponseWriter, err error) {
	var (
		validationErr *ValidationError
		parseErr      *fitfile.ParseError
		statusErr     *strava.UnexpectedStatusError
		analysisErr   *analysis.RequestError
	)

	switch {
	case errors.As(err, &validationErr):
		writeErrorJSON(w, validationErr.Message, http.StatusBadRequest)
	case errors.As(err, &parseErr):
		writeErrorJSON(w, parseErr.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, strava.ErrUnauthorized):
		writeErrorJSON(w, "strava authorization expired or revoked, re-authenticate via /auth/login", http.StatusUnauthorized)
	case errors.Is(err, athletes.ErrAthleteNotFound):
		writeErrorJSON(w, "athlete not registered, authenticate via /auth/login", http.StatusUnauthorized)
	case errors.Is(err, analysis.ErrEmptyAnalysis):
		writeErrorJSON(w, "analysis failed, try resubmitting", http.StatusBadGateway)
	case errors.As(err, &analysisErr):
		log.Errorf("analysis request failed: %s", err)
		writeErrorJSON(w, "analysis service failure, try again later", http.StatusBadGateway)
	case errors.As(err, &statusErr):
		log.Errorf("strava request failed: %s", err)
		writeErrorJSON(w, "strava request failed, try again later", http.StatusBadGateway)
	default:
		log.Errorf("request failed: %s", err)
		writeErrorJSON(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeErrorJSON(w http.ResponseWriter, message string, statusCode int) {
	pkg.WriteResponse(w, pkg.ContentType.JSON, fmt.Sprintf(`{"error":%q}`, message), statusCode)
}
