package handlers

import (
	"io"
	"net/http"

	"github.com/pacemates/paceline/internal/activity"
	"github.com/pacemates/paceline/internal/analysis"
	"github.com/pacemates/paceline/internal/fitfile"
	"github.com/pacemates/paceline/internal/telemetry/metrics"
	"github.com/pacemates/paceline/internal/telemetry/tracing"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// UploadHandler accepts Garmin FIT files and returns the normalized
// activity, optionally with an analysis attached.
type UploadHandler struct {
	normalizer     *fitfile.Normalizer
	analyzer       *analysis.Analyzer
	maxUploadSize  int64
	metricsManager *metrics.Manager
}

func NewUploadHandler(
	normalizer *fitfile.Normalizer,
	analyzer *analysis.Analyzer,
	maxUploadSize int64,
	metricsManager *metrics.Manager,
) *UploadHandler {
	return &UploadHandler{
		normalizer:     normalizer,
		analyzer:       analyzer,
		maxUploadSize:  maxUploadSize,
		metricsManager: metricsManager,
	}
}

func (h *UploadHandler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/upload", h.HandleUpload).
		Methods("POST", "OPTIONS").Name("upload-fit")
}

type uploadResponse struct {
	Activity activity.Activity `json:"activity"`
	Analysis string            `json:"analysis,omitempty"`
}

func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "uploadHandler.upload")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	// reject oversized bodies before buffering the file
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+1024)
	if parseErr := r.ParseMultipartForm(h.maxUploadSize); parseErr != nil {
		err = newValidationError("failed to parse upload form: %s", parseErr)
		respondError(w, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		err = newValidationError("missing file field")
		respondError(w, err)
		return
	}
	defer file.Close()

	span.SetAttributes(attribute.String("upload.filename", header.Filename))
	log.Debugf("fit upload: %s, %d bytes", header.Filename, header.Size)

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		respondError(w, err)
		return
	}

	h.metricsManager.CounterFitUploads.Inc()
	normalized, err := h.normalizer.Normalize(ctx, fileBytes)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := uploadResponse{Activity: *normalized}
	if r.URL.Query().Get("analyze") == "true" {
		analysisText, analyzeErr := h.analyzer.Analyze(ctx, normalized, "")
		if analyzeErr != nil {
			err = analyzeErr
			respondError(w, err)
			return
		}
		resp.Analysis = analysisText
	}

	writeJSON(w, resp)
}
