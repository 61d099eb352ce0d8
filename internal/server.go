package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pacemates/paceline/internal/analysis"
	"github.com/pacemates/paceline/internal/athletes"
	"github.com/pacemates/paceline/internal/config"
	"github.com/pacemates/paceline/internal/fitfile"
	"github.com/pacemates/paceline/internal/handlers"
	"github.com/pacemates/paceline/internal/middleware"
	"github.com/pacemates/paceline/internal/strava"
	"github.com/pacemates/paceline/internal/telemetry/metrics"
	"github.com/pacemates/paceline/internal/telemetry/tracing"
	"github.com/pacemates/paceline/pkg"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/multierr"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config        *config.Config
	store         athletes.Store
	keeper        *athletes.Keeper
	authenticator *strava.Authenticator
	stravaClient  *strava.Client
	normalizer    *fitfile.Normalizer
	analyzer      *analysis.Analyzer
	dateMode      strava.DateMode

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	StravaClientID          string
	StravaClientSecret      string
	OpenAIApiKey            string
	AnalysisModel           string
	VersionInfo             string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("paceline", "backend", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "paceline-backend")
	if err != nil {
		return nil, err
	}

	tracedHttpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	store, err := newStore(ctx, params.Config)
	if err != nil {
		return nil, err
	}

	stravaBaseURL := params.Config.StravaBaseURL
	if stravaBaseURL == "" {
		stravaBaseURL = strava.DefaultBaseURL
	}

	authenticator := strava.NewAuthenticator(
		strava.WithClientID(params.StravaClientID),
		strava.WithClientSecret(params.StravaClientSecret),
		strava.WithRedirectURL(params.Config.StravaRedirectURL),
	)

	analysisModel := params.AnalysisModel
	if analysisModel == "" {
		analysisModel = params.Config.AnalysisModel
	}

	s := &Server{
		config:        params.Config,
		versionInfo:   params.VersionInfo,
		store:         store,
		authenticator: authenticator,
		stravaClient:  strava.NewClient(stravaBaseURL, tracedHttpClient),
		keeper:        athletes.NewKeeper(store, authenticator, metricsManager),
		normalizer:    fitfile.NewNormalizer(params.Config.MaxUploadSizeMB * 1024 * 1024),
		analyzer:      analysis.NewAnalyzer(params.OpenAIApiKey, analysisModel),
		dateMode:      strava.ParseDateMode(params.Config.DateMode),

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}

	return s, nil
}

func newStore(ctx context.Context, cfg *config.Config) (athletes.Store, error) {
	switch cfg.StorageBackend {
	case "sheets":
		if exists, err := pkg.PathExists(cfg.SheetsCredentialsPath, false); err != nil {
			return nil, fmt.Errorf("check sheets credentials path: %w", err)
		} else if !exists {
			return nil, fmt.Errorf("sheets credentials file not found: %s", cfg.SheetsCredentialsPath)
		}
		store, err := athletes.NewSheetsStore(ctx, cfg.SheetsCredentialsPath, cfg.SpreadsheetID)
		if err != nil {
			return nil, fmt.Errorf("new sheets store: %w", err)
		}
		return store, nil
	case "file", "":
		return athletes.NewFileStore(cfg.FileStorePath), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	authHandler := handlers.NewAuthHandler(
		s.authenticator,
		s.store,
		func() string {
			state, err := pkg.GenerateRandomString(16)
			if err != nil {
				log.Errorf("generate oauth state: %s", err)
			}
			return state
		},
	)
	authHandler.SetupRoutes(r)

	activitiesHandler := handlers.NewActivitiesHandler(
		s.keeper,
		s.store,
		s.stravaClient,
		s.analyzer,
		s.dateMode,
		s.metricsManager,
	)
	activitiesHandler.SetupRoutes(r)

	uploadHandler := handlers.NewUploadHandler(
		s.normalizer,
		s.analyzer,
		s.config.MaxUploadSizeMB*1024*1024,
		s.metricsManager,
	)
	uploadHandler.SetupRoutes(r)

	miscHandler := handlers.NewMiscHandler(s.versionInfo)
	miscHandler.SetupRoutes(r)

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(_ context.Context, host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("paceline service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() error {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	var shutdownErr error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("shutdown http server: %w", err))
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("shutdown metrics http server: %w", err))
	}
	log.Warnln("metrics server shut down")

	return shutdownErr
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
