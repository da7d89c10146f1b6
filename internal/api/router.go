package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/Togather-Foundation/attendance/internal/api/handlers"
	"github.com/Togather-Foundation/attendance/internal/api/middleware"
	"github.com/Togather-Foundation/attendance/internal/config"
	"github.com/Togather-Foundation/attendance/internal/domain/certificates"
	"github.com/Togather-Foundation/attendance/internal/domain/participants"
	"github.com/Togather-Foundation/attendance/internal/metrics"
	"github.com/rs/zerolog"
)

// Dependencies are the services the router exposes. Migrations may be nil
// when the store has no schema (the memory driver).
type Dependencies struct {
	Participants *participants.Service
	Certificates *certificates.Service
	Store        handlers.Pinger
	Migrations   handlers.SchemaVersioner
	Build        BuildInfo
}

func NewRouter(cfg config.Config, logger zerolog.Logger, deps Dependencies) http.Handler {
	participantsHandler := handlers.NewParticipantsHandler(deps.Participants, cfg.Environment)
	certificatesHandler := handlers.NewCertificatesHandler(deps.Certificates, cfg.Environment)
	build := deps.Build.withDefaults()
	healthChecker := handlers.NewHealthChecker(deps.Store, deps.Migrations, cfg.Database.Driver, build.Version, build.GitCommit)

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", handlers.Root())
	mux.Handle("GET /healthz", handlers.Healthz())
	mux.Handle("GET /readyz", handlers.Readyz(deps.Store))
	mux.Handle("GET /health", healthChecker.Health())
	mux.Handle("GET /version", VersionHandler(build))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /inscricao", participantsHandler.Register)
	mux.HandleFunc("POST /presenca/{id}", participantsHandler.MarkPresent)
	mux.HandleFunc("POST /avaliacao/{id}", participantsHandler.Evaluate)
	mux.HandleFunc("GET /inscritos", participantsHandler.List)

	issue := http.HandlerFunc(certificatesHandler.Issue)
	mux.Handle("/certificado/{id}", methodMux(map[string]http.Handler{
		http.MethodGet:  issue,
		http.MethodPost: issue,
	}))

	// Outermost first. The metrics middleware must wrap the mux directly to
	// see the matched pattern.
	var handler http.Handler = metrics.HTTPMiddleware(mux)
	handler = middleware.RequestSize(middleware.DefaultMaxBodySize)(handler)
	handler = middleware.RateLimit(cfg.RateLimit)(handler)
	handler = middleware.CORS(cfg.CORS, logger)(handler)
	handler = middleware.SecurityHeaders(cfg.Environment == "production")(handler)
	handler = middleware.RequestLogging(logger)(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CorrelationID(logger)(handler)
	return handler
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
