package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kailas-cloud/feedtag/internal/metrics"
)

// RouterConfig holds transport-level settings.
type RouterConfig struct {
	APIKeys      []string
	MaxBodyBytes int64
}

// NewRouter mounts every route of s behind recovery, request ids, access
// logging, auth and metrics.
func NewRouter(s *Server, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(cfg.APIKeys))
	r.Use(metrics.Middleware("/metrics"))
	if cfg.MaxBodyBytes > 0 {
		r.Use(chiMiddleware.RequestSize(cfg.MaxBodyBytes))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/tags", func(r chi.Router) {
		r.Get("/", s.ListTags)
		r.Post("/", s.CreateTag)
		r.Route("/{tag}", func(r chi.Router) {
			r.Get("/", s.GetTag)
			r.Put("/", s.PutTag)
			r.Delete("/", s.DeleteTag)
			r.Post("/reduce", s.ReduceTag)
			r.Post("/score", s.ScoreTag)
		})
	})
	r.Post("/train", s.Train)
	r.Post("/train/entries", s.TrainEntries)
	r.Post("/reduce", s.ReduceAll)
	r.Post("/score", s.Score)
	r.Post("/recommend", s.Recommend)
	r.Post("/flush", s.Flush)

	return r
}
