// Package chi serves the tagging API over HTTP with a go-chi router.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/feedtag/internal/corpus"
	logpkg "github.com/kailas-cloud/feedtag/internal/logger"
	healthuc "github.com/kailas-cloud/feedtag/internal/usecase/health"
	"github.com/kailas-cloud/feedtag/internal/usecase/tagging"
)

// Server holds the HTTP handlers.
type Server struct {
	tagging       *tagging.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(tags *tagging.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		tagging:       tags,
		health:        health,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// ListTags handles GET /tags.
func (s *Server) ListTags(w http.ResponseWriter, r *http.Request) {
	infos := s.tagging.List(r.Context())
	items := make([]TagResponse, len(infos))
	for i, info := range infos {
		items[i] = tagToResponse(info)
	}
	writeJSON(w, http.StatusOK, TagListResponse{Items: items})
}

// GetTag handles GET /tags/{tag}.
func (s *Server) GetTag(w http.ResponseWriter, r *http.Request) {
	info, err := s.tagging.Get(r.Context(), chi.URLParam(r, "tag"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tagToResponse(info))
}

// PutTag handles PUT /tags/{tag}: 201 when registered, 200 when it already existed.
func (s *Server) PutTag(w http.ResponseWriter, r *http.Request) {
	ctx, log := logpkg.With(r.Context(), zap.String("tag", chi.URLParam(r, "tag")))
	info, created, err := s.tagging.Create(ctx, chi.URLParam(r, "tag"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		log.Info("tag registered")
	}
	writeJSON(w, status, tagToResponse(info))
}

// CreateTag handles POST /tags. Unlike PUT it fails on an existing tag.
func (s *Server) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req CreateTagRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, log := logpkg.With(r.Context(), zap.String("tag", req.Name))
	info, err := s.tagging.Register(ctx, req.Name)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	log.Info("tag registered")
	writeJSON(w, http.StatusCreated, tagToResponse(info))
}

// DeleteTag handles DELETE /tags/{tag}.
func (s *Server) DeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := s.tagging.Delete(r.Context(), chi.URLParam(r, "tag")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Train handles POST /train.
func (s *Server) Train(w http.ResponseWriter, r *http.Request) {
	var req TrainRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.tagging.Train(r.Context(), req.Labels, req.toDomain()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	labels := req.Labels
	if labels == nil {
		labels = []string{}
	}
	writeJSON(w, http.StatusOK, TrainResponse{Labels: labels, Tags: len(s.tagging.List(r.Context()))})
}

// TrainEntries handles POST /train/entries with a JSON-lines corpus body.
func (s *Server) TrainEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := corpus.Read(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid corpus: "+err.Error())
		return
	}
	n, err := s.tagging.TrainEntries(r.Context(), entries)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TrainEntriesResponse{Entries: len(entries), Documents: n})
}

// ReduceTag handles POST /tags/{tag}/reduce. The body is optional.
func (s *Server) ReduceTag(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")

	var req ReduceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	rc := req.apply(s.tagging.ReduceConfig())

	removed, err := s.tagging.Reduce(r.Context(), tag, &rc)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	info, err := s.tagging.Get(r.Context(), tag)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReduceResponse{Tag: tag, Removed: removed, Words: info.Words})
}

// ReduceAll handles POST /reduce with the configured thresholds.
func (s *Server) ReduceAll(w http.ResponseWriter, r *http.Request) {
	removed, err := s.tagging.ReduceAll(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReduceAllResponse{Removed: removed})
}

// ScoreTag handles POST /tags/{tag}/score.
func (s *Server) ScoreTag(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := s.tagging.Score(r.Context(), chi.URLParam(r, "tag"), req.toDomain())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scoreToResponse(rec))
}

// Score handles POST /score: every tag, most probable first.
func (s *Server) Score(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	recs, err := s.tagging.ScoreAll(r.Context(), req.toDomain())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ScoreListResponse{Items: scoresToResponse(recs)})
}

// Recommend handles POST /recommend with a JSON-lines body of entries.
func (s *Server) Recommend(w http.ResponseWriter, r *http.Request) {
	entries, err := corpus.Read(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid corpus: "+err.Error())
		return
	}
	recs, err := s.tagging.Recommend(r.Context(), entries)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	items := make([]RecommendationResponse, len(recs))
	for i, rec := range recs {
		items[i] = RecommendationResponse{
			EntryID: rec.EntryID,
			Title:   rec.Title,
			Tags:    scoresToResponse(rec.Recommendations),
		}
	}
	writeJSON(w, http.StatusOK, RecommendListResponse{Items: items})
}

// Flush handles POST /flush.
func (s *Server) Flush(w http.ResponseWriter, r *http.Request) {
	if err := s.tagging.Flush(r.Context()); err != nil {
		s.logger.Warn("flush on demand failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, CodeFlushFailed, "flush failed, changes stay queued")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	// Degraded still serves scores, so it stays 200.
	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decodeBody decodes a JSON body into v and writes 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		msg := "Invalid request body: " + err.Error()
		if errors.Is(err, io.EOF) {
			msg = "Request body is required"
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeBadRequest,
				fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, msg)
		return false
	}
	return true
}
