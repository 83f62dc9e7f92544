package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"explainer/internal/config"
	"explainer/internal/deps"
	"explainer/internal/history"
	"explainer/internal/logging"
	"explainer/internal/render"
	"explainer/internal/services"
)

// maxManifestBytes bounds POST /api/renders bodies.
const maxManifestBytes = 4 << 20

// DependencyChecker reports the state of external binaries.
type DependencyChecker func(ctx context.Context) []deps.Status

// Server serves render history and synchronous render submission over HTTP.
type Server struct {
	bind      string
	outputDir string
	logger    *slog.Logger
	svc       *RenderService
	checkDeps DependencyChecker
	dbPath    string

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

// NewServer builds a server for cfg. checkDeps may be nil.
func NewServer(cfg *config.Config, svc *RenderService, dbPath string, checkDeps DependencyChecker, logger *slog.Logger) (*Server, error) {
	if cfg == nil || svc == nil {
		return nil, errors.New("api server requires config and render service")
	}
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil, services.Wrap(services.ErrConfiguration, "api", "bind", "api.bind is empty", nil)
	}
	s := &Server{
		bind:      bind,
		outputDir: cfg.Paths.OutputDir,
		logger:    logging.NewComponentLogger(logger, "api-server"),
		svc:       svc,
		checkDeps: checkDeps,
		dbPath:    dbPath,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/renders", s.handleList)
	mux.HandleFunc("POST /api/renders", s.handleCreate)
	mux.HandleFunc("GET /api/renders/{id}", s.handleGet)
	mux.HandleFunc("DELETE /api/renders/{id}", s.handleDelete)
	mux.HandleFunc("GET /api/renders/{id}/stream", s.handleStream)
	mux.HandleFunc("GET /api/renders/{id}/download", s.handleDownload)
	s.handler = authMiddleware(cfg.API.Token, mux)

	// Renders run inside the request and videos stream for as long as the
	// client reads, so there is no write timeout.
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler exposes the routed handler, including authentication.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listening address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// Start begins serving in the background until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := ServiceStatus{
		PID:           os.Getpid(),
		HistoryDBPath: s.dbPath,
		OutputDir:     s.outputDir,
		ActiveRenders: s.svc.Active(),
		Counts:        MergeStats(stats),
		Dependencies:  []DependencyStatus{},
	}
	if s.checkDeps != nil {
		payload.Dependencies = FromDependencies(s.checkDeps(r.Context()))
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var statuses []history.Status
	for _, value := range query["status"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := history.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		statuses = append(statuses, status)
	}
	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	renders, err := s.svc.List(r.Context(), limit, statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, RenderListResponse{Items: FromRenders(renders)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	record, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, RenderItemResponse{Item: FromRender(record)})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxManifestBytes)
	req, err := render.DecodeRequest(body, "")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if rel := firstRelativeAsset(req); rel != "" {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("asset path %q must be absolute", rel))
		return
	}
	record, _, err := s.svc.Run(r.Context(), req, "")
	if err != nil {
		payload := RenderFailureResponse{Error: err.Error()}
		if record != nil {
			item := FromRender(record)
			payload.Item = &item
		}
		s.writeJSON(w, failureStatusCode(err), payload)
		return
	}
	s.writeJSON(w, http.StatusCreated, RenderItemResponse{Item: FromRender(record)})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	found, err := s.svc.Remove(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, ErrRenderActive):
		s.writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	case !found:
		s.writeError(w, http.StatusNotFound, "render not found")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.serveVideo(w, r, false)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.serveVideo(w, r, true)
}

func (s *Server) serveVideo(w http.ResponseWriter, r *http.Request, attachment bool) {
	record, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if record.Status != history.StatusDone || record.OutputPath == "" {
		s.writeError(w, http.StatusConflict, "render has no video")
		return
	}
	file, err := os.Open(record.OutputPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.writeError(w, http.StatusGone, "video file no longer exists")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	name := filepath.Base(record.OutputPath)
	w.Header().Set("Content-Type", "video/mp4")
	if attachment {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}
	http.ServeContent(w, r, name, info.ModTime(), file)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*history.Render, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		s.writeError(w, http.StatusNotFound, "render not found")
		return nil, false
	}
	record, err := s.svc.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if record == nil {
		s.writeError(w, http.StatusNotFound, "render not found")
		return nil, false
	}
	return record, true
}

func failureStatusCode(err error) int {
	switch {
	case errors.Is(err, history.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidScript), errors.Is(err, services.ErrNoValidSegments):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrTimeout):
		return http.StatusInternalServerError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func firstRelativeAsset(req render.Request) string {
	for _, img := range req.Images {
		if p := strings.TrimSpace(img.Path); p != "" && !filepath.IsAbs(p) {
			return p
		}
	}
	for _, a := range req.Audio {
		if p := strings.TrimSpace(a.Path); p != "" && !filepath.IsAbs(p) {
			return p
		}
	}
	return ""
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
