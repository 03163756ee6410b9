package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/raysh454/hunter/internal/app"
	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/model"
	"github.com/raysh454/hunter/internal/pipeline"
	_ "github.com/raysh454/hunter/internal/server/docs"
)

const wsWriteTimeout = 10 * time.Second

// Server is the HTTP + WebSocket API surface for hunter.
type Server struct {
	cfg          Config
	orchestrator *app.Orchestrator
	gatherer     prometheus.Gatherer
	router       chi.Router
	upgrader     websocket.Upgrader
	logger       logging.Logger
}

// NewServer serves orch. Metrics come from gatherer; a nil gatherer
// disables /metrics.
func NewServer(cfg Config, orch *app.Orchestrator, gatherer prometheus.Gatherer) (*Server, error) {
	if orch == nil {
		return nil, errors.New("server needs an orchestrator")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("server")
	}

	r := chi.NewRouter()
	s := &Server{
		cfg:          cfg,
		orchestrator: orch,
		gatherer:     gatherer,
		router:       r,
		logger:       logger.With(logging.Field{Key: "component", Value: "server"}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: restrict to configured origins once the dashboard has a fixed host
				return true
			},
		},
	}

	s.routes()
	return s, nil
}

// Orchestrator returns the underlying orchestrator for advanced use (tests, etc.).
func (s *Server) Orchestrator() *app.Orchestrator {
	return s.orchestrator
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/cycles", s.optionsHandler("POST"))
	r.Options("/jobs", s.optionsHandler("GET"))
	r.Options("/jobs/{jobID}", s.optionsHandler("GET, DELETE"))
	r.Options("/reports", s.optionsHandler("GET"))
	r.Options("/reports/{reportID}", s.optionsHandler("GET"))

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/stats", s.handleStats)

	// Jobs over REST
	r.Post("/cycles", s.handleStartCycle)
	r.Get("/jobs", s.handleListJobs)
	r.Get("/jobs/{jobID}", s.handleGetJob)
	r.Delete("/jobs/{jobID}", s.handleCancelJob)

	// Reports
	r.Get("/reports", s.handleListReports)
	r.Get("/reports/{reportID}", s.handleGetReport)

	// WebSockets
	r.Get("/ws/events", s.handleEventsWS)
	r.Get("/ws/cycles", s.handleCycleWS)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
		s.logger.Debug("http_request", fields...)
	} else {
		s.logger.Info("http_request", fields...)
	}

	s.router.ServeHTTP(w, r)
}

// Close cancels running jobs.
func (s *Server) Close() {
	if s.orchestrator != nil {
		s.orchestrator.Close()
	}
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// --- HTTP handlers ---

// handleHealth godoc
// @Summary Liveness probe
// @Tags system
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleStatus godoc
// @Summary Current or last cycle status
// @Tags pipeline
// @Produce json
// @Success 200 {object} model.CycleStatus
// @Router /status [get]
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.Status(r.Context()))
}

// handleStats godoc
// @Summary Cumulative pipeline counters
// @Tags pipeline
// @Produce json
// @Success 200 {object} StatsResponse
// @Failure 500 {object} ErrorResponse
// @Router /stats [get]
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counters, err := s.orchestrator.Counters(r.Context())
	if err != nil {
		s.logger.Error("loading counters", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make(map[string]int64, len(model.CounterNames))
	for _, name := range model.CounterNames {
		out[name] = counters[name]
	}
	writeJSON(w, http.StatusOK, StatsResponse{Counters: out, DedupDegraded: s.orchestrator.DedupDegraded()})
}

// Jobs

func decodeCycleRequest(r *http.Request) (*model.Target, error) {
	var req StartCycleRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	}
	if req.Scope == "" {
		return nil, nil
	}
	return &model.Target{Platform: req.Platform, Program: req.Program, Scope: req.Scope, Priority: req.Priority}, nil
}

// handleStartCycle godoc
// @Summary Start a cycle now
// @Description Runs one cycle in the background. Without a scope the next configured target is used.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body StartCycleRequest false "Optional target"
// @Success 202 {object} app.Job
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /cycles [post]
func (s *Server) handleStartCycle(w http.ResponseWriter, r *http.Request) {
	target, err := decodeCycleRequest(r)
	if err != nil {
		s.logger.Warn("starting cycle: invalid JSON body", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	job, err := s.orchestrator.StartCycleJob(r.Context(), target)
	if errors.Is(err, pipeline.ErrCycleInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("starting cycle", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("started cycle job", logging.Field{Key: "job_id", Value: job.ID})
	writeJSON(w, http.StatusAccepted, job)
}

// handleGetJob godoc
// @Summary Get a job
// @Tags jobs
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {object} app.Job
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{jobID} [get]
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		s.logger.Warn("getting job: not found", logging.Field{Key: "job_id", Value: jobID})
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleCancelJob godoc
// @Summary Cancel a job
// @Tags jobs
// @Param jobID path string true "Job ID"
// @Success 204
// @Router /jobs/{jobID} [delete]
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	s.orchestrator.CancelJob(jobID)
	s.logger.Info("canceled job", logging.Field{Key: "job_id", Value: jobID})
	writeJSON(w, http.StatusNoContent, nil)
}

// handleListJobs godoc
// @Summary List jobs
// @Tags jobs
// @Produce json
// @Success 200 {array} app.Job
// @Router /jobs [get]
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.ListJobs())
}

// Reports

// handleListReports godoc
// @Summary List reports
// @Tags reports
// @Produce json
// @Param status query string false "Report status"
// @Param asset query string false "Asset"
// @Param limit query int false "Maximum number of reports"
// @Success 200 {array} model.Report
// @Failure 400 {object} ErrorResponse
// @Router /reports [get]
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.ReportFilter{
		Status: model.ReportStatus(q.Get("status")),
		Asset:  model.Asset(q.Get("asset")),
		Limit:  100,
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(string(f.Status)))
		return
	}
	if ls := q.Get("limit"); ls != "" {
		v, err := strconv.Atoi(ls)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = v
	}

	reports, err := s.orchestrator.ListReports(r.Context(), f)
	if err != nil {
		s.logger.Error("listing reports", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if reports == nil {
		reports = []*model.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// handleGetReport godoc
// @Summary Get a report
// @Tags reports
// @Produce json
// @Param reportID path string true "Report ID"
// @Success 200 {object} model.Report
// @Failure 404 {object} ErrorResponse
// @Router /reports/{reportID} [get]
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reportID")
	rep, err := s.orchestrator.GetReport(r.Context(), id)
	if errors.Is(err, model.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		s.logger.Error("getting report", logging.Field{Key: "report_id", Value: id}, logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// WebSockets

// watchClose returns a channel closed once the peer goes away. Incoming
// messages are discarded.
func watchClose(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return done
}

func writeWS(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(v)
}

// handleEventsWS streams every pipeline event until the client leaves.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	events, unsubscribe := s.orchestrator.Events().Subscribe(128)
	defer unsubscribe()
	closed := watchClose(conn)

	_ = writeWS(conn, s.orchestrator.Status(r.Context()))
	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
				return
			}
			if err := writeWS(conn, ev); err != nil {
				return
			}
		}
	}
}

// handleCycleWS starts a cycle and streams its job events. Optional query
// parameters platform, program, scope and priority name the target.
func (s *Server) handleCycleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var target *model.Target
	if scope := q.Get("scope"); scope != "" {
		priority, _ := strconv.Atoi(q.Get("priority"))
		target = &model.Target{Platform: q.Get("platform"), Program: q.Get("program"), Scope: scope, Priority: priority}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	job, err := s.orchestrator.StartCycleJob(r.Context(), target)
	if err != nil {
		s.logger.Warn("starting cycle job", logging.Field{Key: "error", Value: err.Error()})
		_ = writeWS(conn, ErrorResponse{Error: err.Error()})
		return
	}

	s.logger.Info("started cycle job", logging.Field{Key: "job_id", Value: job.ID})
	_ = writeWS(conn, job)

	closed := watchClose(conn)
	for {
		select {
		case <-closed:
			// Assume client disconnected; cancel job
			s.orchestrator.CancelJob(job.ID)
			return
		case ev, ok := <-job.Events:
			if !ok {
				return
			}
			if err := writeWS(conn, ev); err != nil {
				s.orchestrator.CancelJob(job.ID)
				return
			}
		}
	}
}
