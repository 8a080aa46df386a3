// Package api exposes the HTTP interface for the crawl service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/crawlkit/crawlkit/internal/config"
	"github.com/crawlkit/crawlkit/internal/crawler"
	"github.com/crawlkit/crawlkit/internal/store"
	"github.com/crawlkit/crawlkit/internal/telemetry"
	"github.com/crawlkit/crawlkit/internal/worker"
)

// Engine is the subset of the crawl engine the API needs for synchronous
// requests.
type Engine interface {
	CrawlMany(ctx context.Context, seeds []string, run crawler.RunConfig) ([]crawler.Result, error)
}

// Enqueuer submits tasks for asynchronous execution.
type Enqueuer interface {
	Enqueue(ctx context.Context, item crawler.QueueItem) error
}

// Server wires HTTP handlers to the engine, dispatcher and task store.
type Server struct {
	router    chi.Router
	engine    Engine
	enqueuer  Enqueuer
	taskStore crawler.TaskStore
	cancels   *worker.CancelRegistry
	idGen     crawler.IDGenerator
	clock     crawler.Clock
	cfg       config.Config
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	engine Engine,
	enqueuer Enqueuer,
	taskStore crawler.TaskStore,
	cancels *worker.CancelRegistry,
	idGen crawler.IDGenerator,
	clock crawler.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine:    engine,
		enqueuer:  enqueuer,
		taskStore: taskStore,
		cancels:   cancels,
		idGen:     idGen,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(telemetry.Middleware)
	if cfg.Auth.Enabled {
		r.Use(bearerAuthMiddleware(cfg.Auth.APIToken))
	}

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Post("/crawl", s.crawlSync)
	r.Post("/crawl/job", s.crawlAsync)
	r.Route("/task/{task_id}", func(r chi.Router) {
		r.Get("/", s.getTask)
		r.Delete("/", s.cancelTask)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// crawlSync runs the crawl inline and returns the results in the response.
func (s *Server) crawlSync(w http.ResponseWriter, r *http.Request) {
	req, run, ok := s.decodeCrawlRequest(w, r)
	if !ok {
		return
	}
	timeout := run.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	// The per-task budget covers all seeds, not each page.
	ctx, cancel := context.WithTimeout(r.Context(), timeout*time.Duration(max(len(req.URLs), 1)))
	defer cancel()

	results, err := s.engine.CrawlMany(ctx, req.URLs, run)
	if err != nil && len(results) == 0 {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusRequestTimeout
		}
		s.writeError(w, status, err.Error())
		return
	}
	// A non-nil error with partial results means the crawl was truncated;
	// report the pages we got but never call it a success.
	success := len(results) > 0 && err == nil
	for _, res := range results {
		if !res.Success {
			success = false
			break
		}
	}
	resp := crawlResponse{Success: success, Results: results}
	if err != nil {
		resp.Error = err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// crawlAsync persists the task and enqueues it for a worker, answering 202
// with the task id.
func (s *Server) crawlAsync(w http.ResponseWriter, r *http.Request) {
	req, run, ok := s.decodeCrawlRequest(w, r)
	if !ok {
		return
	}
	taskID, err := s.idGen.NewID()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("generate task id: %v", err))
		return
	}
	now := s.clock.Now()
	task := crawler.Task{
		ID:        taskID,
		Status:    crawler.TaskStatusQueued,
		URLs:      req.URLs,
		Config:    run,
		Submitted: now,
	}
	if err := s.taskStore.CreateTask(r.Context(), task); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("create task: %v", err))
		return
	}
	queueCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	item := crawler.QueueItem{
		TaskID:    taskID,
		URLs:      req.URLs,
		Config:    run,
		Attempt:   1,
		Submitted: now.Unix(),
	}
	if err := s.enqueuer.Enqueue(queueCtx, item); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		s.writeError(w, status, fmt.Sprintf("enqueue task: %v", err))
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	task, err := s.taskStore.GetTask(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "task not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	resp := taskResponse{Task: task}
	if task.Status == crawler.TaskStatusCompleted || task.Status == crawler.TaskStatusFailed {
		results, err := s.taskStore.ListResults(r.Context(), taskID)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to load task results")
			return
		}
		resp.Results = results
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// cancelTask cancels a queued or running task. Finished tasks are left alone.
func (s *Server) cancelTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	task, err := s.taskStore.GetTask(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "task not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	switch task.Status {
	case crawler.TaskStatusCompleted, crawler.TaskStatusFailed, crawler.TaskStatusCanceled:
		s.writeError(w, http.StatusConflict, fmt.Sprintf("task already %s", task.Status))
		return
	}
	// A running task is stopped through its cancel func; a queued task is
	// marked canceled so the worker skips it on dequeue.
	if s.cancels != nil {
		s.cancels.Cancel(taskID)
	}
	if task.Status == crawler.TaskStatusQueued {
		err := s.taskStore.UpdateTaskStatus(
			r.Context(), taskID, crawler.TaskStatusCanceled, "canceled via API", task.Counters,
		)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusInternalServerError, "failed to cancel task")
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"task_id": taskID,
		"status":  string(crawler.TaskStatusCanceled),
	})
}

func (s *Server) decodeCrawlRequest(w http.ResponseWriter, r *http.Request) (crawlRequest, crawler.RunConfig, bool) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return crawlRequest{}, crawler.RunConfig{}, false
	}
	if err := req.validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return crawlRequest{}, crawler.RunConfig{}, false
	}
	return req, req.toRunConfig(s.cfg.Run.ToRunConfig()), true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
