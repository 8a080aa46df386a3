// Package worker implements the crawl task execution loop.
package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crawlkit/crawlkit/internal/crawler"
	"github.com/crawlkit/crawlkit/internal/progress"
)

// Config controls Worker behavior.
type Config struct {
	ContentType string
	BlobPrefix  string
	Topic       string
}

// CancelRegistry tracks per-task cancel functions so the API can stop a
// running task.
type CancelRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewCancelRegistry returns an empty registry.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{cancels: make(map[string]context.CancelFunc)}
}

func (r *CancelRegistry) register(taskID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[taskID] = cancel
}

func (r *CancelRegistry) unregister(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, taskID)
}

// Cancel stops the task if it is currently running and reports whether a
// cancel function was found.
func (r *CancelRegistry) Cancel(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.cancels[taskID]
	if ok {
		cancel()
	}
	return ok
}

// Engine is the subset of the crawl engine the worker needs.
type Engine interface {
	CrawlMany(ctx context.Context, seeds []string, run crawler.RunConfig) ([]crawler.Result, error)
}

// Worker consumes queue items and executes the crawl pipeline.
type Worker struct {
	queue     crawler.Queue
	taskStore crawler.TaskStore
	blobStore crawler.BlobStore
	publisher crawler.Publisher
	engine    Engine
	clock     crawler.Clock
	hub       *progress.Hub
	cancels   *CancelRegistry
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	queue crawler.Queue,
	taskStore crawler.TaskStore,
	blobStore crawler.BlobStore,
	publisher crawler.Publisher,
	engine Engine,
	clock crawler.Clock,
	hub *progress.Hub,
	cancels *CancelRegistry,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	return &Worker{
		queue:     queue,
		taskStore: taskStore,
		blobStore: blobStore,
		publisher: publisher,
		engine:    engine,
		clock:     clock,
		hub:       hub,
		cancels:   cancels,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued task", zap.String("task_id", item.TaskID))
		w.processTask(ctx, item)
	}
}

func (w *Worker) processTask(ctx context.Context, item crawler.QueueItem) {
	task, err := w.taskStore.GetTask(ctx, item.TaskID)
	if err != nil {
		w.logger.Error("load task failed", zap.String("task_id", item.TaskID), zap.Error(err))
		return
	}
	if task.Status == crawler.TaskStatusCanceled {
		w.logger.Info("skipping canceled task", zap.String("task_id", item.TaskID))
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if w.cancels != nil {
		w.cancels.register(item.TaskID, cancel)
		defer w.cancels.unregister(item.TaskID)
	}

	start := w.clock.Now()
	counters := crawler.TaskCounters{}
	if err := w.taskStore.UpdateTaskStatus(ctx, item.TaskID, crawler.TaskStatusRunning, "", counters); err != nil {
		w.logger.Error("update task status failed", zap.String("task_id", item.TaskID), zap.Error(err))
		return
	}
	w.emit(progress.Event{TaskID: item.TaskID, TS: start, Stage: progress.StageTaskStart})

	results, crawlErr := w.engine.CrawlMany(taskCtx, item.URLs, item.Config)
	errText := ""
	for _, result := range results {
		if result.Success {
			counters.PagesSucceeded++
		} else {
			counters.PagesFailed++
			errText = result.ErrorMessage
		}
		w.recordResult(ctx, item.TaskID, result)
	}

	status := w.deriveFinalStatus(taskCtx, counters, crawlErr, &errText)
	if err := w.taskStore.UpdateTaskStatus(ctx, item.TaskID, status, errText, counters); err != nil {
		w.logger.Error("final task status update failed", zap.String("task_id", item.TaskID), zap.Error(err))
	}
	w.emit(progress.Event{
		TaskID: item.TaskID,
		TS:     w.clock.Now(),
		Stage:  stageForStatus(status),
		Dur:    w.clock.Now().Sub(start),
		Note:   errText,
	})
	w.publishCompletion(ctx, item.TaskID, status, counters)
}

func (w *Worker) recordResult(ctx context.Context, taskID string, result crawler.Result) {
	if result.Success && w.blobStore != nil && result.HTML != "" {
		uri, err := w.blobStore.PutObject(
			ctx,
			w.buildBlobPath(taskID, result.ContentHash),
			w.cfg.ContentType,
			[]byte(result.HTML),
		)
		if err != nil {
			w.logger.Warn("persist raw html failed", zap.String("task_id", taskID), zap.Error(err))
		} else if uri != "" {
			w.logger.Debug("raw html persisted", zap.String("uri", uri))
		}
	}
	if err := w.taskStore.RecordResult(ctx, taskID, result); err != nil {
		w.logger.Error("record result failed",
			zap.String("task_id", taskID),
			zap.String("url", result.URL),
			zap.Error(err),
		)
	}
	w.emit(progress.Event{
		TaskID:      taskID,
		TS:          w.clock.Now(),
		Stage:       progress.StagePageDone,
		Site:        siteOf(result.URL),
		URL:         result.URL,
		Bytes:       int64(len(result.HTML)),
		StatusClass: progress.ClassifyStatus(result.StatusCode),
		Dur:         time.Duration(result.DurationMs) * time.Millisecond,
	})
}

func (w *Worker) deriveFinalStatus(
	taskCtx context.Context,
	counters crawler.TaskCounters,
	crawlErr error,
	errText *string,
) crawler.TaskStatus {
	if taskCtx.Err() != nil {
		*errText = "task canceled"
		return crawler.TaskStatusCanceled
	}
	if crawlErr != nil {
		*errText = crawlErr.Error()
		return crawler.TaskStatusFailed
	}
	if counters.PagesSucceeded == 0 && counters.PagesFailed > 0 {
		return crawler.TaskStatusFailed
	}
	return crawler.TaskStatusCompleted
}

func (w *Worker) publishCompletion(ctx context.Context, taskID string, status crawler.TaskStatus, counters crawler.TaskCounters) {
	if w.cfg.Topic == "" || w.publisher == nil {
		return
	}
	payload := map[string]any{
		"task_id":         taskID,
		"status":          string(status),
		"pages_succeeded": counters.PagesSucceeded,
		"pages_failed":    counters.PagesFailed,
		"timestamp":       w.clock.Now().Format(time.RFC3339),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, payload); err != nil {
		w.logger.Error("publish completion failed", zap.String("task_id", taskID), zap.Error(err))
	}
}

func (w *Worker) buildBlobPath(taskID, hash string) string {
	prefix := strings.Trim(w.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.html", taskID, hash)
	}
	return fmt.Sprintf("%s/%s/%s.html", prefix, taskID, hash)
}

func (w *Worker) emit(evt progress.Event) {
	if w.hub == nil {
		return
	}
	w.hub.Emit(evt)
}

func stageForStatus(status crawler.TaskStatus) progress.Stage {
	switch status {
	case crawler.TaskStatusCompleted:
		return progress.StageTaskDone
	case crawler.TaskStatusCanceled:
		return progress.StageTaskCanceled
	default:
		return progress.StageTaskError
	}
}

func siteOf(rawURL string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	if idx := strings.IndexAny(trimmed, "/?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.ToLower(trimmed)
}
