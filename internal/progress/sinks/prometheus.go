package sinks

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/crawlkit/crawlkit/internal/progress"
)

// PrometheusSink translates progress events into Prometheus collectors
// registered on the supplied registry.
type PrometheusSink struct {
	tasksStarted  prometheus.Counter
	tasksFinished *prometheus.CounterVec
	tasksRunning  prometheus.Gauge
	taskRuntime   prometheus.Histogram
	pageRequests  *prometheus.CounterVec
	pageBytes     *prometheus.CounterVec
	pageDuration  *prometheus.HistogramVec
}

// NewPrometheusSink builds the sink and registers its collectors with reg.
// Passing prometheus.DefaultRegisterer wires it into the /metrics endpoint.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		tasksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawlkit_tasks_started_total",
			Help: "Number of crawl tasks started.",
		}),
		tasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawlkit_tasks_finished_total",
			Help: "Number of crawl tasks finished, by terminal status.",
		}, []string{"status"}),
		tasksRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawlkit_tasks_running",
			Help: "Number of crawl tasks currently running.",
		}),
		taskRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawlkit_task_runtime_seconds",
			Help:    "Wall-clock runtime of finished crawl tasks.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		pageRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawlkit_task_pages_total",
			Help: "Pages processed by crawl tasks, by site and status class.",
		}, []string{"site", "status_class"}),
		pageBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawlkit_task_page_bytes_total",
			Help: "Bytes fetched by crawl tasks, by site.",
		}, []string{"site"}),
		pageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawlkit_task_page_duration_seconds",
			Help:    "Per-page processing latency, by site.",
			Buckets: prometheus.DefBuckets,
		}, []string{"site"}),
	}
	collectors := []prometheus.Collector{
		s.tasksStarted, s.tasksFinished, s.tasksRunning, s.taskRuntime,
		s.pageRequests, s.pageBytes, s.pageDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. It never fails.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageTaskStart:
			s.tasksStarted.Inc()
			s.tasksRunning.Inc()
		case progress.StageTaskDone, progress.StageTaskError, progress.StageTaskCanceled:
			s.tasksFinished.WithLabelValues(statusLabel(evt.Stage)).Inc()
			s.tasksRunning.Dec()
			if evt.Dur > 0 {
				s.taskRuntime.Observe(evt.Dur.Seconds())
			}
		case progress.StagePageDone:
			s.pageRequests.WithLabelValues(evt.Site, string(evt.StatusClass)).Inc()
			if evt.Bytes > 0 {
				s.pageBytes.WithLabelValues(evt.Site).Add(float64(evt.Bytes))
			}
			if evt.Dur > 0 {
				s.pageDuration.WithLabelValues(evt.Site).Observe(evt.Dur.Seconds())
			}
		}
	}
	return nil
}

func statusLabel(stage progress.Stage) string {
	switch stage {
	case progress.StageTaskDone:
		return "completed"
	case progress.StageTaskError:
		return "failed"
	case progress.StageTaskCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}
