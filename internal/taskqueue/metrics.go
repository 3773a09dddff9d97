package taskqueue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payrec_tasks_executed_total",
			Help: "Total number of tasks executed successfully",
		},
		[]string{"kind"},
	)

	tasksRetried = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payrec_tasks_retried_total",
			Help: "Total number of task redeliveries",
		},
		[]string{"kind"},
	)

	tasksFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payrec_tasks_failed_total",
			Help: "Total number of tasks failed permanently",
		},
		[]string{"kind"},
	)

	taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payrec_task_duration_seconds",
			Help:    "Task handler duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)
