package bank

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payrec_bank_call_duration_seconds",
			Help:    "Bank API call duration in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "outcome"},
	)
)
