package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReviewsTotal tracks reviews by subject kind, decision path and outcome
	ReviewsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "content_review_reviews_total",
		Help: "Total number of reviews processed",
	}, []string{"kind", "path", "status"})

	// CensorDuration tracks remote censor call latency
	CensorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "content_review_censor_duration_seconds",
		Help:    "Histogram of remote censor call duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "kind"})

	// CensorRequests tracks remote censor calls by outcome
	CensorRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "content_review_censor_requests_total",
		Help: "Total number of remote censor calls, by outcome",
	}, []string{"provider", "kind", "outcome"})

	// TokenExchanges tracks credential exchanges with the token endpoint
	TokenExchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "content_review_token_exchanges_total",
		Help: "Total number of upstream credential exchanges",
	}, []string{"result"})

	// RulesLoaded reports the size of the current rule snapshot
	RulesLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "content_review_rules_loaded",
		Help: "Number of keyword rules in the current snapshot",
	})
)

// HTTPRequests tracks API requests by route pattern and status code
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "content_review_http_requests_total",
	Help: "Total number of HTTP API requests",
}, []string{"method", "route", "code"})
