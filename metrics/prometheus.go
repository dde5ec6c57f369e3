package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// all metrics and middlewares for the REST API and the keyless flows
var (
	initOnce sync.Once

	// requests currently being served
	inFlightRESTRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "keyless_rest_in_flight_requests",
			Help: "Number of REST requests being served",
		},
	)

	// response times for REST APIs (derivation and submission wait on upstream services)
	responseTimeRESTAPI = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keyless_rest_response_time_milliseconds",
			Help:    "REST API response time distributions",
			Buckets: []float64{5, 25, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"method", "endpoint"},
	)

	// request body sizes, dominated by media uploads
	requestSizeRESTAPI = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keyless_rest_request_size_kilobytes",
			Help:    "REST API request size distributions",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"method", "endpoint"},
	)

	// Number of requests processed by REST API
	RESTRequestMetricsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keyless_rest_requests_total",
		Help: "The total number of processed REST requests",
	}, []string{"method", "endpoint", "status"})

	// Number of completed logins by result (success, invalid_nonce, invalid_token, error)
	KeylessLoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keyless_logins_total",
		Help: "The total number of keyless login attempts",
	}, []string{"result"})

	// Faucet step outcome (funded, skipped, failed)
	FaucetFundingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "faucet_fundings_total",
		Help: "The total number of post derivation faucet fundings",
	}, []string{"status"})

	// Transactions handed to the node by result (submitted, rejected)
	TransactionsSubmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transactions_submitted_total",
		Help: "The total number of submitted transactions",
	}, []string{"result"})

	CommunitiesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "communities_created_total",
		Help: "The total number of generated community channel keys",
	})

	// Latency of the account derivation (pepper + prover)
	KeylessDerivationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "keyless_derivation_latency_milliseconds",
		Help:    "Latency of keyless account derivation",
		Buckets: prometheus.LinearBuckets(1, 250, 10),
	})
)

// InitMetrics registers every collector once
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			inFlightRESTRequests,
			responseTimeRESTAPI,
			requestSizeRESTAPI,
			RESTRequestMetricsTotal,
			KeylessLoginsTotal,
			FaucetFundingsTotal,
			TransactionsSubmittedTotal,
			CommunitiesCreatedTotal,
			KeylessDerivationLatency,
		)
	})
}

// MetricsMiddleware records count, latency and request size per route template
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		inFlightRESTRequests.Inc()
		defer inFlightRESTRequests.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		method := c.Request.Method
		RESTRequestMetricsTotal.WithLabelValues(method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		if c.Request.ContentLength > 0 {
			requestSizeRESTAPI.WithLabelValues(method, endpoint).Observe(float64(c.Request.ContentLength) / 1024)
		}
		responseTimeRESTAPI.WithLabelValues(method, endpoint).Observe(float64(time.Since(start).Milliseconds()))
	}
}
