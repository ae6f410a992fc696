package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "jobboard"

	labelMethod = "method"
	labelPath   = "path"
	labelStatus = "status"
	labelResult = "result"
	labelReason = "reason"
)

var (
	httpLatencyBuckets       = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	evaluationLatencyBuckets = []float64{.1, .25, .5, 1, 2, 5, 10, 30, 60}
)

// HTTP
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		},
		[]string{labelMethod, labelPath, labelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   httpLatencyBuckets,
		},
		[]string{labelMethod, labelPath},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served",
		},
	)
)

// Interview
var (
	evaluationsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evaluations_started_total",
		Help:      "Answer evaluations started",
	})
	evaluationsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evaluations_completed_total",
		Help:      "Answer evaluations completed",
	})
	evaluationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evaluations_failed_total",
		Help:      "Answer evaluations failed",
	}, []string{labelReason})
	evaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "evaluation_duration_seconds",
		Help:      "Time spent evaluating one answer",
		Buckets:   evaluationLatencyBuckets,
	})
	questionsServed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "questions_served_total",
		Help:      "Interview questions handed out",
	})
)

// Queue
var (
	queueJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_jobs_total",
		Help:      "Evaluation queue jobs by result",
	}, []string{labelResult})
)

var panicsRecovered = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "http_panics_recovered_total",
	Help:      "Handler panics turned into 500 responses",
})

func IncPanicRecovered() { panicsRecovered.Inc() }

// Cache
var (
	userCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "user_cache_lookups_total",
		Help:      "User cache lookups by result",
	}, []string{labelResult})
)

func IncEvaluationStarted() { evaluationsStarted.Inc() }
func IncEvaluationCompleted() { evaluationsCompleted.Inc() }

// IncEvaluationFailed counts a failed evaluation with a short reason label.
func IncEvaluationFailed(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	evaluationsFailed.WithLabelValues(reason).Inc()
}

// ObserveEvaluationDuration records how long one evaluation took.
func ObserveEvaluationDuration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	evaluationDuration.Observe(d.Seconds())
}

func IncQuestionServed() { questionsServed.Inc() }

func IncQueueJobsReceived() { queueJobs.WithLabelValues("received").Inc() }
func IncQueueJobsCompleted() { queueJobs.WithLabelValues("completed").Inc() }
func IncQueueJobsFailed() { queueJobs.WithLabelValues("failed").Inc() }
func IncQueueJobsDeletedUnrecoverable() { queueJobs.WithLabelValues("dropped").Inc() }

// ObserveUserCache records a cache hit or miss.
func ObserveUserCache(hit bool) {
	if hit {
		userCacheLookups.WithLabelValues("hit").Inc()
		return
	}
	userCacheLookups.WithLabelValues("miss").Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Middleware records request counts and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
