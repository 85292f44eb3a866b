package ragdoc

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors recorded by InstrumentingMiddleware.
type Metrics struct {
	// Requests counts service calls by method and outcome
	// (ok, client_error, unauthorized, upstream_error, error).
	Requests *prometheus.CounterVec

	// Latency observes service call duration in seconds by method.
	Latency *prometheus.HistogramVec

	// ChunksIngested counts chunks written to partitions.
	ChunksIngested prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ragdoc",
				Subsystem: "service",
				Name:      "requests_total",
				Help:      "Total service calls by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		Latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ragdoc",
				Subsystem: "service",
				Name:      "request_duration_seconds",
				Help:      "Duration of service calls in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"method"},
		),
		ChunksIngested: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "ragdoc",
				Subsystem: "service",
				Name:      "chunks_ingested_total",
				Help:      "Total number of chunks written to tenant partitions",
			},
		),
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsClientError(err):
		return "client_error"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	default:
		return "error"
	}
}

func InstrumentingMiddleware(metrics *Metrics) ServiceMiddleware {
	return func(next Service) Service {
		return &instrumentingMiddleware{
			metrics: metrics,
			next:    next,
		}
	}
}

type instrumentingMiddleware struct {
	metrics *Metrics
	next    Service
}

func (mw *instrumentingMiddleware) observe(method string, begin time.Time, err error) {
	mw.metrics.Requests.WithLabelValues(method, outcome(err)).Inc()
	mw.metrics.Latency.WithLabelValues(method).Observe(time.Since(begin).Seconds())
}

func (mw *instrumentingMiddleware) Close() error {
	return mw.next.Close()
}

func (mw *instrumentingMiddleware) Stats(ctx context.Context, client string) (count int, err error) {
	defer func(begin time.Time) {
		mw.observe("stats", begin, err)
	}(time.Now())

	return mw.next.Stats(ctx, client)
}

func (mw *instrumentingMiddleware) Search(ctx context.Context, client string, query string, k ...int) (hits []Hit, err error) {
	defer func(begin time.Time) {
		mw.observe("search", begin, err)
	}(time.Now())

	return mw.next.Search(ctx, client, query, k...)
}

func (mw *instrumentingMiddleware) Ingest(ctx context.Context, client string, filename string, contentB64 string) (added int, err error) {
	defer func(begin time.Time) {
		mw.observe("ingest", begin, err)
		if err == nil {
			mw.metrics.ChunksIngested.Add(float64(added))
		}
	}(time.Now())

	return mw.next.Ingest(ctx, client, filename, contentB64)
}

func (mw *instrumentingMiddleware) Ask(ctx context.Context, client string, question string, k ...int) (answer *Answer, err error) {
	defer func(begin time.Time) {
		mw.observe("ask", begin, err)
	}(time.Now())

	return mw.next.Ask(ctx, client, question, k...)
}
