// Package metrics exposes translation pipeline metrics to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leapstack-labs/graphask/pkg/core"
	"github.com/leapstack-labs/graphask/pkg/graphschema"
	"github.com/leapstack-labs/graphask/pkg/translate"
)

// Namespace prefixes every metric name.
const Namespace = "graphask"

// Collector holds the Prometheus metrics of one process. It implements
// translate.Observer.
type Collector struct {
	registry *prometheus.Registry

	Translations *prometheus.CounterVec
	Attempts     prometheus.Histogram
	Duration     prometheus.Histogram

	OracleCalls    *prometheus.CounterVec
	OracleDuration prometheus.Histogram
	StoreCalls     *prometheus.CounterVec
	StoreDuration  prometheus.Histogram
	Verdicts       *prometheus.CounterVec

	SchemaRefreshes *prometheus.CounterVec
	SchemaVersion   prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

var _ translate.Observer = (*Collector)(nil)

// New creates a Collector with its own registry, including the Go runtime
// and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Translations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "translations_total",
			Help:      "Translations by terminal outcome",
		}, []string{"outcome"}),
		Attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "translation_attempts",
			Help:      "Generation attempts used per translation",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "translation_duration_seconds",
			Help:      "End to end translation duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		OracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "oracle_calls_total",
			Help:      "Oracle calls by result",
		}, []string{"result"}),
		OracleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "oracle_call_duration_seconds",
			Help:      "Oracle call duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}),
		StoreCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "store_calls_total",
			Help:      "Query executions by result",
		}, []string{"result"}),
		StoreDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "store_call_duration_seconds",
			Help:      "Query execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		Verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "validation_verdicts_total",
			Help:      "Validation verdicts by reason; accepted candidates use reason \"accepted\"",
		}, []string{"reason"}),
		SchemaRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "schema_refreshes_total",
			Help:      "Schema refreshes by result",
		}, []string{"result"}),
		SchemaVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "schema_version",
			Help:      "Version of the current schema snapshot",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.Translations,
		c.Attempts,
		c.Duration,
		c.OracleCalls,
		c.OracleDuration,
		c.StoreCalls,
		c.StoreDuration,
		c.Verdicts,
		c.SchemaRefreshes,
		c.SchemaVersion,
		c.HTTPRequests,
		c.HTTPDuration,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Generated implements translate.Observer.
func (c *Collector) Generated(d time.Duration, err error) {
	c.OracleCalls.WithLabelValues(result(err)).Inc()
	c.OracleDuration.Observe(d.Seconds())
}

// Validated implements translate.Observer.
func (c *Collector) Validated(v core.Verdict) {
	reason := "accepted"
	if !v.Accepted {
		reason = string(v.Reason)
	}
	c.Verdicts.WithLabelValues(reason).Inc()
}

// Executed implements translate.Observer.
func (c *Collector) Executed(d time.Duration, err error) {
	label := "ok"
	if err != nil {
		label = "permanent"
		if core.IsTransient(err) {
			label = "transient"
		}
	}
	c.StoreCalls.WithLabelValues(label).Inc()
	c.StoreDuration.Observe(d.Seconds())
}

// Finished implements translate.Observer.
func (c *Collector) Finished(out *translate.Outcome, err error, d time.Duration) {
	c.Duration.Observe(d.Seconds())
	if err == nil {
		c.Translations.WithLabelValues("success").Inc()
		c.Attempts.Observe(float64(out.Attempts))
		return
	}

	outcome := "error"
	var f *core.Failure
	if errors.As(err, &f) {
		outcome = string(f.Kind)
		if f.Attempts > 0 {
			c.Attempts.Observe(float64(f.Attempts))
		}
	}
	c.Translations.WithLabelValues(outcome).Inc()
}

// SchemaRefreshed records a schema refresh. It matches the signature of
// graphschema.Config.OnRefresh.
func (c *Collector) SchemaRefreshed(snap *graphschema.Snapshot, err error) {
	c.SchemaRefreshes.WithLabelValues(result(err)).Inc()
	if snap != nil {
		c.SchemaVersion.Set(float64(snap.Version))
	}
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
