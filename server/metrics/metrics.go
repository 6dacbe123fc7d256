// Package metrics exports the post pipeline's telemetry to Prometheus.
package metrics

import (
	"time"

	"github.com/diamondburned/smolblog/smolblog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for the post pipeline. All methods must be safe
// to call concurrently.
type Observer interface {
	RecordAssetWrite(duration time.Duration, size int64, err error)
	RecordAvatarFetch(duration time.Duration, err error)
	RecordSubmission(duration time.Duration, err error)
}

// Nop is an Observer that records nothing.
var Nop Observer = nopObserver{}

type nopObserver struct{}

func (nopObserver) RecordAssetWrite(time.Duration, int64, error) {}
func (nopObserver) RecordAvatarFetch(time.Duration, error)       {}
func (nopObserver) RecordSubmission(time.Duration, error)        {}

// PrometheusObserver exports pipeline metrics to Prometheus.
type PrometheusObserver struct {
	duration    *prometheus.HistogramVec
	submissions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	assetBytes  prometheus.Counter
}

var _ Observer = (*PrometheusObserver)(nil)

// NewPrometheusObserver registers the pipeline metrics into reg under the given
// namespace. Collectors that are already registered are reused.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "smolblog"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &PrometheusObserver{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of asset writes, avatar fetches and submissions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Post submissions by result, which is either ok or the error kind.",
		}, []string{"result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Failed asset writes and avatar fetches.",
		}, []string{"operation"}),
		assetBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_bytes_total",
			Help:      "Bytes written into the upload directory.",
		}),
	}

	var err error

	if o.duration, err = register(reg, o.duration); err != nil {
		return nil, err
	}
	if o.submissions, err = register(reg, o.submissions); err != nil {
		return nil, err
	}
	if o.failures, err = register(reg, o.failures); err != nil {
		return nil, err
	}
	if o.assetBytes, err = register(reg, o.assetBytes); err != nil {
		return nil, err
	}

	return o, nil
}

// register registers the collector, or returns the existing one if an
// identical collector is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}

	return c, errors.Wrap(err, "Failed to register metric")
}

// RecordAssetWrite tracks a write into the upload directory.
func (o *PrometheusObserver) RecordAssetWrite(d time.Duration, size int64, err error) {
	if o == nil {
		return
	}

	o.record("asset_write", d, err)
	if err == nil {
		o.assetBytes.Add(float64(size))
	}
}

// RecordAvatarFetch tracks a remote avatar fetch.
func (o *PrometheusObserver) RecordAvatarFetch(d time.Duration, err error) {
	o.record("avatar_fetch", d, err)
}

// RecordSubmission tracks a whole submission, labeled by its outcome.
func (o *PrometheusObserver) RecordSubmission(d time.Duration, err error) {
	if o == nil {
		return
	}

	o.duration.WithLabelValues("submission").Observe(d.Seconds())

	var result = "ok"
	if err != nil {
		result = smolblog.KindOf(err).String()
	}

	o.submissions.WithLabelValues(result).Inc()
}

func (o *PrometheusObserver) record(op string, d time.Duration, err error) {
	if o == nil {
		return
	}

	o.duration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		o.failures.WithLabelValues(op).Inc()
	}
}
