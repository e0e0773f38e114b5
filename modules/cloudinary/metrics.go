package cloudinary

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for remote calls.
type Observer interface {
	RecordCall(operation string, duration time.Duration, err error)
}

// PrometheusObserver exports remote call metrics to Prometheus.
type PrometheusObserver struct {
	callDuration *prometheus.HistogramVec
	callErrors   *prometheus.CounterVec
}

// NewPrometheusObserver registers the remote call metrics on reg.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "cloudinary"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	observer := &PrometheusObserver{
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Latency of calls to the remote media service.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		callErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_call_errors_total",
			Help:      "Count of failed calls to the remote media service.",
		}, []string{"operation", "kind"}),
	}
	if err := register(reg, &observer.callDuration); err != nil {
		return nil, err
	}
	if err := register(reg, &observer.callErrors); err != nil {
		return nil, err
	}
	return observer, nil
}

// register adopts an already registered collector of the same shape.
func register[C prometheus.Collector](reg prometheus.Registerer, collector *C) error {
	if err := reg.Register(*collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				*collector = existing
				return nil
			}
		}
		return fmt.Errorf("register remote call metric: %w", err)
	}
	return nil
}

// RecordCall tracks call latency and failures.
func (o *PrometheusObserver) RecordCall(operation string, duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.callDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		o.callErrors.WithLabelValues(operation, errorKind(err)).Inc()
	}
}

func errorKind(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return "remote"
	}
	return "transport"
}

type nopObserver struct{}

func (nopObserver) RecordCall(string, time.Duration, error) {}
