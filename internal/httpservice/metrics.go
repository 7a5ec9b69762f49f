package httpservice

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the registry's prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	registrations      prometheus.Gauge
	contexts           prometheus.Gauge
	operations         *prometheus.CounterVec
	securityRejections *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. An empty
// namespace defaults to "httpservice".
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "httpservice"
	}
	factory := promauto.With(reg)

	return &Metrics{
		registrations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registrations",
			Help:      "Number of live alias registrations",
		}),
		contexts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "contexts",
			Help:      "Number of routing contexts created by the registry",
		}),
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Registry operations by outcome",
		}, []string{"operation", "result"}),
		securityRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "security_rejections_total",
			Help:      "Requests stopped by a registration's security check, by routing context",
		}, []string{"context_path"}),
	}
}

func (m *Metrics) operation(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, resultLabel(err)).Inc()
}

func (m *Metrics) setSizes(registrations, contexts int) {
	if m == nil {
		return
	}
	m.registrations.Set(float64(registrations))
	m.contexts.Set(float64(contexts))
}

func (m *Metrics) securityRejected(contextPath string) {
	if m == nil {
		return
	}
	m.securityRejections.WithLabelValues(contextPath).Inc()
}
