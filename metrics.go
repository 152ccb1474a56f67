package relocate

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "relocate"

type metrics struct {
	redirects *prometheus.CounterVec
	recorded  prometheus.Counter
	evicted   prometheus.Counter
	discarded prometheus.Counter
}

// newMetrics creates the collectors and registers them with reg.
// With a nil reg, the collectors work but are not exported.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		redirects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "redirects_total",
			Help:      "Total number of redirects issued",
		}, []string{"kind", "status"}),

		recorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "locations_recorded_total",
			Help:      "Total number of locations appended to a session history",
		}),

		evicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "locations_evicted_total",
			Help:      "Total number of locations evicted from a full session history",
		}),

		discarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "discarded_writes_total",
			Help:      "Total number of response writes dropped after a redirect",
		}),
	}
}

func (m *metrics) redirect(kind string, status int) {
	m.redirects.WithLabelValues(kind, strconv.Itoa(status)).Inc()
}
