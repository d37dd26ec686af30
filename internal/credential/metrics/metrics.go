package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Issued            prometheus.Counter
	Activated         prometheus.Counter
	ActivateConflicts prometheus.Counter
	Revoked           *prometheus.CounterVec
	Expired           prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Issued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cardplatform_credentials_issued_total",
			Help: "Total number of credentials issued",
		}),
		Activated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cardplatform_credentials_activated_total",
			Help: "Total number of credentials activated",
		}),
		ActivateConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cardplatform_credential_activate_conflicts_total",
			Help: "Activations rejected because the member already held an active credential",
		}),
		Revoked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cardplatform_credentials_revoked_total",
			Help: "Total number of credentials revoked, by prior state",
		}, []string{"from_state"}),
		Expired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cardplatform_credentials_expired_total",
			Help: "Total number of credentials transitioned to expired",
		}),
	}
}

func (m *Metrics) IncrementIssued() {
	m.Issued.Inc()
}

func (m *Metrics) IncrementActivated() {
	m.Activated.Inc()
}

func (m *Metrics) IncrementActivateConflict() {
	m.ActivateConflicts.Inc()
}

func (m *Metrics) IncrementRevoked(fromState string) {
	m.Revoked.WithLabelValues(fromState).Inc()
}

func (m *Metrics) IncrementExpired() {
	m.Expired.Inc()
}
