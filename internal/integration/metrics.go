package integration

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts protocol outcomes per chain. A nil *Metrics records nothing.
type Metrics struct {
	transfers   *prometheus.CounterVec
	redemptions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	governance  *prometheus.CounterVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circle_integration_transfers_total",
				Help: "Number of transfers published",
			},
			[]string{"chain", "target_chain"},
		),
		redemptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circle_integration_redemptions_total",
				Help: "Number of deposits redeemed",
			},
			[]string{"chain", "source_chain"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circle_integration_rejections_total",
				Help: "Number of rejected operations by class",
			},
			[]string{"chain", "operation", "class"},
		),
		governance: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circle_integration_governance_actions_total",
				Help: "Number of governance actions applied",
			},
			[]string{"chain", "action"},
		),
	}
	registerer.MustRegister(m.transfers, m.redemptions, m.rejections, m.governance)
	return m
}

func (m *Metrics) transfer(chain, target string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(chain, target).Inc()
}

func (m *Metrics) redemption(chain, source string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(chain, source).Inc()
}

func (m *Metrics) rejection(chain, operation string, class ErrorClass) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(chain, operation, string(class)).Inc()
}

func (m *Metrics) governanceAction(chain, action string) {
	if m == nil {
		return
	}
	m.governance.WithLabelValues(chain, action).Inc()
}
