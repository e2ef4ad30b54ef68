package internal

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayerMetrics counts what the relayer did with each VAA. A nil *RelayerMetrics records nothing.
type RelayerMetrics struct {
	outcomes *prometheus.CounterVec
}

func NewRelayerMetrics(registerer prometheus.Registerer) *RelayerMetrics {
	m := &RelayerMetrics{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circle_integration_relayer_vaas_total",
				Help: "Number of VAAs handled by the relayer by outcome",
			},
			[]string{"source_chain", "outcome"},
		),
	}
	registerer.MustRegister(m.outcomes)
	return m
}

const (
	outcomeRedeemed        = "redeemed"
	outcomeAlreadyRedeemed = "already_redeemed"
	outcomeSkipped         = "skipped"
	outcomeFailed          = "failed"
)

func (m *RelayerMetrics) record(sourceChain uint16, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(fmt.Sprintf("%d", sourceChain), outcome).Inc()
}
