package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Marketplace struct {
	settlements  *prometheus.CounterVec
	feeVolume    *prometheus.CounterVec
	bonusLegs    *prometheus.CounterVec
	instructions *prometheus.CounterVec
}

var (
	marketplaceOnce     sync.Once
	marketplaceRegistry *Marketplace
)

func MarketplaceMetrics() *Marketplace {
	marketplaceOnce.Do(func() {
		marketplaceRegistry = &Marketplace{
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "marketplace_settlements_total",
				Help: "Count of settled purchases by settlement mode.",
			}, []string{"mode"}),
			feeVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "marketplace_fee_volume_total",
				Help: "Cumulative treasury fee volume in base units per payment mint.",
			}, []string{"mint"}),
			bonusLegs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "marketplace_bonus_legs_total",
				Help: "Count of non-zero reward legs paid by side.",
			}, []string{"side"}),
			instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "marketplace_instructions_total",
				Help: "Count of processed instructions by name and outcome.",
			}, []string{"instruction", "outcome"}),
		}
		prometheus.MustRegister(
			marketplaceRegistry.settlements,
			marketplaceRegistry.feeVolume,
			marketplaceRegistry.bonusLegs,
			marketplaceRegistry.instructions,
		)
	})
	return marketplaceRegistry
}

func (m *Marketplace) ObserveSettlement(mode string, mint string, fee uint64) {
	if m == nil {
		return
	}
	if mode == "" {
		mode = "unknown"
	}
	m.settlements.WithLabelValues(mode).Inc()
	if fee > 0 {
		m.feeVolume.WithLabelValues(mint).Add(float64(fee))
	}
}

func (m *Marketplace) ObserveBonusLeg(side string) {
	if m == nil {
		return
	}
	if side == "" {
		side = "unknown"
	}
	m.bonusLegs.WithLabelValues(side).Inc()
}

func (m *Marketplace) ObserveInstruction(name string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.instructions.WithLabelValues(name, outcome).Inc()
}
