// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric label values
const (
	resultOK       = "ok"
	resultRejected = "rejected"
	resultFailed   = "failed"

	opAdd    = "add"
	opRemove = "remove"
)

// Metrics counts AMM operations. A nil *Metrics records nothing.
type Metrics struct {
	swaps         *prometheus.CounterVec
	liquidityOps  *prometheus.CounterVec
	verifications *prometheus.CounterVec
}

// NewMetrics creates the AMM counters and registers them on reg when non-nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		swaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zkamm",
			Name:      "swaps_total",
			Help:      "Confidential swaps by result.",
		}, []string{"result"}),
		liquidityOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zkamm",
			Name:      "liquidity_ops_total",
			Help:      "Committed liquidity operations by kind.",
		}, []string{"op"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zkamm",
			Name:      "proof_verifications_total",
			Help:      "Proof verifications by result.",
		}, []string{"result"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.swaps, m.liquidityOps, m.verifications} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) swap(result string) {
	if m != nil {
		m.swaps.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) liquidity(op string) {
	if m != nil {
		m.liquidityOps.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) verification(result string) {
	if m != nil {
		m.verifications.WithLabelValues(result).Inc()
	}
}
