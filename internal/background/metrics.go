/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package background

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	messages  *prometheus.CounterVec
	verdicts  *prometheus.CounterVec
	manifests prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "btverify_messages_total",
			Help: "Total number of dispatched messages.",
		}, []string{"type"}),
		verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "btverify_verdicts_total",
			Help: "Total number of verdicts returned, by message type and result.",
		}, []string{"type", "result"}),
		manifests: f.NewCounter(prometheus.CounterOpts{
			Name: "btverify_manifests_accepted_total",
			Help: "Total number of manifests verified and recorded.",
		}),
	}
}

func (m *metrics) observeVerdict(t MessageType, valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.verdicts.WithLabelValues(string(t), result).Inc()
}
