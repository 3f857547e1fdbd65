// Copyright 2025-2026 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "kroxylite"

var (
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Active client connections.",
		},
	)
	ConnectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total client connections accepted.",
		},
	)
	FramesDecodedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_decoded_total",
			Help:      "Total frames fully decoded, by direction and api key.",
		},
		[]string{"direction", "api_key"},
	)
	FramesOpaqueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_opaque_total",
			Help:      "Total frames passed through opaque, by direction and api key.",
		},
		[]string{"direction", "api_key"},
	)
	FilterHookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "filter_hook_duration_seconds",
			Help:      "Filter hook invocation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"filter", "direction"},
	)
	FilterHookErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_hook_errors_total",
			Help:      "Total filter hook invocations that returned an error.",
		},
		[]string{"filter", "direction"},
	)
	ShortCircuitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "short_circuit_total",
			Help:      "Total requests answered by a filter without reaching the broker.",
		},
		[]string{"filter", "api_key"},
	)
	CorrelationTableSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "correlation_table_size",
			Help:      "In-flight requests awaiting a response, per virtual cluster.",
		},
		[]string{"virtual_cluster"},
	)
)

func init() {
	prometheus.MustRegister(
		ConnectionsActive,
		ConnectionsTotal,
		FramesDecodedTotal,
		FramesOpaqueTotal,
		FilterHookDuration,
		FilterHookErrors,
		ShortCircuitTotal,
		CorrelationTableSize,
	)
}
