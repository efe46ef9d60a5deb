// metrics.go is a thin abstraction over Prometheus so OmniCache can be used
// with or without metrics. When the caller passes a *prometheus.Registry via
// WithMetrics, labeled collectors are registered; otherwise a no-op sink is
// used and the hot path (SampleWrite/SampleRead) pays nothing for it.
//
// ┌──────────────────────────────────┬───────┬──────────────┐
// │ Metric                           │ Type  │ Labels       │
// ├───────────────────────────────────┼───────┼──────────────┤
// │ omnicache_writes_total            │ Ctr   │ id, result   │
// │ omnicache_reads_total             │ Ctr   │ id, result   │
// │ omnicache_samples_total           │ Gge   │ id           │
// │ omnicache_samples_array           │ Gge   │ id           │
// │ omnicache_samples_alloc           │ Gge   │ id           │
// │ omnicache_consolidations_total    │ Ctr   │ id, flags    │
// │ omnicache_samples_removed_total   │ Ctr   │ id           │
// └──────────────────────────────────┴───────┴──────────────┘
//
// © 2025 omnicache authors. MIT License.
package omnicache

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsSink abstracts away the concrete backend (Prometheus vs noop). Not
// exposed outside the package.
type metricsSink interface {
	incWrite(id string, result WriteResult)
	incRead(id string, result ReadResult)
	setSamplesTotal(id string, v uint32)
	setSamplesArray(id string, v uint32)
	setSamplesAlloc(id string, v uint32)
	incConsolidation(id string, flags ConsolidationFlags)
	addSamplesRemoved(id string, n uint32)
}

type noopMetrics struct{}

func (noopMetrics) incWrite(string, WriteResult)            {}
func (noopMetrics) incRead(string, ReadResult)              {}
func (noopMetrics) setSamplesTotal(string, uint32)          {}
func (noopMetrics) setSamplesArray(string, uint32)          {}
func (noopMetrics) setSamplesAlloc(string, uint32)          {}
func (noopMetrics) incConsolidation(string, ConsolidationFlags) {}
func (noopMetrics) addSamplesRemoved(string, uint32)        {}

type promMetrics struct {
	writes           *prometheus.CounterVec
	reads            *prometheus.CounterVec
	samplesTotal     *prometheus.GaugeVec
	samplesArray     *prometheus.GaugeVec
	samplesAlloc     *prometheus.GaugeVec
	consolidations   *prometheus.CounterVec
	samplesRemoved   *prometheus.CounterVec
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	idLabel := []string{"id"}
	idResultLabel := []string{"id", "result"}
	idFlagsLabel := []string{"id", "flags"}

	pm := &promMetrics{
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omnicache",
			Name:      "writes_total",
			Help:      "Number of SampleWrite calls, by result.",
		}, idResultLabel),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omnicache",
			Name:      "reads_total",
			Help:      "Number of SampleRead calls, by result.",
		}, idResultLabel),
		samplesTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "omnicache",
			Name:      "samples_total",
			Help:      "num_samples_tot: live non-SKIP samples (roots + sub-samples).",
		}, idLabel),
		samplesArray: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "omnicache",
			Name:      "samples_array",
			Help:      "num_samples_array: populated root slots.",
		}, idLabel),
		samplesAlloc: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "omnicache",
			Name:      "samples_alloc",
			Help:      "num_samples_alloc: root array capacity.",
		}, idLabel),
		consolidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omnicache",
			Name:      "consolidations_total",
			Help:      "Number of Consolidate calls, by flag set.",
		}, idFlagsLabel),
		samplesRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omnicache",
			Name:      "samples_removed_total",
			Help:      "Samples removed during consolidation sweeps.",
		}, idLabel),
	}

	reg.MustRegister(pm.writes, pm.reads, pm.samplesTotal, pm.samplesArray, pm.samplesAlloc, pm.consolidations, pm.samplesRemoved)
	return pm
}

func (m *promMetrics) incWrite(id string, result WriteResult) {
	m.writes.WithLabelValues(id, result.String()).Inc()
}

func (m *promMetrics) incRead(id string, result ReadResult) {
	m.reads.WithLabelValues(id, result.String()).Inc()
}

func (m *promMetrics) setSamplesTotal(id string, v uint32) {
	m.samplesTotal.WithLabelValues(id).Set(float64(v))
}

func (m *promMetrics) setSamplesArray(id string, v uint32) {
	m.samplesArray.WithLabelValues(id).Set(float64(v))
}

func (m *promMetrics) setSamplesAlloc(id string, v uint32) {
	m.samplesAlloc.WithLabelValues(id).Set(float64(v))
}

func (m *promMetrics) incConsolidation(id string, flags ConsolidationFlags) {
	m.consolidations.WithLabelValues(id, strconv.FormatUint(uint64(flags), 10)).Inc()
}

func (m *promMetrics) addSamplesRemoved(id string, n uint32) {
	m.samplesRemoved.WithLabelValues(id).Add(float64(n))
}

// newMetricsSink picks the implementation based on whether the caller
// opted in via WithMetrics.
func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
