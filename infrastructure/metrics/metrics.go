// Package metrics exposes miner and multiverse statistics to prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "anchord"

// Metrics holds every collector of a node. Each instance owns its own
// registry so that several nodes can run in one process.
type Metrics struct {
	registry *prometheus.Registry

	hashRate       *prometheus.GaugeVec
	cycles         prometheus.Counter
	accepted       *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	staleWork      prometheus.Counter
	workerFaults   prometheus.Counter
	reorgs         prometheus.Counter
	pruned         prometheus.Counter
	records        *prometheus.CounterVec
	headHeight     prometheus.Gauge
	multiverseSize prometheus.Gauge
	holding        prometheus.Gauge
}

// New creates and registers the collectors
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		hashRate: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "miner",
			Name:      "hash_rate",
			Help:      "Nonces tried per second by each worker over its last report",
		}, []string{"worker"}),
		cycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "miner",
			Name:      "cycles_total",
			Help:      "Nonces tried by all workers",
		}),
		accepted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "multiverse",
			Name:      "accepted_total",
			Help:      "Candidates accepted into the multiverse",
		}, []string{"status"}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "multiverse",
			Name:      "rejected_total",
			Help:      "Candidates rejected by the multiverse",
		}, []string{"reason"}),
		staleWork: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "miner",
			Name:      "stale_work_total",
			Help:      "Candidates and reports discarded for referencing a superseded work set",
		}),
		workerFaults: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "miner",
			Name:      "worker_faults_total",
			Help:      "Workers that exited unexpectedly and were respawned",
		}),
		reorgs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "multiverse",
			Name:      "reorgs_total",
			Help:      "Head changes to an entry not extending the previous head",
		}),
		pruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "multiverse",
			Name:      "pruned_total",
			Help:      "Entries pruned for diverging too deep below the head",
		}),
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rover",
			Name:      "records_total",
			Help:      "Source records ingested per source",
		}, []string{"source"}),
		headHeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "multiverse",
			Name:      "head_height",
			Help:      "Height of the canonical head",
		}),
		multiverseSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "multiverse",
			Name:      "entries",
			Help:      "Entries in the multiverse, genesis included",
		}),
		holding: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worksetbuilder",
			Name:      "holding",
			Help:      "1 while no work set can be built",
		}),
	}
}

// RecordWorkerReport records a worker's periodic metric report
func (m *Metrics) RecordWorkerReport(workerID int, cycles uint64, hashRate float64) {
	m.hashRate.WithLabelValues(strconv.Itoa(workerID)).Set(hashRate)
	m.cycles.Add(float64(cycles))
}

// RecordAccepted records an accepted candidate
func (m *Metrics) RecordAccepted(status string, reorg bool, pruned int) {
	m.accepted.WithLabelValues(status).Inc()
	if reorg {
		m.reorgs.Inc()
	}
	m.pruned.Add(float64(pruned))
}

// RecordRejected records a rejected candidate
func (m *Metrics) RecordRejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

// RecordStaleWork records a discarded stale candidate or report
func (m *Metrics) RecordStaleWork() {
	m.staleWork.Inc()
}

// RecordWorkerFault records a faulted worker
func (m *Metrics) RecordWorkerFault() {
	m.workerFaults.Inc()
}

// RecordSourceRecord records an ingested source record
func (m *Metrics) RecordSourceRecord(sourceID string) {
	m.records.WithLabelValues(sourceID).Inc()
}

// SetMultiverse records the shape of the multiverse
func (m *Metrics) SetMultiverse(headHeight uint64, size int) {
	m.headHeight.Set(float64(headHeight))
	m.multiverseSize.Set(float64(size))
}

// SetHolding records whether the work set builder is holding
func (m *Metrics) SetHolding(holding bool) {
	if holding {
		m.holding.Set(1)
		return
	}
	m.holding.Set(0)
}

// Handler returns the HTTP handler exposing the collectors
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer returns the registry backing the collectors
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
