// Package metrics wraps github.com/prometheus/client_golang to expose
// the queue's job counts, the synthetic concurrency-limited count, and
// connection pool gauges. Grounded on the pack's
// ChuLiYu-raft-recovery internal/metrics: one Collector struct holding
// pre-built prometheus.Collector fields, registered once, mutated by
// plain setter methods rather than scattering metric objects across
// the codebase.
package metrics

import (
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scrapeloop/queue/job"
	"github.com/scrapeloop/queue/store"
)

// Collector holds every gauge this package exposes for one queue
// instance. queueName prefixes every metric name so several Collectors
// (one per side-queue: billing/index/webhook) can share a single
// Prometheus registry without name collisions.
type Collector struct {
	jobCount           *prometheus.GaugeVec
	concurrencyLimited prometheus.Gauge
	poolOpen           prometheus.Gauge
	poolInUse          prometheus.Gauge
	poolIdle           prometheus.Gauge
}

// NewCollector builds a Collector for queueName. Call Register before
// using it with a live registry.
func NewCollector(queueName string) *Collector {
	return &Collector{
		jobCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_job_count", queueName),
			Help: "Current number of jobs by status.",
		}, []string{"status"}),
		concurrencyLimited: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_concurrency_limited_count", queueName),
			Help: "Queued jobs currently blocked on an owner or group concurrency ceiling.",
		}),
		poolOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_pool_open_connections", queueName),
			Help: "Open connections in the store's connection pool.",
		}),
		poolInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_pool_in_use_connections", queueName),
			Help: "Connections currently in use in the store's connection pool.",
		}),
		poolIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_pool_idle_connections", queueName),
			Help: "Idle connections in the store's connection pool.",
		}),
	}
}

// Register registers every gauge with reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, coll := range []prometheus.Collector{
		c.jobCount, c.concurrencyLimited, c.poolOpen, c.poolInUse, c.poolIdle,
	} {
		if err := reg.Register(coll); err != nil {
			return err
		}
	}
	return nil
}

// statuses enumerates every status JobCounts may report, so a status
// with a zero count still resets its gauge back to 0 instead of
// showing a stale prior value.
var statuses = []job.Status{job.Backlog, job.Queued, job.Active, job.Completed, job.Failed}

// Observe copies a store.JobCounts snapshot (see queue.Queue.Snapshot)
// into the job count gauges.
func (c *Collector) Observe(counts store.JobCounts) {
	for _, status := range statuses {
		c.jobCount.WithLabelValues(status.String()).Set(float64(counts.Counts[status]))
	}
	c.concurrencyLimited.Set(float64(counts.ConcurrencyLimited))
}

// ObservePool copies sql.DBStats (see bunstore.Store.DB().DB.Stats())
// into the pool gauges.
func (c *Collector) ObservePool(stats sql.DBStats) {
	c.poolOpen.Set(float64(stats.OpenConnections))
	c.poolInUse.Set(float64(stats.InUse))
	c.poolIdle.Set(float64(stats.Idle))
}
