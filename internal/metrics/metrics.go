// Package metrics samples executed statements into Prometheus collectors
// through a query hook.
package metrics

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coregx/sqlmap/internal/core"
)

// unquote strips identifier quotes of every dialect from table names.
var unquote = strings.NewReplacer(`"`, "", "`", "", "[", "", "]", "")

// Collector holds the statement metrics of one database handle.
type Collector struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
	rows     *prometheus.CounterVec
}

// New creates the collectors. Each metric carries the dialect as a constant
// label so that several handles can share a registry.
func New(dialect string) *Collector {
	constLabels := prometheus.Labels{"dialect": dialect}
	return &Collector{
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "sqlmap_statement_duration_seconds",
				Help:        "Duration of executed statements",
				ConstLabels: constLabels,
				Buckets: []float64{
					.0005, .001, .0025, .005, .01, .025, .05,
					.1, .25, .5, 1, 2.5, 5, 10,
				},
			},
			[]string{"status", "operation", "table"},
		),
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "sqlmap_statements_total",
				Help:        "Total of executed statements",
				ConstLabels: constLabels,
			},
			[]string{"status", "operation", "table"},
		),
		rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "sqlmap_rows_affected_total",
				Help:        "Rows affected or returned by executed statements",
				ConstLabels: constLabels,
			},
			[]string{"operation", "table"},
		),
	}
}

// Register registers all collectors on registry.
func (c *Collector) Register(registry prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{c.duration, c.total, c.rows} {
		if err := registry.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister is like Register but panics when a metric with the same name
// is already registered.
func (c *Collector) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(c.duration, c.total, c.rows)
}

// Hook returns the query hook sampling every statement into c.
func (c *Collector) Hook() core.QueryHook {
	return func(_ context.Context, e core.QueryEvent) {
		status := "ok"
		if e.Error != nil {
			status = "error"
		}
		table := unquote.Replace(e.Table)
		op := strings.ToLower(e.Operation)

		c.duration.WithLabelValues(status, op, table).Observe(e.Duration.Seconds())
		c.total.WithLabelValues(status, op, table).Inc()
		if e.RowsAffected > 0 {
			c.rows.WithLabelValues(op, table).Add(float64(e.RowsAffected))
		}
	}
}
