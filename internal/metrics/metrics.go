// Package metrics exposes agent activity as Prometheus metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/tripwire/internal/engine"
)

// Collector holds the agent metrics. Create one per registry.
type Collector struct {
	fired        *prometheus.CounterVec
	actionErrors *prometheus.CounterVec
	ticks        *prometheus.CounterVec
	settles      *prometheus.CounterVec
	idle         prometheus.Gauge
	tickDuration prometheus.Histogram
}

// New creates the collector and registers it with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		fired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripwire_trigger_fired_total",
				Help: "Number of times a trigger's actions ran; generated ids are grouped by kind",
			},
			[]string{"trigger"},
		),
		actionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripwire_action_errors_total",
				Help: "Number of failed actions per trigger",
			},
			[]string{"trigger"},
		),
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripwire_ticks_total",
				Help: "Number of scheduler ticks, split by whether a change was observed",
			},
			[]string{"changed"},
		),
		settles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripwire_settle_total",
				Help: "Number of finished settle requests by outcome",
			},
			[]string{"outcome"},
		),
		idle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripwire_idle_ticks",
			Help: "Consecutive ticks without a state change",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tripwire_tick_duration_seconds",
			Help:    "Duration of scheduler ticks",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}

	for _, col := range []prometheus.Collector{c.fired, c.actionErrors, c.ticks, c.settles, c.idle, c.tickDuration} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Hooks returns engine hooks that update the collector.
func (c *Collector) Hooks() engine.Hooks {
	return engine.Hooks{
		OnTick: func(e engine.TickEvent) {
			c.ticks.WithLabelValues(strconv.FormatBool(e.Changed)).Inc()
			c.idle.Set(float64(e.IdleTicks))
			c.tickDuration.Observe(e.Duration.Seconds())
		},
		OnFire: func(e engine.FireEvent) {
			label := engine.TriggerLabel(e.TriggerID)
			c.fired.WithLabelValues(label).Inc()
			if len(e.Errors) > 0 {
				c.actionErrors.WithLabelValues(label).Add(float64(len(e.Errors)))
			}
		},
		OnSettle: func(e engine.SettleEvent) {
			c.settles.WithLabelValues(string(e.Outcome)).Inc()
		},
	}
}
