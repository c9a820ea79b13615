// Package prometheus adapts ts.Metrics to Prometheus collectors,
// following the registration-with-fallback pattern used throughout this
// pack for Prometheus integrations.
package prometheus

import (
	"errors"
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/taskfiber/ts"
)

// MetricsExporter adapts ts.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskCompletedTotal *prom.CounterVec
	queueDepth         *prom.GaugeVec
	fiberPoolIdle      prom.Gauge
	waitListLen        prom.Gauge
}

var _ ts.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for
// ts.Metrics. If reg is nil, prom.DefaultRegisterer is used.
func NewMetricsExporter(namespace string, reg prom.Registerer) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "taskfiber"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	completedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_completed_total",
		Help:      "Total number of tasks that ran to completion.",
	}, []string{"priority"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current depth of a task queue.",
	}, []string{"priority"})
	fiberPoolIdle := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "fiber_pool_idle",
		Help:      "Number of worker fibers currently idle in the pool.",
	})
	waitListLen := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "wait_list_length",
		Help:      "Number of fibers currently parked in the wait list.",
	})

	var err error
	if completedVec, err = registerCollector(reg, completedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}
	if fiberPoolIdle, err = registerCollector(reg, fiberPoolIdle); err != nil {
		return nil, err
	}
	if waitListLen, err = registerCollector(reg, waitListLen); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskCompletedTotal: completedVec,
		queueDepth:         queueDepthVec,
		fiberPoolIdle:      fiberPoolIdle,
		waitListLen:        waitListLen,
	}, nil
}

func (m *MetricsExporter) RecordTaskCompleted(immediate bool) {
	if m == nil {
		return
	}
	m.taskCompletedTotal.WithLabelValues(priorityLabel(immediate)).Inc()
}

func (m *MetricsExporter) RecordQueueDepth(immediate bool, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(priorityLabel(immediate)).Set(float64(depth))
}

func (m *MetricsExporter) RecordFiberPoolIdle(idle int) {
	if m == nil {
		return
	}
	m.fiberPoolIdle.Set(float64(idle))
}

func (m *MetricsExporter) RecordWaitListLen(n int) {
	if m == nil {
		return
	}
	m.waitListLen.Set(float64(n))
}

func priorityLabel(immediate bool) string {
	if immediate {
		return "immediate"
	}
	return "regular"
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
