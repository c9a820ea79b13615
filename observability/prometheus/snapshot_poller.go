package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/taskfiber/ts"
)

// ReportProvider supplies the live Report to poll. ts.LiveReport matches
// this signature directly.
type ReportProvider func() *ts.Report

// ReportPoller periodically exports a running task system's Report
// counters into Prometheus gauges, for deployments that want a
// process-wide view alongside the inline MetricsExporter callbacks.
type ReportPoller struct {
	interval time.Duration
	provide  ReportProvider

	taskCount *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewReportPoller creates a report poller and registers its collectors.
func NewReportPoller(reg prom.Registerer, interval time.Duration, provide ReportProvider) (*ReportPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	taskCount := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskfiber",
		Name:      "report_task_count",
		Help:      "Cumulative tasks submitted this run, by priority.",
	}, []string{"priority"})

	var err error
	if taskCount, err = registerCollector(reg, taskCount); err != nil {
		return nil, err
	}

	return &ReportPoller{
		interval:  interval,
		provide:   provide,
		taskCount: taskCount,
	}, nil
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *ReportPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *ReportPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *ReportPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *ReportPoller) collectOnce() {
	report := p.provide()
	if report == nil {
		return
	}
	p.taskCount.WithLabelValues("regular").Set(float64(report.TaskCount()))
	p.taskCount.WithLabelValues("immediate").Set(float64(report.TaskImmediateCount()))
}
