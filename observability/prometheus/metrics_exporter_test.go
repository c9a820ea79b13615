package prometheus

import (
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsExporter_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("taskfiber", reg)
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exporter.RecordTaskCompleted(true)
	exporter.RecordTaskCompleted(false)
	exporter.RecordQueueDepth(false, 7)
	exporter.RecordFiberPoolIdle(3)
	exporter.RecordWaitListLen(2)

	if got := testutil.ToFloat64(exporter.taskCompletedTotal.WithLabelValues("immediate")); got != 1 {
		t.Fatalf("immediate completed total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.taskCompletedTotal.WithLabelValues("regular")); got != 1 {
		t.Fatalf("regular completed total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.queueDepth.WithLabelValues("regular")); got != 7 {
		t.Fatalf("queue depth = %v, want 7", got)
	}
	if got := testutil.ToFloat64(exporter.fiberPoolIdle); got != 3 {
		t.Fatalf("fiber pool idle = %v, want 3", got)
	}
	if got := testutil.ToFloat64(exporter.waitListLen); got != 2 {
		t.Fatalf("wait list length = %v, want 2", got)
	}
}

func TestMetricsExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetricsExporter("taskfiber", reg)
	if err != nil {
		t.Fatalf("first NewMetricsExporter failed: %v", err)
	}
	second, err := NewMetricsExporter("taskfiber", reg)
	if err != nil {
		t.Fatalf("second NewMetricsExporter failed: %v", err)
	}

	first.RecordTaskCompleted(false)
	second.RecordTaskCompleted(false)

	got := testutil.ToFloat64(first.taskCompletedTotal.WithLabelValues("regular"))
	if got != 2 {
		t.Fatalf("shared completed counter = %v, want 2", got)
	}
}

func TestMetricsExporter_NilReceiverIsSafe(t *testing.T) {
	var exporter *MetricsExporter
	exporter.RecordTaskCompleted(true)
	exporter.RecordQueueDepth(false, 1)
	exporter.RecordFiberPoolIdle(1)
	exporter.RecordWaitListLen(1)
}
