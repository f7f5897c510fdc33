package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveTick(t *testing.T) {
	ok := Ticks.WithLabelValues("test_tick", "accepting")
	failures := Failures.WithLabelValues("test_tick")
	beforeTicks := testutil.ToFloat64(ok)
	beforeFailures := testutil.ToFloat64(failures)

	ObserveTick("test_tick", "accepting", 10*time.Millisecond, false)
	ObserveTick("test_tick", "accepting", 20*time.Millisecond, true)

	if got := testutil.ToFloat64(ok) - beforeTicks; got != 2 {
		t.Errorf("ticks delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(failures) - beforeFailures; got != 1 {
		t.Errorf("failures delta = %v, want 1", got)
	}
}

func TestObserveTransition(t *testing.T) {
	c := Transitions.WithLabelValues("test_from", "test_to")
	before := testutil.ToFloat64(c)

	ObserveTransition("test_from", "test_to")

	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Errorf("transitions delta = %v, want 1", got)
	}
}

func TestLoopGauge(t *testing.T) {
	g := ActiveLoops.WithLabelValues("test_loops")

	LoopStarted("test_loops")
	LoopStarted("test_loops")
	if got := testutil.ToFloat64(g); got != 2 {
		t.Errorf("active loops = %v, want 2", got)
	}

	LoopStopped("test_loops")
	LoopStopped("test_loops")
	if got := testutil.ToFloat64(g); got != 0 {
		t.Errorf("active loops = %v, want 0", got)
	}
}

func TestCollectorsRegistered(t *testing.T) {
	ObserveTick("test_registered", "timing_out", time.Millisecond, false)

	n, err := testutil.GatherAndCount(prometheus.DefaultGatherer, "pollphase_poller_ticks_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if n == 0 {
		t.Error("pollphase_poller_ticks_total not found in default registry")
	}
}
