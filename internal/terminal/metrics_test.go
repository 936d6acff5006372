package terminal

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	second, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("second NewMetrics should reuse collectors: %v", err)
	}
	if first.commands != second.commands {
		t.Error("expected the registered counter to be reused")
	}

	if n, err := testutil.GatherAndCount(reg); err != nil || n != 4 {
		t.Errorf("expected 4 collected series before output, got %d", n)
	}
}

func TestManagerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	if err != nil {
		t.Fatal(err)
	}

	sp := &fakeSpawner{}
	cfg := DefaultConfig()
	cfg.DefaultShell = "sh"
	cfg.ScrollbackLines = 3
	cfg.IdleTimeout = 0
	m := NewManager(cfg, sp, WithMetrics(metrics), WithClock(newClock().Now))
	defer m.Shutdown()

	a, _ := m.Create("a")
	_, _ = m.Create("b")
	if got := testutil.ToFloat64(metrics.active); got != 2 {
		t.Errorf("expected 2 active terminals, got %v", got)
	}

	_ = m.SendInputTo(a.ID(), "seq 4\n")
	go sp.session(0).emit("1\n2\n3\n4\n")
	pump(t, m, func() bool { return testutil.ToFloat64(metrics.outputLines.WithLabelValues("stdout")) == 4 })

	if got := testutil.ToFloat64(metrics.commands); got != 1 {
		t.Errorf("expected 1 command, got %v", got)
	}
	// start line, input echo and four output lines through a three-line buffer
	if got := testutil.ToFloat64(metrics.dropped); got != 3 {
		t.Errorf("expected 3 dropped lines, got %v", got)
	}

	sp.session(0).exit(0)
	pump(t, m, func() bool { return testutil.ToFloat64(metrics.exits) == 1 })

	m.Close(a.ID())
	if got := testutil.ToFloat64(metrics.active); got != 1 {
		t.Errorf("expected 1 active terminal, got %v", got)
	}
}
