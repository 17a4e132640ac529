package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestServeRegistersMetrics(t *testing.T) {
	srv := Serve(":0")
	defer srv.Close()

	SignalsEmitted.WithLabelValues("S17A6", "STRONG_BEARISH").Inc()
	ResolverActions.WithLabelValues("CLOSE").Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	want := map[string]bool{"signals_emitted_total": false, "resolver_actions_total": false}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("%s metric not found", name)
		}
	}
}

func TestOpenSignalsGauge(t *testing.T) {
	OpenSignals.Set(3)
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "open_signals" {
			continue
		}
		if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 3 {
			t.Fatalf("expected gauge 3, got %.0f", got)
		}
		return
	}
	t.Fatalf("open_signals metric not found")
}
