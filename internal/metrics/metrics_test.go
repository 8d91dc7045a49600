package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsRegistered(t *testing.T) {
	SignalsTotal.WithLabelValues("BTC/USDT:USDT", "executed", "").Inc()
	ProtectionAttemptsTotal.WithLabelValues("combined_tagged", "accepted").Inc()
	OrdersTotal.WithLabelValues("BTC/USDT:USDT", "buy", "entry").Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	want := map[string]bool{
		"trader_signals_total":             false,
		"trader_protection_attempts_total": false,
		"trader_orders_total":              false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestSignalsCounterIncrements(t *testing.T) {
	c := SignalsTotal.WithLabelValues("ETH/USDT:USDT", "skipped", "duplicate")
	before := testutil.ToFloat64(c)
	c.Inc()
	if got := testutil.ToFloat64(c); got != before+1 {
		t.Fatalf("counter = %v, want %v", got, before+1)
	}
}
