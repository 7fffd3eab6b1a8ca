package repstats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestAddUpdatesTxIncrementsBothCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)
	r.AddUpdatesTx(1, 42)
	if got := counterValue(t, r.UpdatesTxCount); got != 1 {
		t.Errorf("count = %v, want 1", got)
	}
	if got := counterValue(t, r.UpdatesTxSize); got != 42 {
		t.Errorf("size = %v, want 42", got)
	}
}

func TestNilRegistryMethodsDoNotPanic(t *testing.T) {
	var r *Registry
	r.AddUpdatesTx(1, 1)
	r.AddMutationsRx(1, 1)
	r.AddUnknownFns(1)
	r.AddMalformed(1)
}
