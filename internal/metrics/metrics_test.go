package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegister_Once(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	Register(reg)

	FramesIn.WithLabelValues("SCHEMA_DEFINITION").Inc()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() != "universe_session_frames_in_total" {
			continue
		}
		found = true
		if got := mf.GetMetric()[0].GetCounter().GetValue(); got < 1 {
			t.Errorf("frames_in = %v; want >= 1", got)
		}
	}
	if !found {
		t.Error("frames_in_total not gathered")
	}
}
