package energy

import (
	"math"
	"testing"
	"time"
)

func TestEstimator(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := NewEstimator(1000, 0.5)
	e.now = func() time.Time { return clock }

	r := e.Start()
	clock = clock.Add(90 * time.Minute)
	got := r.Stop()

	if math.Abs(got.KWh-1.5) > 1e-9 {
		t.Errorf("KWh = %f, want 1.5", got.KWh)
	}
	if math.Abs(got.KgCO2-0.75) > 1e-9 {
		t.Errorf("KgCO2 = %f, want 0.75", got.KgCO2)
	}
}

func TestNoop(t *testing.T) {
	if got := (Noop{}).Start().Stop(); got != (Reading{}) {
		t.Errorf("Noop reading = %+v", got)
	}
}
