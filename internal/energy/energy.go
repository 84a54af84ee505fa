// Package energy estimates the energy and carbon cost of answering a
// message from the wall-clock time it took.
package energy

import "time"

// Reading is the estimated cost of one run.
type Reading struct {
	KWh   float64
	KgCO2 float64
}

// Tracker starts measurements.
type Tracker interface {
	Start() Run
}

// Run is an ongoing measurement.
type Run interface {
	Stop() Reading
}

// Estimator attributes a constant power draw to the duration of a run.
type Estimator struct {
	// Watts is the average draw while a message is processed.
	Watts float64
	// CarbonIntensity is kg CO2 emitted per kWh.
	CarbonIntensity float64

	now func() time.Time
}

// NewEstimator creates an estimator.
func NewEstimator(watts, carbonIntensity float64) *Estimator {
	return &Estimator{Watts: watts, CarbonIntensity: carbonIntensity, now: time.Now}
}

// Start begins a measurement.
func (e *Estimator) Start() Run {
	return &run{e: e, start: e.now()}
}

type run struct {
	e     *Estimator
	start time.Time
}

func (r *run) Stop() Reading {
	hours := r.e.now().Sub(r.start).Hours()
	kwh := r.e.Watts * hours / 1000
	return Reading{KWh: kwh, KgCO2: kwh * r.e.CarbonIntensity}
}

// Noop measures nothing.
type Noop struct{}

func (Noop) Start() Run { return noopRun{} }

type noopRun struct{}

func (noopRun) Stop() Reading { return Reading{} }
