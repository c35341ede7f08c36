// Package metrics records build metrics. Components default to NoopRecorder;
// serve mode swaps in a PrometheusRecorder and exposes it on /metrics.
package metrics

import "time"

// Build outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Recorder defines observability hooks for site builds.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	ObserveRenderDuration(d time.Duration)
	IncBuildOutcome(outcome string)
	SetPages(n int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration)  {}
func (NoopRecorder) ObserveRenderDuration(time.Duration) {}
func (NoopRecorder) IncBuildOutcome(string)              {}
func (NoopRecorder) SetPages(int)                        {}
