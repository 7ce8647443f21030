// Package metrics defines the observability hooks for shader build
// pipelines and a Prometheus-backed implementation.
package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// Recorder defines observability hooks for build and stage metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe on the NoopRecorder so injection stays optional.
type Recorder interface {
	ObserveBuildDuration(stage string, d time.Duration)
	IncBuildOutcome(stage string, result ResultLabel)
	ObserveBuildPolls(stage string, polls int)
	IncProgramOutcome(result ResultLabel)
	SetActiveBuilds(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(string, time.Duration) {}
func (NoopRecorder) IncBuildOutcome(string, ResultLabel)        {}
func (NoopRecorder) ObserveBuildPolls(string, int)              {}
func (NoopRecorder) IncProgramOutcome(ResultLabel)              {}
func (NoopRecorder) SetActiveBuilds(int)                        {}
