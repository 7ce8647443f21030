package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// TestNoopRecorderIsSafe ensures optional injection never panics.
func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveBuildDuration("vertex", time.Second)
	r.IncBuildOutcome("vertex", ResultSuccess)
	r.ObserveBuildPolls("vertex", 3)
	r.IncProgramOutcome(ResultFailed)
	r.SetActiveBuilds(2)
}

func TestPrometheusRecorderRegistersAndRecords(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.ObserveBuildDuration("pixel", 50*time.Millisecond)
	r.IncBuildOutcome("pixel", ResultSuccess)
	r.IncBuildOutcome("pixel", ResultFailed)
	r.ObserveBuildPolls("pixel", 7)
	r.IncProgramOutcome(ResultSuccess)
	r.SetActiveBuilds(4)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	seen := map[string]bool{}
	for _, f := range families {
		seen[f.GetName()] = true
	}
	for _, want := range []string{
		"shaderbuild_build_duration_seconds",
		"shaderbuild_build_outcomes_total",
		"shaderbuild_build_polls",
		"shaderbuild_program_outcomes_total",
		"shaderbuild_active_builds",
	} {
		if !seen[want] {
			t.Fatalf("metric family %s not registered (got %v)", want, seen)
		}
	}
}

// TestNilReceiverSafety mirrors the Recorder contract: methods must be safe
// on a nil PrometheusRecorder.
func TestNilReceiverSafety(t *testing.T) {
	var r *PrometheusRecorder
	r.ObserveBuildDuration("vertex", time.Second)
	r.IncBuildOutcome("vertex", ResultSuccess)
	r.ObserveBuildPolls("vertex", 1)
	r.IncProgramOutcome(ResultSuccess)
	r.SetActiveBuilds(0)
}
