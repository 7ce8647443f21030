package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	buildDuration  *prom.HistogramVec
	buildOutcomes  *prom.CounterVec
	buildPolls     *prom.HistogramVec
	programOutcome *prom.CounterVec
	activeBuilds   prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		buildDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "shaderbuild",
			Name:      "build_duration_seconds",
			Help:      "Duration of individual shader builds",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "shaderbuild",
			Name:      "build_outcomes_total",
			Help:      "Shader build outcomes by final status",
		}, []string{"stage", "result"}),
		buildPolls: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "shaderbuild",
			Name:      "build_polls",
			Help:      "Number of status polls a build needed to converge",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}, []string{"stage"}),
		programOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "shaderbuild",
			Name:      "program_outcomes_total",
			Help:      "Joint program link outcomes by final status",
		}, []string{"result"}),
		activeBuilds: prom.NewGauge(prom.GaugeOpts{
			Namespace: "shaderbuild",
			Name:      "active_builds",
			Help:      "Number of builds currently in flight",
		}),
	}
	reg.MustRegister(pr.buildDuration, pr.buildOutcomes, pr.buildPolls, pr.programOutcome, pr.activeBuilds)
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(stage string, d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(stage string, result ResultLabel) {
	if p == nil || p.buildOutcomes == nil {
		return
	}
	p.buildOutcomes.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveBuildPolls(stage string, polls int) {
	if p == nil || p.buildPolls == nil {
		return
	}
	p.buildPolls.WithLabelValues(stage).Observe(float64(polls))
}

func (p *PrometheusRecorder) IncProgramOutcome(result ResultLabel) {
	if p == nil || p.programOutcome == nil {
		return
	}
	p.programOutcome.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) SetActiveBuilds(n int) {
	if p == nil || p.activeBuilds == nil {
		return
	}
	p.activeBuilds.Set(float64(n))
}
