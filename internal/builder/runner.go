// Package builder provides the canonical build execution path for
// shaderbuild. All execution paths (CLI, daemon, tests) should route through
// Runner: it loads the manifest sources, drives every shader's status
// accessor on a fixed polling cadence until terminal, performs the joint
// program links, and records history and metrics.
package builder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/shaderbuild/internal/backend"
	"git.home.luguber.info/inful/shaderbuild/internal/config"
	"git.home.luguber.info/inful/shaderbuild/internal/history"
	"git.home.luguber.info/inful/shaderbuild/internal/logfields"
	"git.home.luguber.info/inful/shaderbuild/internal/metrics"
	"git.home.luguber.info/inful/shaderbuild/internal/program"
	"git.home.luguber.info/inful/shaderbuild/internal/shader"
)

// Result is the outcome of one shader build.
type Result struct {
	Name      string
	Stage     string
	Status    shader.Status
	Polls     int
	Duration  time.Duration
	Resources int
	Log       string
	Err       error
}

// ProgramResult is the outcome of one joint program link.
type ProgramResult struct {
	Name  string
	State program.State
	Polls int
	Err   error
}

// Runner executes manifest builds against a device.
type Runner struct {
	dev      backend.Device
	cfg      *config.Config
	store    *history.Store
	recorder metrics.Recorder
}

// New creates a runner. History and metrics are optional; inject them with
// SetStore and SetRecorder.
func New(dev backend.Device, cfg *config.Config) *Runner {
	if dev == nil {
		panic("builder: device is required")
	}
	if cfg == nil {
		panic("builder: config is required")
	}
	return &Runner{
		dev:      dev,
		cfg:      cfg,
		recorder: metrics.NoopRecorder{},
	}
}

// SetStore injects a build history store (optional).
func (r *Runner) SetStore(s *history.Store) { r.store = s }

// SetRecorder injects a metrics recorder (optional).
func (r *Runner) SetRecorder(rec metrics.Recorder) {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	r.recorder = rec
}

type build struct {
	cfg     config.ShaderConfig
	shader  *shader.Shader
	sink    *bytes.Buffer
	started time.Time
	result  Result
}

// BuildAll executes every manifest shader and program group once. The
// returned error is non-nil only for infrastructure problems (unreadable
// source files, cancelled context); individual build failures are reported
// through the results.
func (r *Runner) BuildAll(ctx context.Context) ([]Result, []ProgramResult, error) {
	builds, err := r.startBuilds()
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		for _, b := range builds {
			if b.shader != nil {
				b.shader.Close()
			}
		}
	}()

	if err := r.pollBuilds(ctx, builds); err != nil {
		return nil, nil, err
	}

	results := make([]Result, 0, len(builds))
	byName := make(map[string]*shader.Shader, len(builds))
	for _, b := range builds {
		r.finishBuild(b)
		results = append(results, b.result)
		if b.result.Status == shader.StatusReady {
			byName[b.cfg.Name] = b.shader
		}
	}

	programResults, err := r.linkPrograms(ctx, byName)
	if err != nil {
		return results, programResults, err
	}

	r.record(ctx, results)
	return results, programResults, nil
}

// startBuilds reads every manifest source and submits the builds. A shader
// whose synchronous build fails inside construction is recorded as a failed
// result rather than aborting the batch.
func (r *Runner) startBuilds() ([]*build, error) {
	builds := make([]*build, 0, len(r.cfg.Shaders))
	for _, sc := range r.cfg.Shaders {
		source, err := os.ReadFile(sc.File)
		if err != nil {
			return nil, fmt.Errorf("read shader source %s: %w", sc.File, err)
		}

		b := &build{cfg: sc, sink: &bytes.Buffer{}, started: time.Now()}
		b.result = Result{Name: sc.Name, Stage: sc.Stage}

		s, err := shader.New(r.dev, shader.Options{
			Name:                         sc.Name,
			Stage:                        backend.Stage(sc.Stage),
			Source:                       string(source),
			Dialect:                      shader.Dialect(sc.Dialect),
			Asynchronous:                 r.cfg.Backend.Async,
			LoadConstantBufferReflection: sc.LoadConstantBuffers,
			LogSink:                      b.sink,
		})
		if err != nil {
			b.result.Status = shader.StatusFailed
			b.result.Err = err
			slog.Error("Shader build failed",
				logfields.Shader(sc.Name), logfields.Stage(sc.Stage), logfields.Error(err))
		} else {
			b.shader = s
		}
		builds = append(builds, b)
	}
	return builds, nil
}

// pollBuilds drives the status accessors on the configured cadence until
// every build is terminal. Correctness does not depend on the interval, only
// convergence speed.
func (r *Runner) pollBuilds(ctx context.Context, builds []*build) error {
	interval := r.cfg.PollInterval()
	for {
		active := 0
		for _, b := range builds {
			if b.shader == nil || b.result.Status != "" {
				continue
			}
			b.result.Polls++
			switch b.shader.Status() {
			case shader.StatusCompiling:
				active++
			case shader.StatusReady:
				b.result.Status = shader.StatusReady
			case shader.StatusFailed:
				b.result.Status = shader.StatusFailed
				b.result.Err = b.shader.Err()
			}
		}
		r.recorder.SetActiveBuilds(active)
		if active == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// finishBuild captures reflection counts, diagnostics, duration, and metrics
// for a terminal build.
func (r *Runner) finishBuild(b *build) {
	b.result.Duration = time.Since(b.started)
	b.result.Log = b.sink.String()

	outcome := metrics.ResultFailed
	if b.result.Status == shader.StatusReady {
		outcome = metrics.ResultSuccess
		if n, err := b.shader.ResourceCount(); err == nil {
			b.result.Resources = n
		}
	}
	r.recorder.ObserveBuildDuration(b.result.Stage, b.result.Duration)
	r.recorder.ObserveBuildPolls(b.result.Stage, b.result.Polls)
	r.recorder.IncBuildOutcome(b.result.Stage, outcome)

	slog.Info("Shader build finished",
		logfields.Shader(b.result.Name),
		logfields.Stage(b.result.Stage),
		logfields.Status(string(b.result.Status)),
		logfields.Polls(b.result.Polls),
		logfields.DurationMS(float64(b.result.Duration.Microseconds())/1000.0))
}

// linkPrograms performs the joint links declared in the manifest. A program
// whose constituents did not all reach Ready fails without a link ever being
// submitted.
func (r *Runner) linkPrograms(ctx context.Context, byName map[string]*shader.Shader) ([]ProgramResult, error) {
	if len(r.cfg.Programs) == 0 {
		return nil, nil
	}
	interval := r.cfg.PollInterval()

	results := make([]ProgramResult, 0, len(r.cfg.Programs))
	for _, pc := range r.cfg.Programs {
		res := ProgramResult{Name: pc.Name}

		shaders := make([]*shader.Shader, 0, len(pc.Shaders))
		for _, ref := range pc.Shaders {
			s, ok := byName[ref]
			if !ok {
				res.State = program.StateFailed
				res.Err = fmt.Errorf("program %s: constituent shader '%s' is not ready", pc.Name, ref)
				break
			}
			shaders = append(shaders, s)
		}
		if res.State == program.StateFailed {
			r.recorder.IncProgramOutcome(metrics.ResultFailed)
			results = append(results, res)
			continue
		}

		p, err := program.New(r.dev, program.Options{Name: pc.Name, Asynchronous: r.cfg.Backend.Async}, shaders...)
		if err != nil {
			res.State = program.StateFailed
			res.Err = err
			r.recorder.IncProgramOutcome(metrics.ResultFailed)
			results = append(results, res)
			continue
		}

		state := p.Status()
		for state != program.StateReady && state != program.StateFailed {
			res.Polls++
			select {
			case <-ctx.Done():
				p.Close()
				return results, ctx.Err()
			case <-time.After(interval):
			}
			state = p.Status()
		}
		res.State = state
		res.Err = p.Err()
		p.Close()

		outcome := metrics.ResultSuccess
		if state != program.StateReady {
			outcome = metrics.ResultFailed
		}
		r.recorder.IncProgramOutcome(outcome)
		slog.Info("Program link finished",
			logfields.Program(pc.Name), logfields.State(string(state)), logfields.Polls(res.Polls))
		results = append(results, res)
	}
	return results, nil
}

// record persists shader results to the history store, if configured.
func (r *Runner) record(ctx context.Context, results []Result) {
	if r.store == nil {
		return
	}
	for _, res := range results {
		rec := history.Record{
			Name:     res.Name,
			Stage:    res.Stage,
			Status:   string(res.Status),
			Polls:    res.Polls,
			Duration: res.Duration,
			Log:      res.Log,
		}
		if err := r.store.Append(ctx, rec); err != nil {
			slog.Warn("Failed to record build history",
				logfields.Shader(res.Name), logfields.Error(err))
		}
	}
}
