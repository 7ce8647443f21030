package shader

import (
	"fmt"
	"io"
	"log/slog"

	"git.home.luguber.info/inful/shaderbuild/internal/backend"
	berrors "git.home.luguber.info/inful/shaderbuild/internal/errors"
	"git.home.luguber.info/inful/shaderbuild/internal/logfields"
	"git.home.luguber.info/inful/shaderbuild/internal/reflection"
)

// taskState is the build task's monotonic state. There are no back-edges:
// a task only ever moves forward until it reaches Complete or Failed.
type taskState string

const (
	stateDefault   taskState = "default"
	stateCompiling taskState = "compiling"
	stateLinking   taskState = "linking"
	stateComplete  taskState = "complete"
	stateFailed    taskState = "failed"
)

// buildTask drives one shader unit through compile, optional link, and
// reflection. It holds a reference (not ownership) to the owning Shader to
// write results back; the transient link target is exclusively owned by the
// task and released when the task tears down.
type buildTask struct {
	shader *Shader
	dev    backend.Device

	// async is the effective-async flag: requested by the caller AND
	// supported by the device. Without it, submission implies completion
	// and stage failures are raised to the triggering caller.
	async            bool
	loadBufferDetail bool
	combinedSamplers bool
	sink             io.Writer

	target backend.TargetHandle
	state  taskState
}

func newBuildTask(s *Shader, dev backend.Device, opts Options) *buildTask {
	return &buildTask{
		shader:           s,
		dev:              dev,
		async:            opts.Asynchronous && dev.Caps().AsyncCompilation,
		loadBufferDetail: opts.LoadConstantBufferReflection,
		combinedSamplers: opts.Dialect.CombinedSamplers(),
		sink:             opts.LogSink,
		state:            stateDefault,
	}
}

// advance performs one progress step and reports whether the task is now
// terminal. A single call may legitimately cross several states when a
// predecessor stage resolves synchronously (or when linking is skipped
// because the device cannot produce separable programs).
//
// In effective-async mode stage failures are never returned as errors:
// raising across an unrelated caller's poll would corrupt its control flow,
// so they are only recorded to state and log. In synchronous mode the error
// is returned to the triggering caller.
func (t *buildTask) advance() (bool, error) {
	if t.state == stateComplete || t.state == stateFailed {
		panic("shader: advance called on a terminal build task")
	}

	var err error

	if t.state == stateDefault {
		t.handleDefault()
	}
	if t.state == stateCompiling {
		err = t.handleCompiling()
	}
	if t.state == stateLinking && err == nil {
		err = t.handleLinking()
	}

	if t.state == stateFailed {
		// No handle is retained for later inspection.
		t.shader.releaseUnit()
	}

	done := t.state == stateComplete || t.state == stateFailed
	if done {
		t.releaseTarget()
	}
	return done, err
}

// handleDefault submits the source text and moves unconditionally to
// Compiling. Submission errors surface as a compile failure on the next
// state's status query via the invalid handle.
func (t *buildTask) handleDefault() {
	h, err := t.dev.SubmitCompile(t.shader.stage, t.shader.source)
	if err != nil {
		slog.Error("Shader compile submission failed",
			logfields.Shader(t.shader.name), logfields.Error(err))
	}
	t.shader.unit = h
	t.state = stateCompiling
}

func (t *buildTask) handleCompiling() error {
	// An invalid handle means the submission itself was rejected. That is
	// already terminal; polling it would never report completion.
	complete := true
	if t.async && t.shader.unit.Valid() {
		complete = t.dev.CompileDone(t.shader.unit)
	}
	if !complete {
		return nil
	}

	ok, err := t.compileStatus()
	if ok {
		t.state = stateLinking
		return nil
	}
	t.state = stateFailed
	t.shader.failure = err
	if !t.async {
		return err
	}
	return nil
}

// compileStatus queries the compile outcome, routes diagnostics to the log
// sink (or, failing that, the debug log), and builds the failure error.
func (t *buildTask) compileStatus() (bool, error) {
	ok, logText := t.dev.CompileStatus(t.shader.unit)

	if t.sink != nil && logText != "" {
		fmt.Fprintln(t.sink, logText)
	}

	if ok {
		if logText != "" {
			slog.Info("Compiler output for shader",
				logfields.Shader(t.shader.name), slog.String("output", logText))
		}
		return true, nil
	}

	if t.sink == nil {
		// Dump the full source so the failure can be diagnosed offline.
		slog.Debug("Failed shader full source",
			logfields.Shader(t.shader.name), slog.String("source", t.shader.source))
	} else {
		fmt.Fprintln(t.sink, t.shader.source)
	}

	err := berrors.CompileFailed(t.shader.name, logText)
	slog.Error("Shader compilation failed",
		logfields.Shader(t.shader.name),
		logfields.Stage(string(t.shader.stage)),
		slog.String("log", logText))
	return false, err
}

func (t *buildTask) handleLinking() error {
	// Reflection requires a separable program; without device support the
	// task completes with reflection permanently absent.
	if !t.dev.Caps().SeparablePrograms {
		t.state = stateComplete
		return nil
	}

	// Lazily create the link target exactly once. Repeated advance calls
	// while waiting for the link must not resubmit.
	if !t.target.Valid() {
		target, err := LinkUnits(t.dev, []backend.UnitHandle{t.shader.unit}, true)
		if err != nil {
			t.state = stateFailed
			t.shader.failure = err
			if !t.async {
				return err
			}
			return nil
		}
		t.target = target
	}

	complete := true
	if t.async {
		complete = t.dev.LinkDone(t.target)
	}
	if !complete {
		return nil
	}

	linked, logText, err := LinkStatus(t.dev, t.target, []backend.UnitHandle{t.shader.unit}, !t.async)
	if t.sink != nil && logText != "" {
		fmt.Fprintln(t.sink, logText)
	}
	if !linked {
		t.state = stateFailed
		t.shader.failure = berrors.LinkFailed(logText)
		return err
	}

	t.shader.resources = reflection.Load(t.dev, t.target, reflection.Options{
		CombinedSamplers: t.combinedSamplers,
		LoadBufferDetail: t.loadBufferDetail,
	})
	t.state = stateComplete
	return nil
}

// releaseTarget drops the transient link target. This is the single release
// point for the target: it runs when the task reaches a terminal state or is
// abandoned, never eagerly mid-stage.
func (t *buildTask) releaseTarget() {
	if t.target.Valid() {
		t.dev.ReleaseTarget(t.target)
		t.target = 0
	}
}

// abandon releases task-owned resources without completing the build. Used
// when the owning shader is destroyed mid-flight; the pending backend
// operation is simply dropped, no cancel signal is sent.
func (t *buildTask) abandon() {
	t.releaseTarget()
}
