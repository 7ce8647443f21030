// Package shader implements the per-unit build state machine: a Shader owns
// its source text and a build task that carries it through compile, optional
// separable link, and resource reflection against a backend.Device. Progress
// is driven exclusively by the Status accessor; the package starts no
// goroutines and never blocks on the device.
package shader

import (
	"io"
	"log/slog"

	"git.home.luguber.info/inful/shaderbuild/internal/backend"
	berrors "git.home.luguber.info/inful/shaderbuild/internal/errors"
	"git.home.luguber.info/inful/shaderbuild/internal/logfields"
	"git.home.luguber.info/inful/shaderbuild/internal/reflection"
)

// Status is the externally visible build outcome of a shader.
type Status string

const (
	// StatusCompiling means the build is still in flight; poll again later.
	StatusCompiling Status = "compiling"

	// StatusReady means the build succeeded and the compiled unit is valid.
	StatusReady Status = "ready"

	// StatusFailed covers both backend failure and an invalid backing handle.
	StatusFailed Status = "failed"
)

// Dialect is the source language the shader text was authored in. It is an
// explicit input: the build core performs no dialect detection.
type Dialect string

const (
	DialectGLSL Dialect = "glsl"
	DialectHLSL Dialect = "hlsl"
)

// CombinedSamplers reports whether reflection should represent texture and
// sampler as one combined resource. HLSL sources reflect them separately for
// consistency with backends that bind them separately; GLSL reflects the
// native combined form.
func (d Dialect) CombinedSamplers() bool { return d != DialectHLSL }

// Options are the construction inputs for a Shader.
type Options struct {
	Name   string
	Stage  backend.Stage
	Source string

	// Dialect decides combined-vs-separate sampler reflection. Defaults to
	// GLSL when empty.
	Dialect Dialect

	// Asynchronous requests a non-blocking build. Effective only when the
	// device also supports async compilation.
	Asynchronous bool

	// LoadConstantBufferReflection additionally loads uniform buffer member
	// layouts during reflection.
	LoadConstantBufferReflection bool

	// LogSink receives compile/link diagnostic text when supplied. When nil
	// and compilation fails, the full source is emitted to the debug log
	// instead.
	LogSink io.Writer
}

// Shader is a single compiled program unit. It exclusively owns its build
// task while building and its reflection result after success. Callers must
// serialize Status calls per shader; distinct shaders may be advanced from
// different goroutines.
type Shader struct {
	name    string
	stage   backend.Stage
	source  string
	dialect Dialect
	dev     backend.Device

	task      *buildTask
	unit      backend.UnitHandle
	resources *reflection.ResourceReflection
	failure   error
	closed    bool
}

// New constructs a shader and performs the first build step. In synchronous
// mode the whole build resolves inside New, so compile and link failures are
// returned here; in effective-async mode New only submits the compile and
// failures surface later through Status.
func New(dev backend.Device, opts Options) (*Shader, error) {
	if dev == nil {
		panic("shader: device is required")
	}
	if opts.Name == "" {
		return nil, berrors.ValidationFailed("name", "shader name is required")
	}
	if !opts.Stage.Known() {
		return nil, berrors.ValidationFailed("stage", "unknown shader stage '"+string(opts.Stage)+"'")
	}
	if opts.Source == "" {
		return nil, berrors.ValidationFailed("source", "shader source is required")
	}
	if opts.Dialect == "" {
		opts.Dialect = DialectGLSL
	}

	s := &Shader{
		name:    opts.Name,
		stage:   opts.Stage,
		source:  opts.Source,
		dialect: opts.Dialect,
		dev:     dev,
	}
	s.task = newBuildTask(s, dev, opts)

	// Force the first build step. Synchronous builds cross every state here.
	if err := s.step(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// step advances the active build task by exactly one call and discards it
// the instant it reaches a terminal state.
func (s *Shader) step() error {
	if s.task == nil {
		return nil
	}
	done, err := s.task.advance()
	if done {
		s.task = nil
	}
	if err != nil {
		s.failure = err
	}
	return err
}

// Status advances the build by one step (if one is still active) and reports
// the outcome. It is the sole driver of progress: there is no background
// advancement, and "waiting" means calling Status again later. Asynchronous
// failures are never raised here; they are observable only as StatusFailed
// plus the log.
func (s *Shader) Status() Status {
	_ = s.step()
	if s.task != nil {
		return StatusCompiling
	}
	if s.unit.Valid() {
		return StatusReady
	}
	return StatusFailed
}

// Err returns the recorded failure cause, if any. For synchronous builds the
// same error is returned by New; for asynchronous builds this is the only
// programmatic access to the failure beyond the status itself.
func (s *Shader) Err() error { return s.failure }

// Name returns the shader's name.
func (s *Shader) Name() string { return s.name }

// StageKind returns the pipeline stage the shader was compiled for.
func (s *Shader) StageKind() backend.Stage { return s.stage }

// Dialect returns the source dialect the shader was declared with.
func (s *Shader) Dialect() Dialect { return s.dialect }

// Unit returns the backing compiled-unit handle. It is only valid once
// Status reports Ready; aggregators use it to attach the unit to a joint
// link target.
func (s *Shader) Unit() backend.UnitHandle { return s.unit }

// building reports whether a build task is still active.
func (s *Shader) building() bool { return s.task != nil }

// ResourceCount returns the number of reflected resources. It must not be
// called while the shader is still compiling. When the device cannot produce
// separable programs, reflection is permanently absent and the count
// degrades to zero with a logged warning rather than an error.
func (s *Shader) ResourceCount() (int, error) {
	if s.building() {
		return 0, berrors.Precondition("shader resources are not available until the shader is compiled; use Status to check progress")
	}
	if !s.dev.Caps().SeparablePrograms {
		s.warnReflectionUnsupported()
		return 0, nil
	}
	return s.resources.Count(), nil
}

// ResourceDesc returns the resource descriptor at the given index, subject
// to the same preconditions as ResourceCount.
func (s *Shader) ResourceDesc(index int) (reflection.Resource, error) {
	if s.building() {
		return reflection.Resource{}, berrors.Precondition("shader resources are not available until the shader is compiled; use Status to check progress")
	}
	if !s.dev.Caps().SeparablePrograms {
		s.warnReflectionUnsupported()
		return reflection.Resource{}, nil
	}
	return s.resources.Resource(index)
}

// ConstantBufferDesc returns the uniform buffer layout at the given resource
// index. Uniform buffers always occupy the leading indices of the resource
// list. The second return is false when no layout is available for the
// index, or when reflection is unsupported on the device.
func (s *Shader) ConstantBufferDesc(index int) (reflection.BufferDesc, bool, error) {
	if s.building() {
		return reflection.BufferDesc{}, false, berrors.Precondition("shader resources are not available until the shader is compiled; use Status to check progress")
	}
	if !s.dev.Caps().SeparablePrograms {
		s.warnReflectionUnsupported()
		return reflection.BufferDesc{}, false, nil
	}
	d, ok := s.resources.UniformBufferDetail(index)
	return d, ok, nil
}

func (s *Shader) warnReflectionUnsupported() {
	slog.Warn("Shader resource queries are not available when separable programs are unsupported",
		logfields.Shader(s.name))
}

// releaseUnit drops the compiled-unit handle. Called on failure entry and
// at destruction; safe to call repeatedly.
func (s *Shader) releaseUnit() {
	if s.unit.Valid() {
		s.dev.ReleaseUnit(s.unit)
		s.unit = 0
	}
}

// Close abandons any in-flight build and releases every owned backend
// handle. Destroying a shader mid-build is safe: the pending backend
// operation is dropped without an explicit cancel signal. Close is
// idempotent.
func (s *Shader) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.task != nil {
		s.task.abandon()
		s.task = nil
	}
	s.releaseUnit()
}
