// Package program aggregates several built shader units into one jointly
// linked program object. The aggregator never inspects unit internals: each
// constituent's status accessor is the synchronization point, and the joint
// link is not submitted until every unit has individually resolved to Ready.
package program

import (
	"fmt"
	"io"
	"log/slog"

	"git.home.luguber.info/inful/shaderbuild/internal/backend"
	berrors "git.home.luguber.info/inful/shaderbuild/internal/errors"
	"git.home.luguber.info/inful/shaderbuild/internal/logfields"
	"git.home.luguber.info/inful/shaderbuild/internal/shader"
)

// State is the externally visible build outcome of a program.
type State string

const (
	// StatePending means at least one constituent shader is still building,
	// so the joint link has not been submitted yet.
	StatePending State = "pending"

	// StateLinking means every shader is Ready and the joint link is in
	// flight.
	StateLinking State = "linking"

	StateReady  State = "ready"
	StateFailed State = "failed"
)

// Options are the construction inputs for a Program.
type Options struct {
	Name string

	// Asynchronous requests non-blocking link behavior. Effective only when
	// the device supports async compilation.
	Asynchronous bool

	// LogSink receives link diagnostic text when supplied.
	LogSink io.Writer
}

// Program owns the joint link target; the constituent shaders remain owned
// by the caller. Like Shader, progress is driven solely by Status and the
// caller must serialize Status calls per program.
type Program struct {
	name    string
	dev     backend.Device
	shaders []*shader.Shader
	async   bool
	sink    io.Writer

	target  backend.TargetHandle
	units   []backend.UnitHandle
	state   State
	failure error
	closed  bool
}

// New creates a program over the given shaders and performs the first
// status step, so synchronous programs over already-Ready shaders resolve
// immediately.
func New(dev backend.Device, opts Options, shaders ...*shader.Shader) (*Program, error) {
	if dev == nil {
		panic("program: device is required")
	}
	if opts.Name == "" {
		return nil, berrors.ValidationFailed("name", "program name is required")
	}
	if len(shaders) == 0 {
		return nil, berrors.ValidationFailed("shaders", "a program requires at least one shader")
	}

	p := &Program{
		name:    opts.Name,
		dev:     dev,
		shaders: shaders,
		async:   opts.Asynchronous && dev.Caps().AsyncCompilation,
		sink:    opts.LogSink,
		state:   StatePending,
	}
	p.Status()
	return p, nil
}

// Status advances the program by one step and reports the outcome. While
// Pending it polls each constituent shader's status accessor; the joint link
// is submitted only once all of them report Ready. Failures are recorded,
// never raised.
func (p *Program) Status() State {
	switch p.state {
	case StateReady, StateFailed:
		return p.state
	}

	if p.state == StatePending && !p.pollShaders() {
		return p.state
	}

	if p.state == StateLinking {
		p.pollLink()
	}
	return p.state
}

// pollShaders advances every constituent and reports whether all of them are
// Ready. A single failed constituent fails the program. On the transition to
// all-Ready the joint link is submitted.
func (p *Program) pollShaders() bool {
	ready := 0
	for _, sh := range p.shaders {
		switch sh.Status() {
		case shader.StatusReady:
			ready++
		case shader.StatusFailed:
			p.state = StateFailed
			p.failure = berrors.LinkFailed(fmt.Sprintf("shader '%s' failed to build", sh.Name()))
			slog.Error("Program constituent failed to build",
				logfields.Program(p.name), logfields.Shader(sh.Name()))
			return false
		}
	}
	if ready < len(p.shaders) {
		return false
	}

	p.units = make([]backend.UnitHandle, 0, len(p.shaders))
	for _, sh := range p.shaders {
		p.units = append(p.units, sh.Unit())
	}
	target, err := shader.LinkUnits(p.dev, p.units, false)
	if err != nil {
		p.state = StateFailed
		p.failure = err
		return false
	}
	p.target = target
	p.state = StateLinking
	return true
}

func (p *Program) pollLink() {
	complete := true
	if p.async {
		complete = p.dev.LinkDone(p.target)
	}
	if !complete {
		return
	}

	linked, logText, _ := shader.LinkStatus(p.dev, p.target, p.units, false)
	if p.sink != nil && logText != "" {
		fmt.Fprintln(p.sink, logText)
	}
	if linked {
		p.state = StateReady
		return
	}
	p.state = StateFailed
	p.failure = berrors.LinkFailed(logText)
}

// Err returns the recorded failure cause, if any.
func (p *Program) Err() error { return p.failure }

// Name returns the program's name.
func (p *Program) Name() string { return p.name }

// Target returns the linked program handle. Only valid once Status reports
// Ready.
func (p *Program) Target() backend.TargetHandle { return p.target }

// Close releases the link target. Constituent shaders are not closed; the
// caller owns them. Idempotent.
func (p *Program) Close() {
	if p.closed {
		return
	}
	p.closed = true
	if p.target.Valid() {
		p.dev.ReleaseTarget(p.target)
		p.target = 0
	}
}
