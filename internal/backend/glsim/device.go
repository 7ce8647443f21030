// Package glsim provides an in-memory backend.Device with OpenGL-like
// semantics: deferred compile/link completion observable through polling,
// separable-program marking that must precede link submission, and resource
// discovery on linked targets. It backs the offline CLI mode and the test
// suite; latencies are expressed in poll counts so tests stay deterministic.
package glsim

import (
	"fmt"
	"strings"
	"sync"

	"git.home.luguber.info/inful/shaderbuild/internal/backend"
)

// Options configures the simulated device.
type Options struct {
	Caps backend.Capabilities

	// CompileLatency is the number of CompileDone polls a unit stays
	// incomplete before reporting done. Zero completes on the first poll.
	CompileLatency int

	// LinkLatency is the number of LinkDone polls a target stays incomplete
	// after SubmitLink before reporting done.
	LinkLatency int
}

type unit struct {
	stage     backend.Stage
	source    string
	remaining int
	failed    bool
	log       string
	resources []backend.RawResource
	blocks    map[string]backend.BlockDetail
}

type target struct {
	separable bool
	submitted bool
	attached  []backend.UnitHandle
	remaining int
	linked    bool
	resolved  bool
	log       string
	resources []backend.RawResource
	blocks    map[string]backend.BlockDetail
}

// Device is a simulated GPU shader compiler/linker.
type Device struct {
	mu      sync.Mutex
	opts    Options
	nextID  uint64
	units   map[backend.UnitHandle]*unit
	targets map[backend.TargetHandle]*target

	compileSubmits int
	linkSubmits    int
	linkStarted    []backend.TargetHandle
}

// New creates a simulated device with the given options.
func New(opts Options) *Device {
	return &Device{
		opts:    opts,
		units:   make(map[backend.UnitHandle]*unit),
		targets: make(map[backend.TargetHandle]*target),
	}
}

// Caps reports the simulated device capabilities.
func (d *Device) Caps() backend.Capabilities { return d.opts.Caps }

// SubmitCompile registers a compile job for the source text. The result is
// determined at submission time; completion is merely deferred by the
// configured latency.
func (d *Device) SubmitCompile(stage backend.Stage, source string) (backend.UnitHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.compileSubmits++
	d.nextID++
	h := backend.UnitHandle(d.nextID)

	u := &unit{
		stage:     stage,
		source:    source,
		remaining: d.opts.CompileLatency,
		blocks:    make(map[string]backend.BlockDetail),
	}
	if msg, bad := findErrorDirective(source); bad {
		u.failed = true
		u.log = fmt.Sprintf("0:1: error: %s", msg)
	} else {
		u.resources, u.blocks = scanDeclarations(source)
	}
	d.units[h] = u
	return h, nil
}

// CompileDone polls compile completion, consuming one latency tick per call.
func (d *Device) CompileDone(h backend.UnitHandle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.units[h]
	if !ok {
		return false
	}
	if u.remaining > 0 {
		u.remaining--
		return false
	}
	return true
}

// CompileStatus reports the compile outcome and log.
func (d *Device) CompileStatus(h backend.UnitHandle) (bool, string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.units[h]
	if !ok {
		return false, "invalid unit handle"
	}
	return !u.failed, u.log
}

// ReleaseUnit destroys the compiled unit.
func (d *Device) ReleaseUnit(h backend.UnitHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.units, h)
}

// CreateTarget allocates an empty link target.
func (d *Device) CreateTarget() backend.TargetHandle {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	h := backend.TargetHandle(d.nextID)
	d.targets[h] = &target{blocks: make(map[string]backend.BlockDetail)}
	return h
}

// MarkSeparable flags the target as independently linkable. The flag must be
// set before SubmitLink, mirroring the GL_PROGRAM_SEPARABLE constraint.
func (d *Device) MarkSeparable(t backend.TargetHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tg, ok := d.targets[t]
	if !ok {
		return fmt.Errorf("glsim: invalid target handle %d", t)
	}
	if tg.submitted {
		return fmt.Errorf("glsim: target %d already submitted for linking, separable flag must be set before link", t)
	}
	tg.separable = true
	return nil
}

// Attach associates a compiled unit with the target.
func (d *Device) Attach(t backend.TargetHandle, u backend.UnitHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if tg, ok := d.targets[t]; ok {
		tg.attached = append(tg.attached, u)
	}
}

// Detach removes the association between the target and the unit.
func (d *Device) Detach(t backend.TargetHandle, u backend.UnitHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tg, ok := d.targets[t]
	if !ok {
		return
	}
	for i, a := range tg.attached {
		if a == u {
			tg.attached = append(tg.attached[:i], tg.attached[i+1:]...)
			return
		}
	}
}

// SubmitLink registers the link operation for the target.
func (d *Device) SubmitLink(t backend.TargetHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tg, ok := d.targets[t]
	if !ok {
		return
	}
	d.linkSubmits++
	d.linkStarted = append(d.linkStarted, t)
	tg.submitted = true
	tg.remaining = d.opts.LinkLatency
}

// LinkDone polls link completion, consuming one latency tick per call.
func (d *Device) LinkDone(t backend.TargetHandle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	tg, ok := d.targets[t]
	if !ok || !tg.submitted {
		return false
	}
	if tg.remaining > 0 {
		tg.remaining--
		return false
	}
	return true
}

// LinkStatus resolves and reports the link outcome and log.
func (d *Device) LinkStatus(t backend.TargetHandle) (bool, string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tg, ok := d.targets[t]
	if !ok {
		return false, "invalid target handle"
	}
	if !tg.resolved {
		d.resolveLink(tg)
	}
	return tg.linked, tg.log
}

// resolveLink computes the link outcome from the attached units.
// Caller holds d.mu.
func (d *Device) resolveLink(tg *target) {
	tg.resolved = true

	if len(tg.attached) == 0 {
		tg.log = "error: no shader objects attached to program"
		return
	}
	for _, h := range tg.attached {
		u, ok := d.units[h]
		if !ok {
			tg.log = fmt.Sprintf("error: attached shader %d was destroyed", h)
			return
		}
		if u.failed {
			tg.log = "error: attached shader failed to compile"
			return
		}
		if strings.Contains(u.source, "#pragma force_link_error") {
			tg.log = "error: unresolved interface between stages"
			return
		}
	}

	tg.linked = true
	// Merge resources from the attached units in attach order, uniform
	// blocks and everything else alike; dedup by name as GL does for
	// shared interface blocks.
	seen := make(map[string]bool)
	for _, h := range tg.attached {
		u := d.units[h]
		for _, r := range u.resources {
			if seen[r.Name] {
				continue
			}
			seen[r.Name] = true
			tg.resources = append(tg.resources, r)
		}
		for name, b := range u.blocks {
			if _, dup := tg.blocks[name]; !dup {
				tg.blocks[name] = b
			}
		}
	}
}

// ReleaseTarget destroys the link target.
func (d *Device) ReleaseTarget(t backend.TargetHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.targets, t)
}

// TargetResources lists the resources of a linked target in discovery order.
func (d *Device) TargetResources(t backend.TargetHandle) []backend.RawResource {
	d.mu.Lock()
	defer d.mu.Unlock()

	tg, ok := d.targets[t]
	if !ok || !tg.linked {
		return nil
	}
	out := make([]backend.RawResource, len(tg.resources))
	copy(out, tg.resources)
	return out
}

// TargetBlockDetail returns the layout of the named uniform block.
func (d *Device) TargetBlockDetail(t backend.TargetHandle, name string) (backend.BlockDetail, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tg, ok := d.targets[t]
	if !ok {
		return backend.BlockDetail{}, false
	}
	b, ok := tg.blocks[name]
	return b, ok
}
