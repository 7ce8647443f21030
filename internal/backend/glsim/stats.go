package glsim

import "git.home.luguber.info/inful/shaderbuild/internal/backend"

// Stats is a point-in-time snapshot of device bookkeeping, used by tests to
// assert idempotence (no resubmission) and handle hygiene (no leaks).
type Stats struct {
	CompileSubmits int
	LinkSubmits    int
	LiveUnits      int
	LiveTargets    int
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		CompileSubmits: d.compileSubmits,
		LinkSubmits:    d.linkSubmits,
		LiveUnits:      len(d.units),
		LiveTargets:    len(d.targets),
	}
}

// LinkOrder returns the targets in the order their link was submitted.
func (d *Device) LinkOrder() []backend.TargetHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]backend.TargetHandle, len(d.linkStarted))
	copy(out, d.linkStarted)
	return out
}

// AttachedUnits returns the units currently attached to the target, in
// attach order. Useful for asserting detach-on-success behavior.
func (d *Device) AttachedUnits(t backend.TargetHandle) []backend.UnitHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	tg, ok := d.targets[t]
	if !ok {
		return nil
	}
	out := make([]backend.UnitHandle, len(tg.attached))
	copy(out, tg.attached)
	return out
}
