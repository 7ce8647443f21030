package shader

import (
	"testing"

	"git.home.luguber.info/inful/shaderbuild/internal/backend"
	"git.home.luguber.info/inful/shaderbuild/internal/backend/glsim"
	berrors "git.home.luguber.info/inful/shaderbuild/internal/errors"
)

func compileUnit(t *testing.T, dev backend.Device, source string) backend.UnitHandle {
	t.Helper()
	h, err := dev.SubmitCompile(backend.StageVertex, source)
	if err != nil {
		t.Fatalf("SubmitCompile: %v", err)
	}
	return h
}

// TestLinkUnitsMarksSeparableBeforeSubmit exercises the backend ordering
// constraint: the separable flag must be set before link submission.
func TestLinkUnitsMarksSeparableBeforeSubmit(t *testing.T) {
	dev := glsim.New(glsim.Options{Caps: backend.Capabilities{SeparablePrograms: true}})
	u := compileUnit(t, dev, vsSource)
	defer dev.ReleaseUnit(u)

	target, err := LinkUnits(dev, []backend.UnitHandle{u}, true)
	if err != nil {
		t.Fatalf("LinkUnits: %v", err)
	}
	defer dev.ReleaseTarget(target)

	// The device itself rejects marking after submission.
	if err := dev.MarkSeparable(target); err == nil {
		t.Fatalf("expected device to reject separable flag after link submission")
	}
}

// TestLinkStatusDetachesOnSuccess verifies inputs remain independently
// destructible after a successful link.
func TestLinkStatusDetachesOnSuccess(t *testing.T) {
	dev := glsim.New(glsim.Options{})
	a := compileUnit(t, dev, vsSource)
	b := compileUnit(t, dev, psSource)
	defer dev.ReleaseUnit(a)
	defer dev.ReleaseUnit(b)

	units := []backend.UnitHandle{a, b}
	target, err := LinkUnits(dev, units, false)
	if err != nil {
		t.Fatalf("LinkUnits: %v", err)
	}
	defer dev.ReleaseTarget(target)

	linked, _, err := LinkStatus(dev, target, units, true)
	if err != nil || !linked {
		t.Fatalf("expected successful link, linked=%v err=%v", linked, err)
	}
	if got := dev.AttachedUnits(target); len(got) != 0 {
		t.Fatalf("expected all units detached after success, still attached: %v", got)
	}
}

// TestLinkStatusKeepsAttachmentsOnFailure verifies the diagnostic aid:
// failed links leave the attach relationships intact.
func TestLinkStatusKeepsAttachmentsOnFailure(t *testing.T) {
	dev := glsim.New(glsim.Options{})
	u := compileUnit(t, dev, linkErrSource)
	defer dev.ReleaseUnit(u)

	units := []backend.UnitHandle{u}
	target, err := LinkUnits(dev, units, false)
	if err != nil {
		t.Fatalf("LinkUnits: %v", err)
	}
	defer dev.ReleaseTarget(target)

	linked, logText, err := LinkStatus(dev, target, units, true)
	if linked {
		t.Fatalf("expected link failure")
	}
	if err == nil || !berrors.IsCategory(err, berrors.CategoryLink) {
		t.Fatalf("raiseOnFailure must surface a link error, got %v", err)
	}
	if logText == "" {
		t.Fatalf("expected link log text")
	}
	if got := dev.AttachedUnits(target); len(got) != 1 {
		t.Fatalf("attachments must stay intact on failure, got %v", got)
	}

	// With raiseOnFailure disabled the same failure is only logged.
	linked, _, err = LinkStatus(dev, target, units, false)
	if linked || err != nil {
		t.Fatalf("expected logged-only failure, linked=%v err=%v", linked, err)
	}
}
