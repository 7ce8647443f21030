package shader

import (
	"log/slog"

	"git.home.luguber.info/inful/shaderbuild/internal/backend"
	berrors "git.home.luguber.info/inful/shaderbuild/internal/errors"
)

// LinkUnits attaches the compiled units to a fresh link target and submits
// the link. Submission is a non-blocking registration: callers poll
// LinkDone and then resolve the outcome with LinkStatus. When separable is
// set, the target is marked before the link call — the device requires the
// flag to precede submission.
func LinkUnits(dev backend.LinkBackend, units []backend.UnitHandle, separable bool) (backend.TargetHandle, error) {
	target := dev.CreateTarget()

	if separable {
		if err := dev.MarkSeparable(target); err != nil {
			dev.ReleaseTarget(target)
			return 0, berrors.BackendError("mark separable", err)
		}
	}

	for _, u := range units {
		dev.Attach(target, u)
	}

	// With separable targets, interface mismatches between stages cannot be
	// detected at link time; the linker assumes a compatible program on the
	// other side of each interface.
	dev.SubmitLink(target)
	return target, nil
}

// LinkStatus resolves the outcome of a previously submitted link. On success
// every input unit is detached from the target so the inputs remain
// independently destructible. On failure the attachments are left intact to
// aid diagnosis, and the failure is either returned as an error or only
// logged, per raiseOnFailure. The link log is returned in both cases.
func LinkStatus(dev backend.LinkBackend, target backend.TargetHandle, units []backend.UnitHandle, raiseOnFailure bool) (bool, string, error) {
	linked, logText := dev.LinkStatus(target)

	if !linked {
		if raiseOnFailure {
			return false, logText, berrors.LinkFailed(logText)
		}
		slog.Error("Failed to link shader program", slog.String("log", logText))
		return false, logText, nil
	}

	for _, u := range units {
		dev.Detach(target, u)
	}
	return true, logText, nil
}
