package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyShader     = "shader"
	KeyProgram    = "program"
	KeyStage      = "stage"
	KeyState      = "state"
	KeyStatus     = "status"
	KeyPolls      = "polls"
	KeyDurationMS = "duration_ms"
	KeyJobID      = "job_id"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Shader(name string) slog.Attr    { return slog.String(KeyShader, name) }
func Program(name string) slog.Attr   { return slog.String(KeyProgram, name) }
func Stage(s string) slog.Attr        { return slog.String(KeyStage, s) }
func State(s string) slog.Attr        { return slog.String(KeyState, s) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func Polls(n int) slog.Attr           { return slog.Int(KeyPolls, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func JobID(id string) slog.Attr       { return slog.String(KeyJobID, id) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
