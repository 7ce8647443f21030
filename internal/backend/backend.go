// Package backend defines the contract between the shader build core and the
// device that physically performs compilation and linking. The build state
// machine never blocks on the device: completion is observed through the
// non-blocking CompileDone/LinkDone polls, and status/log queries are only
// meaningful once the corresponding poll reports completion (or immediately
// in synchronous mode, where submission implies completion).
package backend

// UnitHandle identifies a backend-resident compiled shader unit.
// The zero value is never a valid handle.
type UnitHandle uint64

// Valid reports whether the handle refers to a live backend object.
func (h UnitHandle) Valid() bool { return h != 0 }

// TargetHandle identifies a backend-resident link target that compiled units
// are attached to and linked into. The zero value is never a valid handle.
type TargetHandle uint64

// Valid reports whether the handle refers to a live backend object.
func (h TargetHandle) Valid() bool { return h != 0 }

// Stage identifies the pipeline stage a shader unit is compiled for.
type Stage string

const (
	StageVertex   Stage = "vertex"
	StagePixel    Stage = "pixel"
	StageGeometry Stage = "geometry"
	StageCompute  Stage = "compute"
)

// Known reports whether the stage is one the build core understands.
func (s Stage) Known() bool {
	switch s {
	case StageVertex, StagePixel, StageGeometry, StageCompute:
		return true
	}
	return false
}

// Capabilities describes the device features the build state machine keys
// its behavior off.
type Capabilities struct {
	// AsyncCompilation indicates that CompileDone/LinkDone return meaningful
	// progress information. Without it, asynchronous build requests silently
	// degrade to synchronous behavior.
	AsyncCompilation bool

	// SeparablePrograms indicates that a single compiled unit can be linked
	// into an independently usable program. Without it, the per-unit linking
	// stage is skipped entirely and reflection is unavailable.
	SeparablePrograms bool
}

// ResourceClass categorizes a raw resource as reported by the device.
type ResourceClass string

const (
	ClassUniformBlock   ResourceClass = "uniform_block"
	ClassStorageBlock   ResourceClass = "storage_block"
	ClassSampledTexture ResourceClass = "sampled_texture"
	ClassImage          ResourceClass = "image"
)

// RawResource is a single resource binding discovered on a linked target,
// in device discovery order.
type RawResource struct {
	Name      string
	Class     ResourceClass
	ArraySize int
}

// BlockVariable is one member of a uniform block layout.
type BlockVariable struct {
	Name   string
	Offset int
	Size   int
}

// BlockDetail is the memory layout of a uniform block.
type BlockDetail struct {
	Name      string
	Size      int
	Variables []BlockVariable
}

// CompileBackend accepts shader source text and produces compiled units.
type CompileBackend interface {
	// SubmitCompile hands the source text to the device compiler and returns
	// the handle of the unit being compiled. The call never blocks on the
	// compilation itself.
	SubmitCompile(stage Stage, source string) (UnitHandle, error)

	// CompileDone polls whether compilation of the unit has finished.
	// Only meaningful when Caps().AsyncCompilation is set.
	CompileDone(h UnitHandle) bool

	// CompileStatus reports whether compilation succeeded and returns the
	// compiler log (which may be non-empty even on success).
	CompileStatus(h UnitHandle) (ok bool, log string)

	// ReleaseUnit destroys the compiled unit.
	ReleaseUnit(h UnitHandle)
}

// LinkBackend links compiled units into targets and manages the
// attach/detach relationships between them.
type LinkBackend interface {
	// CreateTarget allocates a fresh, empty link target.
	CreateTarget() TargetHandle

	// MarkSeparable flags the target as independently linkable. The device
	// requires the flag to be set before SubmitLink; setting it afterwards
	// is an error.
	MarkSeparable(t TargetHandle) error

	// Attach associates a compiled unit with the target.
	Attach(t TargetHandle, u UnitHandle)

	// Detach dissolves the association so the unit is independently
	// destructible again.
	Detach(t TargetHandle, u UnitHandle)

	// SubmitLink registers the link operation. The call never blocks;
	// callers poll LinkDone separately.
	SubmitLink(t TargetHandle)

	// LinkDone polls whether linking of the target has finished.
	// Only meaningful when Caps().AsyncCompilation is set.
	LinkDone(t TargetHandle) bool

	// LinkStatus reports whether linking succeeded and returns the link log.
	LinkStatus(t TargetHandle) (ok bool, log string)

	// ReleaseTarget destroys the link target.
	ReleaseTarget(t TargetHandle)
}

// ReflectionQuerier exposes resource introspection on a successfully linked
// target.
type ReflectionQuerier interface {
	// TargetResources lists the resource bindings of the linked target in
	// discovery order.
	TargetResources(t TargetHandle) []RawResource

	// TargetBlockDetail returns the layout of the named uniform block.
	TargetBlockDetail(t TargetHandle, name string) (BlockDetail, bool)
}

// Device is the full set of operations the build core requires.
type Device interface {
	CompileBackend
	LinkBackend
	ReflectionQuerier

	// Caps reports the device features relevant to build behavior.
	Caps() Capabilities
}
