package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/shaderbuild/internal/backend"
	"git.home.luguber.info/inful/shaderbuild/internal/backend/glsim"
	"git.home.luguber.info/inful/shaderbuild/internal/shader"
)

const vsSource = `#version 450
layout(std140) uniform Transforms {
    mat4 mvp;
};
void main() {}
`

const psSource = `#version 450
uniform sampler2D g_Tex;
void main() {}
`

const badSource = `#version 450
#error nope
`

func buildShader(t *testing.T, dev backend.Device, name string, stage backend.Stage, source string, async bool) *shader.Shader {
	t.Helper()
	s, err := shader.New(dev, shader.Options{Name: name, Stage: stage, Source: source, Asynchronous: async})
	require.NoError(t, err)
	return s
}

// TestJointLinkWaitsForAllUnits is the ordering guarantee: the joint link
// must not begin until every constituent unit's own build has individually
// resolved to Ready, observed through its status accessor.
func TestJointLinkWaitsForAllUnits(t *testing.T) {
	dev := glsim.New(glsim.Options{
		Caps:           backend.Capabilities{AsyncCompilation: true, SeparablePrograms: true},
		CompileLatency: 3,
		LinkLatency:    2,
	})

	vs := buildShader(t, dev, "vs", backend.StageVertex, vsSource, true)
	ps := buildShader(t, dev, "ps", backend.StagePixel, psSource, true)
	defer vs.Close()
	defer ps.Close()

	p, err := New(dev, Options{Name: "pipeline", Asynchronous: true}, vs, ps)
	require.NoError(t, err)
	defer p.Close()

	sawPending := false
	for iter := 0; p.Status() != StateReady; iter++ {
		require.Less(t, iter, 50, "program did not converge within bounded polls")
		require.NotEqual(t, StateFailed, p.Status())

		if p.Status() == StatePending {
			sawPending = true
			// While the program is pending the joint link must not have
			// been submitted: only per-unit separable links may exist.
			require.LessOrEqual(t, len(dev.LinkOrder()), 2)
		}
	}
	assert.True(t, sawPending, "program should have waited on its constituents")

	// Joint completion strictly after both units reported Ready.
	require.Equal(t, shader.StatusReady, vs.Status())
	require.Equal(t, shader.StatusReady, ps.Status())
	require.Len(t, dev.LinkOrder(), 3, "two separable unit links plus one joint link")
	assert.Equal(t, p.Target(), dev.LinkOrder()[2], "joint link must be submitted last")
}

// TestSyncProgramResolvesInConstructor checks a synchronous program over
// already-ready shaders is terminal immediately.
func TestSyncProgramResolvesInConstructor(t *testing.T) {
	dev := glsim.New(glsim.Options{Caps: backend.Capabilities{SeparablePrograms: true}})

	vs := buildShader(t, dev, "vs", backend.StageVertex, vsSource, false)
	ps := buildShader(t, dev, "ps", backend.StagePixel, psSource, false)
	defer vs.Close()
	defer ps.Close()

	p, err := New(dev, Options{Name: "pipeline"}, vs, ps)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, StateReady, p.Status())
}

// TestConstituentFailureFailsProgram verifies a failed unit fails the whole
// program without the joint link ever being submitted.
func TestConstituentFailureFailsProgram(t *testing.T) {
	dev := glsim.New(glsim.Options{
		Caps:           backend.Capabilities{AsyncCompilation: true, SeparablePrograms: true},
		CompileLatency: 1,
	})

	vs := buildShader(t, dev, "vs", backend.StageVertex, vsSource, true)
	bad := buildShader(t, dev, "bad", backend.StagePixel, badSource, true)
	defer vs.Close()
	defer bad.Close()

	p, err := New(dev, Options{Name: "pipeline", Asynchronous: true}, vs, bad)
	require.NoError(t, err)
	defer p.Close()

	state := p.Status()
	for iter := 0; state != StateFailed && iter < 50; iter++ {
		state = p.Status()
	}
	require.Equal(t, StateFailed, state)
	require.Error(t, p.Err())
	assert.False(t, p.Target().Valid(), "no joint link target must exist")
}

func TestProgramValidation(t *testing.T) {
	dev := glsim.New(glsim.Options{})

	_, err := New(dev, Options{Name: "p"})
	require.Error(t, err, "a program requires at least one shader")

	vs := buildShader(t, dev, "vs", backend.StageVertex, vsSource, false)
	defer vs.Close()
	_, err = New(dev, Options{}, vs)
	require.Error(t, err, "missing name must be rejected")
}

// TestProgramCloseReleasesTarget checks target hygiene on both outcomes.
func TestProgramCloseReleasesTarget(t *testing.T) {
	dev := glsim.New(glsim.Options{Caps: backend.Capabilities{SeparablePrograms: true}})

	vs := buildShader(t, dev, "vs", backend.StageVertex, vsSource, false)
	ps := buildShader(t, dev, "ps", backend.StagePixel, psSource, false)

	p, err := New(dev, Options{Name: "pipeline"}, vs, ps)
	require.NoError(t, err)
	require.Equal(t, StateReady, p.Status())

	p.Close()
	vs.Close()
	ps.Close()

	st := dev.Stats()
	assert.Zero(t, st.LiveUnits)
	assert.Zero(t, st.LiveTargets)
}
