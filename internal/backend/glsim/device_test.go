package glsim

import (
	"testing"

	"git.home.luguber.info/inful/shaderbuild/internal/backend"
)

const goodSource = `#version 450
layout(std140) uniform Transforms {
    mat4 mvp;
    vec4 tint;
};
uniform sampler2D g_Tex;
layout(rgba8) uniform image2D g_Out;
buffer Particles {
    vec4 pos;
};
void main() {}
`

func TestCompileLatencyCountdown(t *testing.T) {
	d := New(Options{Caps: backend.Capabilities{AsyncCompilation: true}, CompileLatency: 2})

	h, err := d.SubmitCompile(backend.StageVertex, goodSource)
	if err != nil {
		t.Fatalf("SubmitCompile: %v", err)
	}
	if d.CompileDone(h) {
		t.Fatalf("first poll should report incomplete")
	}
	if d.CompileDone(h) {
		t.Fatalf("second poll should report incomplete")
	}
	if !d.CompileDone(h) {
		t.Fatalf("third poll should report complete")
	}
	ok, log := d.CompileStatus(h)
	if !ok || log != "" {
		t.Fatalf("expected clean compile, ok=%v log=%q", ok, log)
	}
}

func TestErrorDirectiveFailsCompile(t *testing.T) {
	d := New(Options{})
	h, _ := d.SubmitCompile(backend.StagePixel, "#version 450\n#error bad operand\n")
	ok, log := d.CompileStatus(h)
	if ok {
		t.Fatalf("expected compile failure")
	}
	if log == "" || log != "0:1: error: bad operand" {
		t.Fatalf("unexpected log %q", log)
	}
}

func TestDeclarationScan(t *testing.T) {
	d := New(Options{})
	h, _ := d.SubmitCompile(backend.StageVertex, goodSource)
	target := d.CreateTarget()
	d.Attach(target, h)
	d.SubmitLink(target)
	if ok, log := d.LinkStatus(target); !ok {
		t.Fatalf("link failed: %s", log)
	}

	res := d.TargetResources(target)
	if len(res) != 4 {
		t.Fatalf("expected 4 resources, got %d: %+v", len(res), res)
	}
	classes := map[string]backend.ResourceClass{}
	for _, r := range res {
		classes[r.Name] = r.Class
	}
	if classes["Transforms"] != backend.ClassUniformBlock ||
		classes["g_Tex"] != backend.ClassSampledTexture ||
		classes["g_Out"] != backend.ClassImage ||
		classes["Particles"] != backend.ClassStorageBlock {
		t.Fatalf("unexpected classes: %+v", classes)
	}

	detail, ok := d.TargetBlockDetail(target, "Transforms")
	if !ok {
		t.Fatalf("expected block detail for Transforms")
	}
	if detail.Size != 2*blockMemberSize || len(detail.Variables) != 2 {
		t.Fatalf("unexpected detail: %+v", detail)
	}
	if detail.Variables[1].Offset != blockMemberSize {
		t.Fatalf("sequential offsets expected, got %+v", detail.Variables[1])
	}
}

func TestMarkSeparableOrdering(t *testing.T) {
	d := New(Options{Caps: backend.Capabilities{SeparablePrograms: true}})
	target := d.CreateTarget()

	if err := d.MarkSeparable(target); err != nil {
		t.Fatalf("marking before submit must succeed: %v", err)
	}
	d.SubmitLink(target)
	if err := d.MarkSeparable(target); err == nil {
		t.Fatalf("marking after submit must fail")
	}
}

func TestLinkFailsWithoutAttachments(t *testing.T) {
	d := New(Options{})
	target := d.CreateTarget()
	d.SubmitLink(target)
	if ok, log := d.LinkStatus(target); ok || log == "" {
		t.Fatalf("expected link failure with log, ok=%v log=%q", ok, log)
	}
}

func TestStatsAccounting(t *testing.T) {
	d := New(Options{})

	h, _ := d.SubmitCompile(backend.StageVertex, goodSource)
	target := d.CreateTarget()
	d.Attach(target, h)
	d.SubmitLink(target)

	st := d.Stats()
	if st.CompileSubmits != 1 || st.LinkSubmits != 1 || st.LiveUnits != 1 || st.LiveTargets != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if got := d.AttachedUnits(target); len(got) != 1 || got[0] != h {
		t.Fatalf("unexpected attachments %v", got)
	}

	d.ReleaseUnit(h)
	d.ReleaseTarget(target)
	st = d.Stats()
	if st.LiveUnits != 0 || st.LiveTargets != 0 {
		t.Fatalf("handles not released: %+v", st)
	}
}
