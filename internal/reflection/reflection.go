// Package reflection extracts ordered resource-binding metadata from a
// successfully linked target. The resulting ResourceReflection is immutable:
// uniform-buffer resources always precede every other kind, and relative
// order within a kind matches the device's discovery order.
package reflection

import (
	"fmt"

	"git.home.luguber.info/inful/shaderbuild/internal/backend"
)

// Kind categorizes a reflected resource.
type Kind string

const (
	KindUniformBuffer   Kind = "uniform_buffer"
	KindStorageBuffer   Kind = "storage_buffer"
	KindTexture         Kind = "texture"
	KindSampler         Kind = "sampler"
	KindCombinedSampler Kind = "combined_sampler"
	KindImage           Kind = "image"
)

// Resource describes one resource binding of a linked program.
type Resource struct {
	Name      string
	Kind      Kind
	ArraySize int
}

// BufferVariable is one member of a reflected uniform buffer layout.
type BufferVariable struct {
	Name   string
	Offset int
	Size   int
}

// BufferDesc is the reflected layout of a uniform buffer.
type BufferDesc struct {
	Name      string
	Size      int
	Variables []BufferVariable
}

// Options controls how resources are represented. Both knobs are explicit
// inputs: the combined-vs-separate choice follows the originating source
// dialect and must never be inferred from ambient state.
type Options struct {
	// CombinedSamplers reflects sampled textures as a single combined
	// texture/sampler resource. When false, each sampled texture is split
	// into a texture resource and a companion sampler resource, for
	// consistency with backends that bind them separately.
	CombinedSamplers bool

	// LoadBufferDetail additionally loads uniform buffer member layouts.
	LoadBufferDetail bool
}

// ResourceReflection is the immutable reflection result.
type ResourceReflection struct {
	resources []Resource
	buffers   map[string]BufferDesc
	// uniformBuffers counts the uniform-buffer prefix of resources.
	uniformBuffers int
}

// Load introspects the linked target and builds the reflection. The target
// must have linked successfully; Load is pure with respect to its current
// state and is invoked at most once per successful build.
func Load(q backend.ReflectionQuerier, t backend.TargetHandle, opts Options) *ResourceReflection {
	raw := q.TargetResources(t)

	r := &ResourceReflection{buffers: make(map[string]BufferDesc)}

	// Uniform buffers always go first in the list of resources.
	for _, res := range raw {
		if res.Class != backend.ClassUniformBlock {
			continue
		}
		r.resources = append(r.resources, Resource{
			Name:      res.Name,
			Kind:      KindUniformBuffer,
			ArraySize: res.ArraySize,
		})
		if opts.LoadBufferDetail {
			if detail, ok := q.TargetBlockDetail(t, res.Name); ok {
				r.buffers[res.Name] = toBufferDesc(detail)
			}
		}
	}
	r.uniformBuffers = len(r.resources)

	for _, res := range raw {
		switch res.Class {
		case backend.ClassUniformBlock:
			// already emitted
		case backend.ClassStorageBlock:
			r.resources = append(r.resources, Resource{Name: res.Name, Kind: KindStorageBuffer, ArraySize: res.ArraySize})
		case backend.ClassImage:
			r.resources = append(r.resources, Resource{Name: res.Name, Kind: KindImage, ArraySize: res.ArraySize})
		case backend.ClassSampledTexture:
			if opts.CombinedSamplers {
				r.resources = append(r.resources, Resource{Name: res.Name, Kind: KindCombinedSampler, ArraySize: res.ArraySize})
			} else {
				r.resources = append(r.resources,
					Resource{Name: res.Name, Kind: KindTexture, ArraySize: res.ArraySize},
					Resource{Name: res.Name + "_sampler", Kind: KindSampler, ArraySize: res.ArraySize})
			}
		}
	}
	return r
}

func toBufferDesc(d backend.BlockDetail) BufferDesc {
	out := BufferDesc{Name: d.Name, Size: d.Size}
	for _, v := range d.Variables {
		out.Variables = append(out.Variables, BufferVariable{Name: v.Name, Offset: v.Offset, Size: v.Size})
	}
	return out
}

// Count returns the number of reflected resources.
func (r *ResourceReflection) Count() int {
	if r == nil {
		return 0
	}
	return len(r.resources)
}

// Resource returns the resource descriptor at the given index.
func (r *ResourceReflection) Resource(index int) (Resource, error) {
	if r == nil || index < 0 || index >= len(r.resources) {
		return Resource{}, fmt.Errorf("resource index %d is out of range (count %d)", index, r.Count())
	}
	return r.resources[index], nil
}

// UniformBufferCount returns how many uniform buffers lead the resource list.
func (r *ResourceReflection) UniformBufferCount() int {
	if r == nil {
		return 0
	}
	return r.uniformBuffers
}

// UniformBufferDetail returns the layout of the uniform buffer at the given
// resource index. Uniform buffers occupy the leading indices, so any index
// past the uniform-buffer prefix has no layout. The second return is false
// when no detail is available (index out of prefix, or detail loading was
// not requested).
func (r *ResourceReflection) UniformBufferDetail(index int) (BufferDesc, bool) {
	if r == nil || index < 0 || index >= r.uniformBuffers {
		return BufferDesc{}, false
	}
	d, ok := r.buffers[r.resources[index].Name]
	return d, ok
}
