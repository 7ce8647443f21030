package glsim

import (
	"strings"

	"git.home.luguber.info/inful/shaderbuild/internal/backend"
)

// std140-ish member size used for simulated block layouts.
const blockMemberSize = 16

var samplerTypes = map[string]bool{
	"sampler1D":      true,
	"sampler2D":      true,
	"sampler3D":      true,
	"samplerCube":    true,
	"sampler2DArray": true,
	"samplerShadow":  true,
}

var imageTypes = map[string]bool{
	"image1D": true,
	"image2D": true,
	"image3D": true,
}

// findErrorDirective scans the source for a #error directive and returns its
// message, mimicking a driver front-end rejecting the translation unit.
func findErrorDirective(source string) (string, bool) {
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#error") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#error")), true
		}
	}
	return "", false
}

// scanDeclarations extracts resource declarations from the source with a
// line-oriented scan. It understands the subset of GLSL the simulator needs:
// uniform/storage blocks, sampler uniforms, and image uniforms.
func scanDeclarations(source string) ([]backend.RawResource, map[string]backend.BlockDetail) {
	var resources []backend.RawResource
	blocks := make(map[string]backend.BlockDetail)

	lines := strings.Split(source, "\n")
	for i := 0; i < len(lines); i++ {
		fields := strings.Fields(stripLayout(lines[i]))
		if len(fields) < 2 {
			continue
		}

		switch fields[0] {
		case "uniform":
			if samplerTypes[fields[1]] && len(fields) >= 3 {
				resources = append(resources, backend.RawResource{
					Name:      trimDecl(fields[2]),
					Class:     backend.ClassSampledTexture,
					ArraySize: 1,
				})
				continue
			}
			if imageTypes[fields[1]] && len(fields) >= 3 {
				resources = append(resources, backend.RawResource{
					Name:      trimDecl(fields[2]),
					Class:     backend.ClassImage,
					ArraySize: 1,
				})
				continue
			}
			if name, ok := blockName(fields); ok {
				detail, next := scanBlock(name, lines, i)
				blocks[name] = detail
				resources = append(resources, backend.RawResource{
					Name:      name,
					Class:     backend.ClassUniformBlock,
					ArraySize: 1,
				})
				i = next
			}
		case "buffer":
			if name, ok := blockName(fields); ok {
				_, next := scanBlock(name, lines, i)
				resources = append(resources, backend.RawResource{
					Name:      name,
					Class:     backend.ClassStorageBlock,
					ArraySize: 1,
				})
				i = next
			}
		}
	}
	return resources, blocks
}

// blockName recognizes "uniform Name {" / "buffer Name {" declaration heads.
func blockName(fields []string) (string, bool) {
	if len(fields) < 2 {
		return "", false
	}
	name := fields[1]
	brace := len(fields) >= 3 && fields[2] == "{"
	if strings.HasSuffix(name, "{") {
		name = strings.TrimSuffix(name, "{")
		brace = true
	}
	if !brace && len(fields) == 2 {
		// opening brace on the following line
		brace = true
	}
	if name == "" || !brace {
		return "", false
	}
	return name, true
}

// scanBlock consumes member declarations until the closing brace, assigning
// sequential offsets. Returns the block detail and the index of the closing
// line.
func scanBlock(name string, lines []string, start int) (backend.BlockDetail, int) {
	detail := backend.BlockDetail{Name: name}
	offset := 0
	i := start + 1
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "}") {
			break
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		detail.Variables = append(detail.Variables, backend.BlockVariable{
			Name:   trimDecl(fields[1]),
			Offset: offset,
			Size:   blockMemberSize,
		})
		offset += blockMemberSize
	}
	detail.Size = offset
	return detail, i
}

// stripLayout removes a leading "layout(...)" qualifier.
func stripLayout(line string) string {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "layout") {
		return line
	}
	if idx := strings.Index(line, ")"); idx >= 0 {
		return strings.TrimSpace(line[idx+1:])
	}
	return line
}

// trimDecl strips trailing declaration punctuation and array suffixes.
func trimDecl(tok string) string {
	tok = strings.TrimSuffix(tok, ";")
	if idx := strings.Index(tok, "["); idx >= 0 {
		tok = tok[:idx]
	}
	return tok
}
