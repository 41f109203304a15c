package kernels

import (
	_ "embed"
	"fmt"
	"image"

	"github.com/ivlev/vectorscope/internal/gpu"
)

// Entry point names. Each is also the kernel label reported in command buffers.
const (
	EntryClearVector      = "clear_vector"
	EntryClearParade      = "clear_parade"
	EntryVectorAccumulate = "vector_accumulate"
	EntryParadeAccumulate = "parade_accumulate"
	EntryResolve          = "resolve"
)

//go:embed shaders/clear_vector.wgsl
var clearVectorWGSL string

//go:embed shaders/clear_parade.wgsl
var clearParadeWGSL string

//go:embed shaders/vector_accumulate.wgsl
var vectorAccumulateWGSL string

//go:embed shaders/parade_accumulate.wgsl
var paradeAccumulateWGSL string

//go:embed shaders/resolve.wgsl
var resolveWGSL string

// Sources maps each entry point to its WGSL module.
var Sources = map[string]string{
	EntryClearVector:      clearVectorWGSL,
	EntryClearParade:      clearParadeWGSL,
	EntryVectorAccumulate: vectorAccumulateWGSL,
	EntryParadeAccumulate: paradeAccumulateWGSL,
	EntryResolve:          resolveWGSL,
}

var entryOrder = []string{EntryClearVector, EntryClearParade, EntryVectorAccumulate, EntryParadeAccumulate, EntryResolve}

// Library is the set of built scope programs.
type Library struct {
	programs map[string]*gpu.Program
}

// NewLibrary builds every scope program. Any failure is returned wrapping
// gpu.ErrProgramBuild and leaves no usable library.
func NewLibrary() (*Library, error) {
	lib := &Library{programs: make(map[string]*gpu.Program, len(entryOrder))}
	for _, entry := range entryOrder {
		p, err := gpu.CompileProgram(entry, Sources[entry])
		if err != nil {
			return nil, err
		}
		if !p.HasEntryPoint(entry) {
			return nil, fmt.Errorf("%w: %s: missing entry point %q", gpu.ErrProgramBuild, entry, entry)
		}
		lib.programs[entry] = p
	}
	return lib, nil
}

// Program returns the built program for an entry point.
func (l *Library) Program(entry string) *gpu.Program {
	return l.programs[entry]
}

// Programs lists the built programs in pipeline order.
func (l *Library) Programs() []*gpu.Program {
	out := make([]*gpu.Program, 0, len(entryOrder))
	for _, e := range entryOrder {
		out = append(out, l.programs[e])
	}
	return out
}

// ClearVector returns the vectorscope clear kernel for u.Viewport of img.
func (l *Library) ClearVector(img *gpu.StorageImage, u Uniforms) gpu.Kernel {
	return newClearVector(img, BuildParams(u, img.Size(), image.Point{}))
}

// ClearParade returns the parade clear kernel for u.Viewport of img.
func (l *Library) ClearParade(img *gpu.StorageImage, u Uniforms) gpu.Kernel {
	return newClearParade(img, BuildParams(u, img.Size(), image.Point{}))
}

// VectorAccumulate returns the vectorscope accumulate kernel reading in.
func (l *Library) VectorAccumulate(img *gpu.StorageImage, in *gpu.InputImage, u Uniforms) gpu.Kernel {
	return &vectorAccumulate{img: img, in: in, p: inputParams(u, img, in)}
}

// ParadeAccumulate returns the parade accumulate kernel reading in.
func (l *Library) ParadeAccumulate(img *gpu.StorageImage, in *gpu.InputImage, u Uniforms) gpu.Kernel {
	return &paradeAccumulate{img: img, in: in, p: inputParams(u, img, in)}
}

// Resolve returns the kernel combining img into dst, which must match img's size.
func (l *Library) Resolve(img *gpu.StorageImage, dst *image.RGBA, saturationHits int) gpu.Kernel {
	return newResolve(img, dst, saturationHits)
}

func inputParams(u Uniforms, img *gpu.StorageImage, in *gpu.InputImage) Params {
	p := BuildParams(u, img.Size(), image.Pt(in.Width, in.Height))
	p.InputLayout[0] = uint32(in.Stride / 4)
	return p
}
