package gpu

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gogpu/naga"
)

var ErrProgramBuild = errors.New("gpu: program build failed")

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

var entryPointRe = regexp.MustCompile(`@compute\s+@workgroup_size\(\s*(\d+)\s*,\s*(\d+)[^)]*\)\s*fn\s+(\w+)`)

// Program is a WGSL compute module translated to SPIR-V.
type Program struct {
	Label       string
	Source      string
	SPIRV       []byte
	EntryPoints []string

	// Validated is false when the translator reported a limitation of its own rather
	// than a fault in the source. Such programs still run on the dispatcher.
	Validated bool
}

// CompileProgram translates a WGSL module with naga. Syntax and validation failures wrap
// ErrProgramBuild. Every entry point must declare the device workgroup size.
func CompileProgram(label, source string) (*Program, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: %s: empty source", ErrProgramBuild, label)
	}

	p := &Program{Label: label, Source: source}
	for _, m := range entryPointRe.FindAllStringSubmatch(source, -1) {
		if m[1] != fmt.Sprint(WorkgroupSize) || m[2] != fmt.Sprint(WorkgroupSize) {
			return nil, fmt.Errorf("%w: %s: entry point %s uses workgroup %sx%s, device runs %dx%d",
				ErrProgramBuild, label, m[3], m[1], m[2], WorkgroupSize, WorkgroupSize)
		}
		p.EntryPoints = append(p.EntryPoints, m[3])
	}
	if len(p.EntryPoints) == 0 {
		return nil, fmt.Errorf("%w: %s: no compute entry point", ErrProgramBuild, label)
	}

	spirv, err := naga.Compile(source)
	if err != nil {
		if IsTranslatorLimitation(err) {
			Logger().Warn("gpu: program not validated, translator limitation",
				"program", label, "err", err)
			return p, nil
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrProgramBuild, label, err)
	}
	if len(spirv) < 4 || le32(spirv) != spirvMagic {
		return nil, fmt.Errorf("%w: %s: translator returned no SPIR-V module", ErrProgramBuild, label)
	}

	p.SPIRV = spirv
	p.Validated = true
	Logger().Info("gpu: program built", "program", label, "entry_points", p.EntryPoints, "spirv_bytes", len(spirv))
	return p, nil
}

// MustCompileProgram is CompileProgram for embedded sources.
func MustCompileProgram(label, source string) *Program {
	p, err := CompileProgram(label, source)
	if err != nil {
		panic(err)
	}
	return p
}

// HasEntryPoint reports whether the module declares the named compute entry point.
func (p *Program) HasEntryPoint(name string) bool {
	for _, ep := range p.EntryPoints {
		if ep == name {
			return true
		}
	}
	return false
}

// Words returns the SPIR-V module as little-endian 32-bit words.
func (p *Program) Words() []uint32 {
	words := make([]uint32, len(p.SPIRV)/4)
	for i := range words {
		words[i] = le32(p.SPIRV[i*4:])
	}
	return words
}

// IsTranslatorLimitation reports whether err is a naga feature gap rather than a fault
// in the WGSL source.
func IsTranslatorLimitation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"not yet implemented", "not supported", "unsupported", "runtime-sized arrays", "lowering error", "atomic"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
