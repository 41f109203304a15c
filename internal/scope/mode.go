package scope

import (
	"fmt"
	"image"
	"strings"

	"github.com/ivlev/vectorscope/internal/gpu"
	"github.com/ivlev/vectorscope/internal/kernels"
	"github.com/ivlev/vectorscope/internal/overlay"
)

// DisplayMode selects which scope is drawn.
type DisplayMode int

const (
	VectorScope DisplayMode = iota
	RGBParade
	Split
)

func (m DisplayMode) String() string {
	switch m {
	case VectorScope:
		return "vector"
	case RGBParade:
		return "parade"
	case Split:
		return "split"
	default:
		return fmt.Sprintf("DisplayMode(%d)", int(m))
	}
}

// ParseMode accepts the names printed by String plus a few aliases.
func ParseMode(name string) (DisplayMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "vector", "vectorscope", "vs":
		return VectorScope, nil
	case "parade", "rgbparade", "rgb":
		return RGBParade, nil
	case "split", "both":
		return Split, nil
	default:
		return 0, fmt.Errorf("scope: unknown display mode %q", name)
	}
}

// Passes is the kernel pair run for one panel of a draw.
type Passes struct {
	Clear      func(l *kernels.Library, img *gpu.StorageImage, u kernels.Uniforms) gpu.Kernel
	Accumulate func(l *kernels.Library, img *gpu.StorageImage, in *gpu.InputImage, u kernels.Uniforms) gpu.Kernel
	Layer      overlay.Layer
}

var (
	vectorPasses = Passes{
		Clear:      (*kernels.Library).ClearVector,
		Accumulate: (*kernels.Library).VectorAccumulate,
		Layer:      overlay.VectorLayer,
	}
	paradePasses = Passes{
		Clear:      (*kernels.Library).ClearParade,
		Accumulate: (*kernels.Library).ParadeAccumulate,
		Layer:      overlay.ParadeLayer,
	}
)

// Panel is one viewport of the analysis image and the passes drawn into it.
type Panel struct {
	Passes
	Viewport image.Rectangle
}

// layouts maps each mode to the panels it draws on a surface of the given size.
var layouts = map[DisplayMode]func(size image.Point) []Panel{
	VectorScope: func(size image.Point) []Panel {
		return []Panel{{Passes: vectorPasses, Viewport: image.Rectangle{Max: size}}}
	},
	RGBParade: func(size image.Point) []Panel {
		return []Panel{{Passes: paradePasses, Viewport: image.Rectangle{Max: size}}}
	},
	Split: func(size image.Point) []Panel {
		half := size.X / 2
		return []Panel{
			{Passes: vectorPasses, Viewport: image.Rect(0, 0, half, size.Y)},
			{Passes: paradePasses, Viewport: image.Rect(half, 0, size.X, size.Y)},
		}
	},
}

// Layout returns the non-empty panels of mode on a surface of size.
func Layout(mode DisplayMode, size image.Point) []Panel {
	build, ok := layouts[mode]
	if !ok {
		build = layouts[VectorScope]
	}
	panels := build(size)
	out := panels[:0]
	for _, p := range panels {
		if !p.Viewport.Empty() {
			out = append(out, p)
		}
	}
	return out
}

func overlayPanels(panels []Panel) []overlay.Panel {
	out := make([]overlay.Panel, len(panels))
	for i, p := range panels {
		out[i] = overlay.Panel{Layer: p.Layer, Viewport: p.Viewport}
	}
	return out
}
