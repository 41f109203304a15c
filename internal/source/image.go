package source

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ivlev/vectorscope/internal/ingest"
)

// ImageSource plays a still image, or every image in a directory in name order.
type ImageSource struct {
	paths  []string
	opts   Options
	frames []*ingest.Frame
}

func NewImageSource(path string, opts Options) (*ImageSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var paths []string
	if fi.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				ext := strings.ToLower(filepath.Ext(entry.Name()))
				if ext == ".jpg" || ext == ".jpeg" || ext == ".png" {
					paths = append(paths, filepath.Join(path, entry.Name()))
				}
			}
		}
		sort.Strings(paths)
	} else {
		paths = []string{path}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("в папке %s не найдено изображений", path)
	}

	return &ImageSource{paths: paths, opts: opts.withDefaults(), frames: make([]*ingest.Frame, len(paths))}, nil
}

// Len returns the number of images.
func (s *ImageSource) Len() int {
	return len(s.paths)
}

func (s *ImageSource) Run(ctx context.Context, out chan<- *ingest.Frame) error {
	return play(ctx, out, s.opts.FPS, s.opts.Loop, len(s.paths), s.frame)
}

// frame decodes image i once and reuses its pixels afterwards.
func (s *ImageSource) frame(i int) (*ingest.Frame, error) {
	if s.frames[i] == nil {
		img, err := decode(s.paths[i])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.paths[i], err)
		}
		s.frames[i] = frameFromImage(img)
	}
	return clone(s.frames[i]), nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

func (s *ImageSource) Close() error {
	return nil
}
