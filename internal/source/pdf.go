package source

import (
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"

	"github.com/ivlev/vectorscope/internal/ingest"
)

// PDFSource plays the pages of a PDF, such as a printed calibration chart, as frames.
type PDFSource struct {
	doc    *fitz.Document
	path   string
	opts   Options
	frames []*ingest.Frame
}

func NewPDFSource(path string, opts Options) (*PDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	if doc.NumPage() == 0 {
		doc.Close()
		return nil, fmt.Errorf("%s: в документе нет страниц", path)
	}
	return &PDFSource{doc: doc, path: path, opts: opts.withDefaults(), frames: make([]*ingest.Frame, doc.NumPage())}, nil
}

func (p *PDFSource) PageCount() int {
	return p.doc.NumPage()
}

func (p *PDFSource) Run(ctx context.Context, out chan<- *ingest.Frame) error {
	return play(ctx, out, p.opts.FPS, p.opts.Loop, p.PageCount(), p.frame)
}

// frame renders page i once at the configured DPI.
func (p *PDFSource) frame(i int) (*ingest.Frame, error) {
	if p.frames[i] == nil {
		img, err := p.doc.ImageDPI(i, float64(p.opts.DPI))
		if err != nil {
			return nil, fmt.Errorf("%s: страница %d: %w", p.path, i+1, err)
		}
		p.frames[i] = frameFromImage(img)
	}
	return clone(p.frames[i]), nil
}

func (p *PDFSource) Close() error {
	return p.doc.Close()
}
