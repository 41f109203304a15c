package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/vectorscope/internal/analyzer"
	"github.com/ivlev/vectorscope/internal/config"
	"github.com/ivlev/vectorscope/internal/ingest"
	"github.com/ivlev/vectorscope/internal/scope"
	"github.com/ivlev/vectorscope/internal/source"
	"github.com/ivlev/vectorscope/internal/system"
)

// AnalyzeEvery is how many source frames pass between analyzer samples.
const AnalyzeEvery = 30

// GamutWarnFraction is the flagged fraction above which a sampled frame is reported.
const GamutWarnFraction = 0.01

// Resizer is implemented by surfaces whose size can be changed by a command.
type Resizer interface {
	Resize(w, h int)
}

type ScopeProject struct {
	Config    *config.Config
	Source    source.Source
	Scheduler *scope.Scheduler
	Surface   scope.Surface
	Detector  analyzer.Detector // optional
	Log       *slog.Logger
	Out       io.Writer // console report, stdout when nil

	framesIn     atomic.Uint64
	warnings     atomic.Uint64
	analyzed     atomic.Uint64
	sourceErrors atomic.Uint64
}

func NewScopeProject(cfg *config.Config, src source.Source, sched *scope.Scheduler, surf scope.Surface, det analyzer.Detector) *ScopeProject {
	return &ScopeProject{
		Config:    cfg,
		Source:    src,
		Scheduler: sched,
		Surface:   surf,
		Detector:  det,
		Log:       slog.Default(),
	}
}

// Run feeds source frames to the scheduler and ticks it at the refresh rate until ctx
// ends or Config.Duration elapses. The scheduler is closed before Run returns.
func (p *ScopeProject) Run(ctx context.Context) error {
	startTime := time.Now()
	if p.Config.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.Config.Duration*float64(time.Second)))
		defer cancel()
	}

	fmt.Fprintln(p.out(), "--- [PROJECT: VECTORSCOPE] ---")
	fmt.Fprintf(p.out(), "[*] Источник: %s %s | Режим: %s\n", p.Config.Source, p.Config.Input, p.Scheduler.Mode())
	fmt.Fprintf(p.out(), "[*] Разрешение: %dx%d @ %.0f Гц | Потоки: %d\n", p.Config.Width, p.Config.Height, p.Config.RefreshRate, p.Config.Workers)
	fmt.Fprintln(p.out(), "-----------------------------")

	frames := make(chan *ingest.Frame, 1)
	samples := make(chan *ingest.Frame, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(frames)
		err := p.Source.Run(gctx, frames)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			// обрыв потока не роняет скоп: остается последний отрисованный кадр
			p.sourceErrors.Add(1)
			p.Log.Warn("engine: source stopped", "source", p.Config.Source, "err", err)
		}
		return nil
	})
	if p.Detector != nil {
		g.Go(func() error {
			p.analyze(gctx, samples)
			return nil
		})
	}
	g.Go(func() error {
		defer close(samples)
		return p.display(gctx, frames, samples)
	})

	err := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if cerr := p.Scheduler.Close(closeCtx); cerr != nil {
		p.Log.Warn("engine: scheduler close", "err", cerr)
	}

	if p.Config.ShowStats {
		p.report(time.Since(startTime))
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// display is the presentation loop: it owns every Tick call.
func (p *ScopeProject) display(ctx context.Context, frames <-chan *ingest.Frame, samples chan<- *ingest.Frame) error {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / p.Config.RefreshRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				// источник закончился, продолжаем показывать последний кадр
				frames = nil
				continue
			}
			n := p.framesIn.Add(1)
			p.Scheduler.SubmitFrame(f)
			if n%AnalyzeEvery == 1 {
				select {
				case samples <- f:
				default:
				}
			}
		case <-ticker.C:
			if err := p.Scheduler.Tick(ctx, p.Surface); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				return fmt.Errorf("отрисовка: %w", err)
			}
		}
	}
}

func (p *ScopeProject) analyze(ctx context.Context, samples <-chan *ingest.Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-samples:
			if !ok {
				return
			}
			img, err := f.Image()
			if err != nil {
				continue
			}
			rep, err := p.Detector.Detect(img)
			if err != nil {
				p.Log.Warn("engine: analysis failed", "seq", f.Seq, "err", err)
				continue
			}
			p.analyzed.Add(1)
			if rep.Exceeds(GamutWarnFraction) {
				p.warnings.Add(1)
				p.Log.Warn("engine: out-of-gamut pixels",
					"seq", f.Seq, "detector", rep.Variant,
					"fraction", fmt.Sprintf("%.2f%%", rep.Fraction*100), "region", rep.Bounds)
			}
		}
	}
}

// HandleCommand applies a mode-control command: "mode <vector|parade|split>" or
// "resize <W>x<H>".
func (p *ScopeProject) HandleCommand(line string) error {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return fmt.Errorf("неизвестная команда: %q", line)
	}
	switch fields[0] {
	case "mode":
		m, err := scope.ParseMode(fields[1])
		if err != nil {
			return err
		}
		p.Scheduler.SetMode(m)
	case "resize":
		w, h, err := parseSize(fields[1])
		if err != nil {
			return err
		}
		if r, ok := p.Surface.(Resizer); ok {
			r.Resize(w, h)
		}
		p.Scheduler.OnResize(w, h)
	default:
		return fmt.Errorf("неизвестная команда: %q", line)
	}
	return nil
}

func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("размер должен быть в формате WxH: %q", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, err
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, err
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("некорректный размер: %dx%d", w, h)
	}
	return w, h, nil
}

func (p *ScopeProject) out() io.Writer {
	if p.Out == nil {
		return os.Stdout
	}
	return p.Out
}

func (p *ScopeProject) report(total time.Duration) {
	st := p.Scheduler.Stats()
	rate := float64(st.Completed) / total.Seconds()

	report := fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Total Time: %.2fs\n"+
			"Frames In: %d (dropped %d, rejected %d, source errors %d)\n"+
			"Draws: %d (completed %d, failed %d, coalesced %d)\n"+
			"Effective Draw Rate: %.2f/s\n"+
			"Analyzed: %d (gamut warnings %d)\n",
		p.Config.BuildVersion, total.Seconds(),
		p.framesIn.Load(), st.Dropped, st.Rejected, p.sourceErrors.Load(),
		st.Draws, st.Completed, st.Failed, st.Coalesced,
		rate,
		p.analyzed.Load(), p.warnings.Load(),
	)
	if ps, err := system.CurrentProcess(); err == nil {
		report += fmt.Sprintf("CPU: %.1f%% | RSS: %.1f MiB | Threads: %d\n", ps.CPUPercent, float64(ps.RSS)/(1<<20), ps.Threads)
	}
	report += "----------------------------\n"
	fmt.Fprint(p.out(), report)
}
