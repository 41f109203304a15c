package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ivlev/vectorscope/internal/analyzer"
	"github.com/ivlev/vectorscope/internal/calibration"
	"github.com/ivlev/vectorscope/internal/colorspace"
	"github.com/ivlev/vectorscope/internal/config"
	"github.com/ivlev/vectorscope/internal/engine"
	"github.com/ivlev/vectorscope/internal/gpu"
	"github.com/ivlev/vectorscope/internal/logging"
	"github.com/ivlev/vectorscope/internal/present"
	"github.com/ivlev/vectorscope/internal/scope"
	"github.com/ivlev/vectorscope/internal/source"
	"github.com/ivlev/vectorscope/internal/system"
)

var version = "dev"

func main() {
	// Увеличиваем лимиты системы (для macOS/Linux)
	system.InitResourceLimits()

	configPtr := flag.String("config", "", "Путь к YAML-конфигурации")
	modePtr := flag.String("mode", "", "Режим: vector, parade, split")
	widthPtr := flag.Int("width", 0, "Ширина окна скопа")
	heightPtr := flag.Int("height", 0, "Высота окна скопа")
	refreshPtr := flag.Float64("refresh", 0, "Частота обновления дисплея (Гц)")
	workersPtr := flag.Int("workers", 0, "Потоки")
	memoryPtr := flag.Int("memory-mb", 0, "Бюджет памяти анализирующего изображения (МБ)")
	hitsPtr := flag.Int("saturation-hits", 0, "Число попаданий до полной яркости точки")
	standardPtr := flag.String("standard", "", "Матрица цвета: bt601, bt709")
	calibrationPtr := flag.String("calibration", "", "Путь к YAML-калибровке мишеней")
	writeCalPtr := flag.String("write-calibration", "", "Записать действующую калибровку в файл и выйти")
	sourcePtr := flag.String("source", "", "Источник: bars, image, pdf, ffmpeg")
	inputPtr := flag.String("input", "", "Файл или папка источника (по умолчанию: самый свежий файл в input/)")
	devicePtr := flag.String("device", "", "Устройство захвата для ffmpeg")
	fpsPtr := flag.Float64("fps", 0, "FPS источника")
	loopPtr := flag.Bool("loop", true, "Зациклить источник")
	dpiPtr := flag.Int("dpi", 0, "DPI для PDF")
	analyzerPtr := flag.String("analyzer", "", "Анализатор: gamut, clip, none")
	recordPtr := flag.String("record", "", "Записать скоп в видеофайл")
	snapshotPtr := flag.String("snapshot", "", "Сохранить последний кадр скопа в PNG")
	durationPtr := flag.Float64("duration", 0, "Длительность работы (сек, 0 - до Ctrl+C)")
	logLevelPtr := flag.String("log-level", "", "Уровень логов: debug, info, warn, error")
	statsPtr := flag.Bool("stats", false, "Показать отчет о производительности")

	flag.Parse()

	cfg, err := config.Load(*configPtr)
	if err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}

	// флаги командной строки перекрывают файл, но только явно заданные
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Mode = *modePtr
		case "width":
			cfg.Width = *widthPtr
		case "height":
			cfg.Height = *heightPtr
		case "refresh":
			cfg.RefreshRate = *refreshPtr
		case "workers":
			cfg.Workers = *workersPtr
		case "memory-mb":
			cfg.MemoryBudgetMB = *memoryPtr
		case "saturation-hits":
			cfg.SaturationHits = *hitsPtr
		case "standard":
			cfg.ColorStandard = *standardPtr
		case "calibration":
			cfg.Calibration = *calibrationPtr
		case "source":
			cfg.Source = *sourcePtr
		case "input":
			cfg.Input = *inputPtr
		case "device":
			cfg.Device = *devicePtr
		case "fps":
			cfg.SourceFPS = *fpsPtr
		case "loop":
			cfg.Loop = *loopPtr
		case "dpi":
			cfg.DPI = *dpiPtr
		case "analyzer":
			cfg.Analyzer = *analyzerPtr
		case "record":
			cfg.Record = *recordPtr
		case "snapshot":
			cfg.Snapshot = *snapshotPtr
		case "duration":
			cfg.Duration = *durationPtr
		case "log-level":
			cfg.LogLevel = *logLevelPtr
		case "stats":
			cfg.ShowStats = *statsPtr
		}
	})
	cfg.BuildVersion = version
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}

	logger := logging.Setup(cfg.LogLevel, os.Stderr)
	gpu.SetLogger(logger)

	std, err := colorspace.ParseStandard(cfg.ColorStandard)
	if err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
	matrix, err := colorspace.New(std)
	if err != nil {
		log.Fatalf("[-] Ошибка матрицы цвета: %v", err)
	}

	cal, scopeCfg, err := loadCalibration(cfg.Calibration, matrix)
	if err != nil {
		log.Fatalf("[-] Ошибка калибровки: %v", err)
	}
	if *writeCalPtr != "" {
		if err := calibration.WriteFile(cal, *writeCalPtr); err != nil {
			log.Fatalf("[-] Ошибка записи калибровки: %v", err)
		}
		fmt.Printf("[+++] Калибровка записана: %s\n", *writeCalPtr)
		return
	}

	mode, err := scope.ParseMode(cfg.Mode)
	if err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}

	dev := gpu.NewDevice(gpu.Options{Workers: cfg.Workers, MemoryBudget: cfg.MemoryBudget()})
	sched, err := scope.New(scope.Options{
		Device:         dev,
		Scope:          scopeCfg,
		Matrix:         matrix,
		Mode:           mode,
		SaturationHits: cfg.SaturationHits,
		MaxInputPixels: cfg.MaxInputPixels,
		Overlay:        true,
		Logger:         logger,
	})
	if err != nil {
		log.Fatalf("[-] Ошибка сборки ядер: %v", err)
	}

	input := cfg.Input
	if input == "" {
		input = findDefaultInput(cfg.Source)
	}
	src, err := source.New(cfg.Source, input, source.Options{
		Width:  cfg.Width,
		Height: cfg.Height,
		FPS:    cfg.SourceFPS,
		Loop:   cfg.Loop,
		DPI:    cfg.DPI,
		Device: cfg.Device,
	})
	if err != nil {
		log.Fatalf("[-] Ошибка инициализации источника: %v", err)
	}
	defer src.Close()
	cfg.Input = input

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	screen := present.NewPNGSurface(cfg.Width, cfg.Height)
	surface := present.Tee{screen}

	var recorder *present.RecorderSurface
	if cfg.Record != "" {
		encoderName := system.GetBestH264Encoder()
		if encoderName != "libx264" {
			fmt.Printf("[*] Обнаружено аппаратное ускорение: %s\n", encoderName)
		}
		// запись завершается через Close, а не по сигналу, иначе файл обрывается
		recorder, err = present.NewRecorder(context.Background(), present.RecorderOptions{
			Path:    cfg.Record,
			Width:   cfg.Width,
			Height:  cfg.Height,
			FPS:     int(cfg.RefreshRate),
			Encoder: encoderName,
		})
		if err != nil {
			log.Fatalf("[-] Ошибка запуска записи: %v", err)
		}
		surface = append(surface, recorder)
	}

	var detector analyzer.Detector
	if cfg.Analyzer != "" && cfg.Analyzer != "none" {
		detector, err = analyzer.NewDetector(cfg.Analyzer, matrix)
		if err != nil {
			log.Fatalf("[-] Ошибка анализатора: %v", err)
		}
	}

	project := engine.NewScopeProject(cfg, src, sched, surface, detector)
	project.Log = logger

	go readCommands(project)

	// запись и снимок завершаются даже после ошибки отрисовки
	runErr := project.Run(ctx)

	if recorder != nil {
		if err := recorder.Close(); err != nil {
			log.Printf("[!] Ошибка завершения записи: %v", err)
		} else {
			fmt.Printf("[+++] Запись сохранена: %s (%d кадров)\n", cfg.Record, recorder.Frames())
		}
	}
	if cfg.Snapshot != "" {
		if err := screen.Snapshot(cfg.Snapshot); err != nil {
			log.Printf("[!] Не удалось сохранить снимок: %v", err)
		} else {
			fmt.Printf("[+++] Снимок скопа: %s\n", cfg.Snapshot)
		}
	}
	if runErr != nil {
		src.Close()
		stop()
		log.Fatalf("[-] Ошибка: %v", runErr)
	}
	fmt.Println("[+++] Готово")
}

// loadCalibration uses the calibration file when one is given. Without a file the
// targets for standards other than Rec.601 are derived from 75% bars.
func loadCalibration(path string, m *colorspace.Matrix) (calibration.Calibration, calibration.ScopeConfig, error) {
	if path != "" || m.Standard() == colorspace.BT601 {
		return calibration.Load(path)
	}
	cal := calibration.Default()
	targets, err := calibration.DeriveTargets(m, source.BarsLevel)
	if err != nil {
		return calibration.Calibration{}, calibration.ScopeConfig{}, err
	}
	cal.Standard = m.Standard().String()
	cal.Targets = targets
	sc, err := calibration.Build(cal)
	if err != nil {
		return calibration.Calibration{}, calibration.ScopeConfig{}, err
	}
	return cal, sc, nil
}

func findDefaultInput(kind string) string {
	var dir string
	var exts []string
	switch kind {
	case "image":
		dir, exts = "input/images", system.ImageExtensions
	case "pdf":
		dir, exts = "input/pdf", system.PDFExtensions
	default:
		return ""
	}
	os.MkdirAll(dir, 0755)
	latest, err := system.FindLatest(dir, exts)
	if err != nil {
		log.Fatalf("[-] Ошибка: %v. Положите файлы в %s/", err, dir)
	}
	if kind == "image" {
		// источник изображений читает всю папку
		latest = filepath.Dir(latest)
	}
	fmt.Printf("[*] Выбран источник: %s\n", latest)
	return latest
}

// readCommands reads "mode ..." and "resize WxH" lines from stdin.
func readCommands(p *engine.ScopeProject) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := p.HandleCommand(line); err != nil {
			log.Printf("[!] %v", err)
			continue
		}
		fmt.Printf("[*] %s (%s)\n", line, time.Now().Format("15:04:05"))
	}
}
