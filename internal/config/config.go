package config

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("config: invalid value")

type Config struct {
	Mode           string
	Width          int
	Height         int
	RefreshRate    float64
	Workers        int
	MemoryBudgetMB int
	MaxInputPixels int
	SaturationHits int
	ColorStandard  string
	Calibration    string
	Source         string
	Input          string
	Device         string
	SourceFPS      float64
	Loop           bool
	DPI            int
	Analyzer       string
	Record         string
	Snapshot       string
	Duration       float64
	LogLevel       string
	ShowStats      bool
	BuildVersion   string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "vector")
	v.SetDefault("width", 800)
	v.SetDefault("height", 600)
	v.SetDefault("refreshRate", 60.0)
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("memoryBudgetMB", 256)
	v.SetDefault("maxInputPixels", 1920*1080)
	v.SetDefault("saturationHits", 64)
	v.SetDefault("colorStandard", "bt601")
	v.SetDefault("calibration", "")
	v.SetDefault("source", "bars")
	v.SetDefault("input", "")
	v.SetDefault("device", "")
	v.SetDefault("sourceFPS", 30.0)
	v.SetDefault("loop", true)
	v.SetDefault("dpi", 72)
	v.SetDefault("analyzer", "gamut")
	v.SetDefault("record", "")
	v.SetDefault("snapshot", "")
	v.SetDefault("duration", 0.0)
	v.SetDefault("logLevel", "info")
	v.SetDefault("showStats", false)
}

// Load reads defaults overlaid with the YAML file at path. An empty path uses the
// defaults only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
		}
	}

	cfg := &Config{
		Mode:           v.GetString("mode"),
		Width:          v.GetInt("width"),
		Height:         v.GetInt("height"),
		RefreshRate:    v.GetFloat64("refreshRate"),
		Workers:        v.GetInt("workers"),
		MemoryBudgetMB: v.GetInt("memoryBudgetMB"),
		MaxInputPixels: v.GetInt("maxInputPixels"),
		SaturationHits: v.GetInt("saturationHits"),
		ColorStandard:  v.GetString("colorStandard"),
		Calibration:    v.GetString("calibration"),
		Source:         v.GetString("source"),
		Input:          v.GetString("input"),
		Device:         v.GetString("device"),
		SourceFPS:      v.GetFloat64("sourceFPS"),
		Loop:           v.GetBool("loop"),
		DPI:            v.GetInt("dpi"),
		Analyzer:       v.GetString("analyzer"),
		Record:         v.GetString("record"),
		Snapshot:       v.GetString("snapshot"),
		Duration:       v.GetFloat64("duration"),
		LogLevel:       v.GetString("logLevel"),
		ShowStats:      v.GetBool("showStats"),
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges that would otherwise surface as runtime failures.
func (c *Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalidConfig, c.Width, c.Height)
	case c.RefreshRate <= 0:
		return fmt.Errorf("%w: refreshRate %v", ErrInvalidConfig, c.RefreshRate)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers %d", ErrInvalidConfig, c.Workers)
	case c.MemoryBudgetMB <= 0:
		return fmt.Errorf("%w: memoryBudgetMB %d", ErrInvalidConfig, c.MemoryBudgetMB)
	case c.SaturationHits <= 0:
		return fmt.Errorf("%w: saturationHits %d", ErrInvalidConfig, c.SaturationHits)
	case c.Duration < 0:
		return fmt.Errorf("%w: duration %v", ErrInvalidConfig, c.Duration)
	}
	return nil
}

// MemoryBudget returns the analysis image budget in bytes.
func (c *Config) MemoryBudget() uint64 {
	return uint64(c.MemoryBudgetMB) << 20
}
