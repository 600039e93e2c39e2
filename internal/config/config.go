// Package config loads batch settings from a YAML file and command-line
// flags. Flags override file values.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/h39s/VessCoopJ/internal/errors"
	"github.com/h39s/VessCoopJ/internal/imageio"
	"github.com/h39s/VessCoopJ/internal/models"
	"github.com/h39s/VessCoopJ/internal/runparams"

	"gopkg.in/yaml.v3"
)

const (
	OnErrorSkip  = "skip"
	OnErrorAbort = "abort"

	PrompterConsole = "console"
	PrompterAuto    = "auto"
	PrompterGUI     = "gui"
)

type Config struct {
	Input struct {
		// Dir is the folder scanned for images.
		Dir       string `yaml:"dir"`
		Extension string `yaml:"extension"`
		// Channels and Frames describe how hyperstack pages are laid out.
		Channels int `yaml:"channels"`
		Frames   int `yaml:"frames"`
		// Calibration, when set, is treated as image metadata and skips
		// the scale prompt.
		Calibration *ScalePreset `yaml:"calibration,omitempty"`
	} `yaml:"input"`

	Output struct {
		// Dest is a local folder or s3://bucket/prefix.
		Dest        string `yaml:"dest"`
		Summary     bool   `yaml:"summary"`
		MetricsFile string `yaml:"metrics_file"`
	} `yaml:"output"`

	Classifier struct {
		VesselModel string `yaml:"vessel_model"`
		CellModel   string `yaml:"cell_model"`
		// ClassifyCells skips the cell-mode question when set.
		ClassifyCells *bool  `yaml:"classify_cells,omitempty"`
		TrainingDir   string `yaml:"training_dir"`
	} `yaml:"classifier"`

	Processing struct {
		OnError      string `yaml:"on_error"`
		ExcludeEdges bool   `yaml:"exclude_edges"`
	} `yaml:"processing"`

	Presets Presets `yaml:"presets"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Prompter   string `yaml:"prompter"`
	PreviewDir string `yaml:"preview_dir"`
}

// Presets lock parameter families for the whole batch.
type Presets struct {
	Vessel      *VesselPreset    `yaml:"vessel,omitempty"`
	CellA       *ChannelPreset   `yaml:"cell_a,omitempty"`
	CellB       *ChannelPreset   `yaml:"cell_b,omitempty"`
	Scale       *ScalePreset     `yaml:"scale,omitempty"`
	Threshold   *ThresholdPreset `yaml:"threshold,omitempty"`
	MinCellSize *float64         `yaml:"min_cell_size,omitempty"`
}

type VesselPreset struct {
	Channel  int `yaml:"channel"`
	MinSlice int `yaml:"min_slice"`
}

type ChannelPreset struct {
	Channel int    `yaml:"channel"`
	Name    string `yaml:"name"`
}

type ScalePreset struct {
	PixelWidth  float64 `yaml:"pixel_width"`
	PixelHeight float64 `yaml:"pixel_height"`
	Unit        string  `yaml:"unit"`
}

type ThresholdPreset struct {
	Threshold float64 `yaml:"threshold"`
	Radius    float64 `yaml:"radius"`
}

func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Input.Extension = ".tif"
	cfg.Input.Channels = 1
	cfg.Input.Frames = 1
	cfg.Output.Summary = true
	cfg.Processing.OnError = OnErrorSkip
	cfg.Processing.ExcludeEdges = true
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"
	cfg.Prompter = PrompterConsole
	return cfg
}

// LoadConfig reads path over the defaults. A missing file yields the
// defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return cfg, nil
}

func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// Validate reports the first problem as a configuration error.
func (c *Config) Validate() error {
	fail := func(format string, args ...interface{}) error {
		return apperrors.NewConfigurationError(fmt.Sprintf(format, args...), nil)
	}
	if c.Input.Dir == "" {
		return fail("no input folder chosen")
	}
	if c.Output.Dest == "" {
		return fail("no output folder chosen")
	}
	if strings.TrimSpace(c.Input.Extension) == "" {
		return fail("input extension is empty")
	}
	if c.Input.Channels < 1 || c.Input.Frames < 1 {
		return fail("hyperstack layout needs at least one channel and frame, got %d and %d", c.Input.Channels, c.Input.Frames)
	}
	if c.Input.Calibration != nil {
		if err := c.Input.Calibration.validate(); err != nil {
			return fail("input calibration: %v", err)
		}
	}
	switch c.Processing.OnError {
	case OnErrorSkip, OnErrorAbort:
	default:
		return fail("on_error must be %q or %q, got %q", OnErrorSkip, OnErrorAbort, c.Processing.OnError)
	}
	switch c.Prompter {
	case PrompterConsole, PrompterAuto, PrompterGUI:
	default:
		return fail("unknown prompter %q", c.Prompter)
	}
	return c.Presets.validate()
}

func (s ScalePreset) validate() error {
	if s.PixelWidth <= 0 {
		return fmt.Errorf("pixel_width must be positive")
	}
	if s.PixelHeight < 0 {
		return fmt.Errorf("pixel_height must not be negative")
	}
	return nil
}

func (p Presets) validate() error {
	fail := func(format string, args ...interface{}) error {
		return apperrors.NewConfigurationError("presets: "+fmt.Sprintf(format, args...), nil)
	}
	if p.Vessel != nil && (p.Vessel.Channel < 1 || p.Vessel.MinSlice < 1) {
		return fail("vessel channel and min_slice start at 1")
	}
	for name, c := range map[string]*ChannelPreset{"cell_a": p.CellA, "cell_b": p.CellB} {
		if c != nil && c.Channel < 1 {
			return fail("%s channel starts at 1", name)
		}
	}
	if p.Scale != nil {
		if err := p.Scale.validate(); err != nil {
			return fail("scale: %v", err)
		}
	}
	if p.Threshold != nil && (p.Threshold.Threshold < 0 || p.Threshold.Radius <= 0) {
		return fail("threshold needs a non-negative contrast and a positive radius")
	}
	if p.MinCellSize != nil && *p.MinCellSize < 0 {
		return fail("min_cell_size must not be negative")
	}
	return nil
}

// Calibration converts a preset into a scale. Missing height means square
// pixels.
func (s ScalePreset) Calibration() models.ScaleCalibration {
	h := s.PixelHeight
	if h == 0 {
		h = s.PixelWidth
	}
	unit := s.Unit
	if unit == "" {
		unit = "pixels"
	}
	return models.ScaleCalibration{PixelWidth: s.PixelWidth, PixelHeight: h, Unit: unit, Scaled: true}
}

// RunParams converts the presets for runparams.Cache.Apply.
func (p Presets) RunParams() runparams.Presets {
	var out runparams.Presets
	if p.Vessel != nil {
		out.Vessel = &models.VesselSelection{Channel: p.Vessel.Channel, MinSlice: p.Vessel.MinSlice}
	}
	if p.CellA != nil {
		out.CellA = channelSelection(*p.CellA, "Cell Channel 1")
	}
	if p.CellB != nil {
		out.CellB = channelSelection(*p.CellB, "Cell Channel 2")
	}
	if p.Scale != nil {
		s := p.Scale.Calibration()
		out.Scale = &s
	}
	if p.Threshold != nil {
		out.Threshold = &models.ThresholdParams{Threshold: p.Threshold.Threshold, Radius: p.Threshold.Radius}
	}
	if p.MinCellSize != nil {
		v := *p.MinCellSize
		out.MinCellSize = &v
	}
	return out
}

func channelSelection(c ChannelPreset, fallback string) *models.ChannelSelection {
	name := c.Name
	if name == "" {
		name = fallback
	}
	return &models.ChannelSelection{Channel: c.Channel, Name: name}
}

// Layout is the decoder layout for the input hyperstacks.
func (c *Config) Layout() imageio.HyperstackLayout {
	return imageio.HyperstackLayout{Channels: c.Input.Channels, Frames: c.Input.Frames}
}

// InputCalibration is nil unless the config supplies image calibration.
func (c *Config) InputCalibration() *models.ScaleCalibration {
	if c.Input.Calibration == nil {
		return nil
	}
	s := c.Input.Calibration.Calibration()
	return &s
}

// Flags are the command-line overrides. Empty values leave the file value
// in place.
type Flags struct {
	ConfigPath  string
	Input       string
	Output      string
	Extension   string
	Prompter    string
	OnError     string
	LogLevel    string
	LogFormat   string
	MetricsFile string
	WriteConfig string
}

func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.ConfigPath, "config", "", "YAML configuration file")
	fs.StringVar(&f.Input, "input", "", "Folder containing the images to process")
	fs.StringVar(&f.Output, "output", "", "Output folder or s3://bucket/prefix")
	fs.StringVar(&f.Extension, "ext", "", "Input file extension (default .tif)")
	fs.StringVar(&f.Prompter, "prompter", "", "Prompt front end: console, auto or gui")
	fs.StringVar(&f.OnError, "on-error", "", "Per-image failure policy: skip or abort")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&f.LogFormat, "log-format", "", "Log format: console or json")
	fs.StringVar(&f.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the batch")
	fs.StringVar(&f.WriteConfig, "write-config", "", "Write the effective configuration to this file and exit")
	return f
}

// Load reads the config file named by the flags and applies the overrides.
func (f *Flags) Load() (*Config, error) {
	cfg, err := LoadConfig(f.ConfigPath)
	if err != nil {
		return nil, apperrors.NewConfigurationError("loading "+f.ConfigPath, err)
	}
	f.Apply(cfg)
	return cfg, nil
}

func (f *Flags) Apply(cfg *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Input.Dir, f.Input)
	set(&cfg.Output.Dest, f.Output)
	set(&cfg.Input.Extension, f.Extension)
	set(&cfg.Prompter, f.Prompter)
	set(&cfg.Processing.OnError, f.OnError)
	set(&cfg.Logging.Level, f.LogLevel)
	set(&cfg.Logging.Format, f.LogFormat)
	set(&cfg.Output.MetricsFile, f.MetricsFile)
}
