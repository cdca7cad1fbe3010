package arbor

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds window manager settings. Zero values are not meaningful; start
// from DefaultConfig or LoadConfig.
type Config struct {
	PerformanceMode   bool          `yaml:"performance_mode"`
	UpdateRate        int           `yaml:"update_rate"` // Hz
	VSync             bool          `yaml:"vsync"`
	TripleBuffering   bool          `yaml:"triple_buffering"`
	PowerSaving       bool          `yaml:"power_saving"`
	Effects           bool          `yaml:"effects"`
	Gestures          bool          `yaml:"gestures"`
	WindowSnapping    bool          `yaml:"window_snapping"`
	AutoWorkspace     bool          `yaml:"auto_workspace"`
	DefaultLayout     LayoutType    `yaml:"default_layout"`
	AnimationDuration time.Duration `yaml:"animation_duration"`
	Easing            EasingType    `yaml:"easing"`
	WorkspaceWidth    float64       `yaml:"workspace_width"`
	WorkspaceHeight   float64       `yaml:"workspace_height"`
	RotateThreshold   float64       `yaml:"rotate_threshold"` // radians
	SpatialCellSize   float64       `yaml:"spatial_cell_size"`
}

// Update rates for normal and power-saving operation.
const (
	DefaultUpdateRate     = 60
	PowerSavingUpdateRate = 30
)

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		UpdateRate:        DefaultUpdateRate,
		VSync:             true,
		TripleBuffering:   true,
		Effects:           true,
		Gestures:          true,
		WindowSnapping:    true,
		AutoWorkspace:     true,
		DefaultLayout:     LayoutTiling,
		AnimationDuration: DefaultEffectDuration,
		Easing:            EasingEaseOut,
		WorkspaceWidth:    1920,
		WorkspaceHeight:   1080,
		RotateThreshold:   DefaultRotateThreshold,
		SpatialCellSize:   DefaultCellSize,
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Keys absent from the file
// keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("arbor: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("arbor: parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("arbor: config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.UpdateRate <= 0 {
		errs = append(errs, fmt.Errorf("update_rate must be positive, got %d", c.UpdateRate))
	}
	if c.WorkspaceWidth <= 0 || c.WorkspaceHeight <= 0 {
		errs = append(errs, fmt.Errorf("workspace size must be positive, got %vx%v", c.WorkspaceWidth, c.WorkspaceHeight))
	}
	if c.AnimationDuration < 0 {
		errs = append(errs, fmt.Errorf("animation_duration must not be negative, got %v", c.AnimationDuration))
	}
	if c.RotateThreshold < 0 {
		errs = append(errs, fmt.Errorf("rotate_threshold must not be negative, got %v", c.RotateThreshold))
	}
	if c.SpatialCellSize < 0 {
		errs = append(errs, fmt.Errorf("spatial_cell_size must not be negative, got %v", c.SpatialCellSize))
	}
	if int(c.DefaultLayout) >= len(layoutNames) {
		errs = append(errs, fmt.Errorf("unknown default_layout %d", c.DefaultLayout))
	}
	return errors.Join(errs...)
}

// YAML renders the configuration as YAML.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c Config) workspaceRect() Rect {
	return Rect{Width: c.WorkspaceWidth, Height: c.WorkspaceHeight}
}
