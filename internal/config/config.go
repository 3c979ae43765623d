package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/framecrop/internal/logging"
	"github.com/menta2k/framecrop/pkg/controller"
	"github.com/menta2k/framecrop/pkg/export"
	"github.com/menta2k/framecrop/pkg/focus"
	"github.com/menta2k/framecrop/pkg/mapper"
	"github.com/menta2k/framecrop/pkg/render"
	"github.com/menta2k/framecrop/pkg/upload"
)

// Config holds the application configuration
type Config struct {
	Interaction InteractionConfig `json:"interaction" yaml:"interaction"`
	Render      render.Config     `json:"render" yaml:"render"`
	Export      ExportConfig      `json:"export" yaml:"export"`
	Upload      upload.Config     `json:"upload" yaml:"upload"`
	Focus       focus.Config      `json:"focus" yaml:"focus"`
	Logging     logging.Options   `json:"logging" yaml:"logging"`
}

// InteractionConfig holds drag and zoom tuning
type InteractionConfig struct {
	controller.Config `yaml:",inline"`
	Scale             mapper.ScalePolicy `json:"scale" yaml:"scale"`
}

// ExportConfig holds export defaults
type ExportConfig struct {
	export.Config `yaml:",inline"`
	Format        string   `json:"format" yaml:"format"`
	Sizes         []string `json:"sizes" yaml:"sizes"`
	OutputDir     string   `json:"output_dir" yaml:"output_dir"`
	CroppedOnly   bool     `json:"cropped_only" yaml:"cropped_only"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Interaction: InteractionConfig{
			Config: controller.DefaultConfig(),
			Scale:  mapper.DefaultScalePolicy(),
		},
		Export: ExportConfig{
			Config:    export.DefaultConfig(),
			Format:    "png",
			Sizes:     []string{"original"},
			OutputDir: "./output",
		},
		Upload:  upload.DefaultConfig(),
		Focus:   focus.DefaultConfig(),
		Logging: logging.DefaultOptions(),
	}
}

func isJSON(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".json")
}

// LoadFromFile reads YAML, or JSON for .json files, over the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isJSON(filename) {
		err = json.Unmarshal(data, config)
	} else {
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// SaveToFile writes YAML, or JSON for .json files
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isJSON(filename) {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid, reporting every problem
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Interaction.ZoomStep > 0 && c.Interaction.ZoomStep < 1, "interaction.zoom_step must be between 0 and 1")
	check(c.Interaction.MinWheelInterval >= 0, "interaction.min_wheel_interval must not be negative")
	if c.Interaction.Scale.Proportional {
		check(c.Interaction.Scale.Factor >= 1, "interaction.scale.factor must be at least 1")
		check(c.Interaction.Scale.Ceiling > 0, "interaction.scale.ceiling must be positive")
	} else {
		check(c.Interaction.Scale.Fixed > 0, "interaction.scale.fixed must be positive")
	}

	check(c.Export.Quality >= 1 && c.Export.Quality <= 100, "export.quality must be between 1 and 100")
	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		errs = append(errs, fmt.Errorf("export.format: %w", err))
	}

	check(c.Upload.MinImageSize >= 1, "upload.min_image_size must be positive")
	check(len(c.Upload.SupportedFormats) > 0, "upload.supported_formats cannot be empty")

	switch strings.ToLower(c.Focus.Backend) {
	case "", focus.BackendNone, "center", focus.BackendSaliency:
	case focus.BackendOllama, focus.BackendLlamaCpp:
		check(c.Focus.Model != "", "focus.model is required for the %s backend", c.Focus.Backend)
	default:
		errs = append(errs, fmt.Errorf("focus.backend: %w: %q", focus.ErrUnknownBackend, c.Focus.Backend))
	}
	check(c.Focus.MinConfidence >= 0 && c.Focus.MinConfidence <= 1, "focus.min_confidence must be between 0 and 1")
	check(c.Focus.Saliency.MinSubjectRatio >= 0 && c.Focus.Saliency.MinSubjectRatio <= 1, "focus.saliency.min_subject_ratio must be between 0 and 1")

	return errors.Join(errs...)
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "framecrop", "config.yaml")
}
