package photolite

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/photolite/photolite/utils"
)

// MaxCanvasSize bounds both canvas dimensions.
const MaxCanvasSize = 16384

// configValidate checks the configuration struct tags. Field names in the
// reported errors follow the yaml keys.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	configValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = configValidate.RegisterValidation("color", validateColor)
}

// validateColor accepts the hex colors understood by utils.HexToRGBA.
func validateColor(fl validator.FieldLevel) bool {
	_, err := utils.HexToRGBA(fl.Field().String())
	return err == nil
}

// Config holds the session configuration.
type Config struct {
	Canvas  CanvasConfig  `yaml:"canvas"`
	History HistoryConfig `yaml:"history"`
	Brush   BrushConfig   `yaml:"brush"`
	Filters FilterConfig  `yaml:"filters"`
}

// CanvasConfig fixes the size shared by every layer and the color of the
// initial background layer.
type CanvasConfig struct {
	Width      int    `yaml:"width" validate:"gte=1,lte=16384"`
	Height     int    `yaml:"height" validate:"gte=1,lte=16384"`
	Background string `yaml:"background" validate:"color"`
}

// HistoryConfig controls the undo history.
type HistoryConfig struct {
	Depth int `yaml:"depth" validate:"gte=1"`
	// Codec is the snapshot encoding, "png" or "bmp".
	Codec string `yaml:"codec" validate:"oneof=png bmp"`
	// TrackAttributes makes visibility, mode and opacity changes undoable.
	TrackAttributes bool `yaml:"track_attributes"`
}

// BrushConfig holds the initial tool state.
type BrushConfig struct {
	Tool    string  `yaml:"tool" validate:"oneof=brush eraser"`
	Size    float64 `yaml:"size" validate:"gte=1,lte=100"`
	Color   string  `yaml:"color" validate:"color"`
	Opacity float64 `yaml:"opacity" validate:"gte=0,lte=1"`
}

// FilterConfig holds the filter parameters.
type FilterConfig struct {
	BlurRadius int `yaml:"blur_radius" validate:"gte=1,lte=254"`
}

// DefaultConfig returns an 800x600 white canvas with ten undo steps and a
// 20px opaque black brush.
func DefaultConfig() Config {
	return Config{
		Canvas: CanvasConfig{
			Width:      800,
			Height:     600,
			Background: "#ffffff",
		},
		History: HistoryConfig{
			Depth: DefaultHistoryDepth,
			Codec: "png",
		},
		Brush: BrushConfig{
			Tool:    string(Brush),
			Size:    20,
			Color:   "#000000",
			Opacity: 1,
		},
		Filters: FilterConfig{
			BlurRadius: DefaultBlurRadius,
		},
	}
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not open the config file: %w", err)
	}
	defer f.Close()

	return ParseConfig(f)
}

// ParseConfig decodes a YAML configuration. Missing fields keep their
// default value; unknown fields are rejected. The result is validated.
func ParseConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field against its allowed range.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
