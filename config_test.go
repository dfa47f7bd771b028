package photolite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 800, cfg.Canvas.Width)
	assert.Equal(t, 600, cfg.Canvas.Height)
	assert.Equal(t, "#ffffff", cfg.Canvas.Background)
	assert.Equal(t, 10, cfg.History.Depth)
	assert.Equal(t, "png", cfg.History.Codec)
	assert.False(t, cfg.History.TrackAttributes)
	assert.Equal(t, "brush", cfg.Brush.Tool)
	assert.Equal(t, 20.0, cfg.Brush.Size)
	assert.Equal(t, "#000000", cfg.Brush.Color)
	assert.Equal(t, 1.0, cfg.Brush.Opacity)
	assert.Equal(t, 5, cfg.Filters.BlurRadius)
}

func TestConfig_ParseKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(`
canvas:
  width: 320
history:
  codec: bmp
  track_attributes: true
brush:
  tool: eraser
`))
	require.NoError(t, err)

	want := DefaultConfig()
	want.Canvas.Width = 320
	want.History.Codec = "bmp"
	want.History.TrackAttributes = true
	want.Brush.Tool = "eraser"
	assert.Equal(t, want, cfg)
}

func TestConfig_ParseEmpty(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfig_ParseRejectsUnknownFields(t *testing.T) {
	_, err := ParseConfig(strings.NewReader("canvas:\n  depth: 3\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfig_Validate(t *testing.T) {
	testCases := map[string]func(*Config){
		"zero width":    func(c *Config) { c.Canvas.Width = 0 },
		"huge height":   func(c *Config) { c.Canvas.Height = MaxCanvasSize + 1 },
		"background":    func(c *Config) { c.Canvas.Background = "white" },
		"depth":         func(c *Config) { c.History.Depth = 0 },
		"codec":         func(c *Config) { c.History.Codec = "webp" },
		"tool":          func(c *Config) { c.Brush.Tool = "lasso" },
		"brush size":    func(c *Config) { c.Brush.Size = 101 },
		"brush color":   func(c *Config) { c.Brush.Color = "#12" },
		"brush opacity": func(c *Config) { c.Brush.Opacity = 1.5 },
		"zero blur":     func(c *Config) { c.Filters.BlurRadius = 0 },
		"too much blur": func(c *Config) { c.Filters.BlurRadius = 255 },
	}
	for name, mutate := range testCases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfig_ValidateReportsEveryField(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Canvas.Width = -1
	cfg.Brush.Tool = "lasso"

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "Config.canvas.width")
	assert.Contains(t, err.Error(), "Config.brush.tool")

	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
}

func TestConfig_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photolite.yaml")
	require.NoError(t, os.WriteFile(path, []byte("filters:\n  blur_radius: 9\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Filters.BlurRadius)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
