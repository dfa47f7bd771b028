package photolite

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sketchScript = `
steps:
  - action: add_layer
    name: Sketch
  - action: color
    color: "#ff0000"
  - action: brush_size
    size: 4
  - action: pointer_down
    at: [5.5, 10.5]
  - action: pointer_move
    at: [30.5, 10.5]
  - action: pointer_up
  - action: key
    key: e
  - action: stroke
    points: [[20.5, 10.5]]
    size: 4
  - action: key
    key: b
  - action: add_layer
  - action: blend_mode
    mode: multiply
  - action: layer_opacity
    opacity: 0.5
  - action: toggle_visibility
    index: 2
  - action: select_layer
    index: 1
`

func TestScript_Parse(t *testing.T) {
	sc, err := ParseScript(strings.NewReader(sketchScript))
	require.NoError(t, err)
	require.Len(t, sc.Steps, 14)
	assert.Equal(t, Step{Action: ActionAddLayer, Name: "Sketch"}, sc.Steps[0])
	assert.Equal(t, []float64{5.5, 10.5}, sc.Steps[3].At)
	assert.Equal(t, [][2]float64{{20.5, 10.5}}, sc.Steps[7].Points)
	require.NotNil(t, sc.Steps[11].Opacity)
	assert.Equal(t, 0.5, *sc.Steps[11].Opacity)

	_, err = ParseScript(strings.NewReader("steps:\n  - action: undo\n    bogus: 1\n"))
	assert.Error(t, err)
}

func TestScript_Run(t *testing.T) {
	s := newTestSession(t)
	sc, err := ParseScript(strings.NewReader(sketchScript))
	require.NoError(t, err)

	var seen []string
	r := NewRunner(s, nil)
	r.OnStep = func(i int, st Step) { seen = append(seen, st.Action) }
	require.NoError(t, r.Run(context.Background(), sc))
	assert.Len(t, seen, len(sc.Steps))

	assert.Equal(t, []string{"Background", "Sketch", "Layer 3"}, layerNames(s))
	assert.Equal(t, 1, s.ActiveIndex())
	assert.Equal(t, Brush, s.Tool())
	assert.Equal(t, 4.0, s.BrushSize())

	top := s.Layers()[2]
	assert.Equal(t, ModeMultiply, top.Mode)
	assert.Equal(t, 0.5, top.Opacity)
	assert.False(t, top.Visible)

	img := s.Composite()
	red := color.NRGBA{R: 0xff, A: 0xff}
	assert.Equal(t, red, img.NRGBAAt(8, 10))
	assert.Equal(t, red, img.NRGBAAt(28, 10))
	// erased by the single point stroke
	assert.Equal(t, white, img.NRGBAAt(20, 10))
}

func TestScript_Keys(t *testing.T) {
	s := newTestSession(t)
	r := NewRunner(s, nil)
	ctx := context.Background()

	require.NoError(t, r.Key(ctx, "]"))
	assert.Equal(t, 25.0, s.BrushSize())
	require.NoError(t, r.Key(ctx, "["))
	require.NoError(t, r.Key(ctx, "["))
	assert.Equal(t, 15.0, s.BrushSize())

	require.NoError(t, r.Key(ctx, "E"))
	assert.Equal(t, Eraser, s.Tool())
	require.NoError(t, r.Key(ctx, "b"))
	assert.Equal(t, Brush, s.Tool())

	s.AddLayer("Sketch")
	require.NoError(t, r.Key(ctx, "Ctrl+Z"))
	assert.Equal(t, 1, s.Len())
	// undo on an empty history is not an error
	require.NoError(t, r.Key(ctx, "ctrl+z"))

	require.NoError(t, r.Key(ctx, "x"))
}

func TestScript_StepErrors(t *testing.T) {
	s := newTestSession(t)
	r := NewRunner(s, nil)

	sc := &Script{Steps: []Step{
		{Action: ActionAddLayer},
		{Action: "rotate"},
		{Action: ActionAddLayer},
	}}
	err := r.Run(context.Background(), sc)
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.Contains(t, err.Error(), "step 2")
	assert.Equal(t, 2, s.Len())

	ctx := context.Background()
	assert.Error(t, r.Step(ctx, Step{Action: ActionPointerDown, At: []float64{1}}))
	assert.ErrorIs(t, r.Step(ctx, Step{Action: ActionFilter, Filter: "sepia"}), ErrUnknownFilter)
	assert.ErrorIs(t, r.Step(ctx, Step{Action: ActionSelectLayer, Index: 9}), ErrLayerIndex)
	assert.ErrorIs(t, r.Step(ctx, Step{Action: ActionTool, Tool: "lasso"}), ErrUnknownTool)
	assert.Error(t, r.Step(ctx, Step{Action: ActionBrushOpacity}))
	assert.Error(t, r.Step(ctx, Step{Action: ActionImport, Source: "missing.png"}))
}

func TestScript_RunStopsOnCancel(t *testing.T) {
	s := newTestSession(t)
	r := NewRunner(s, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Run(ctx, &Script{Steps: []Step{{Action: ActionAddLayer}}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, s.Len())
}

func TestScript_ImportFromFile(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pic.png"), encodePNG(t, img), 0o644))
	scriptPath := filepath.Join(dir, "edit.yaml")
	require.NoError(t, os.WriteFile(scriptPath, []byte(`
steps:
  - action: import
    source: pic.png
  - action: filter
    filter: invert
`), 0o644))

	sc, err := LoadScript(scriptPath)
	require.NoError(t, err)

	s := newTestSession(t)
	r := NewRunner(s, nil)
	r.BaseDir = dir
	require.NoError(t, r.Run(context.Background(), sc))
	assert.Equal(t, []string{"Background", "Imported Image"}, layerNames(s))
}

func TestScript_ImportWithoutSource(t *testing.T) {
	s := newTestSession(t)
	r := NewRunner(s, nil)
	r.BaseDir = t.TempDir()

	require.NoError(t, r.Step(context.Background(), Step{Action: ActionImport}))
	assert.Equal(t, 1, s.Len())
	assert.Zero(t, s.HistoryLen())
}

func TestScript_ImportFromURL(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	data := encodePNG(t, img)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer ts.Close()

	s := newTestSession(t)
	r := NewRunner(s, nil)
	require.NoError(t, r.Step(context.Background(), Step{Action: ActionImport, Source: ts.URL + "/pic.png"}))
	assert.Equal(t, 2, s.Len())

	// a script can be exported right after it ran
	var buf bytes.Buffer
	require.NoError(t, s.Export(&buf, FormatPNG))
	assert.NotZero(t, buf.Len())
}
