package photolite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/photolite/photolite/utils"
)

// ErrUnknownAction is returned for script steps the runner does not know.
var ErrUnknownAction = errors.New("unknown script action")

// Script is a recorded editing session: the pointer events, key commands
// and toolbar actions a user interface would forward to a Session.
type Script struct {
	Steps []Step `yaml:"steps"`
}

// Step is a single input event. Action selects what the other fields mean.
//
//	- {action: add_layer, name: Sketch}
//	- {action: pointer_down, at: [10, 10]}
//	- {action: key, key: ctrl+z}
//	- {action: stroke, points: [[0, 0], [40, 40]], tool: eraser, size: 8}
type Step struct {
	Action  string       `yaml:"action"`
	Key     string       `yaml:"key,omitempty"`
	At      []float64    `yaml:"at,omitempty"`
	Points  [][2]float64 `yaml:"points,omitempty"`
	Name    string       `yaml:"name,omitempty"`
	Index   int          `yaml:"index,omitempty"`
	Filter  string       `yaml:"filter,omitempty"`
	Tool    string       `yaml:"tool,omitempty"`
	Mode    string       `yaml:"mode,omitempty"`
	Color   string       `yaml:"color,omitempty"`
	Size    float64      `yaml:"size,omitempty"`
	Opacity *float64     `yaml:"opacity,omitempty"`
	// Source is a file path, relative to the script, or an http(s) URL.
	Source string `yaml:"source,omitempty"`
}

// Script actions.
const (
	ActionAddLayer         = "add_layer"
	ActionDeleteLayer      = "delete_layer"
	ActionMergeDown        = "merge_down"
	ActionToggleVisibility = "toggle_visibility"
	ActionSelectLayer      = "select_layer"
	ActionPointerDown      = "pointer_down"
	ActionPointerMove      = "pointer_move"
	ActionPointerUp        = "pointer_up"
	ActionPointerLeave     = "pointer_leave"
	ActionStroke           = "stroke"
	ActionFilter           = "filter"
	ActionUndo             = "undo"
	ActionKey              = "key"
	ActionTool             = "tool"
	ActionBrushSize        = "brush_size"
	ActionColor            = "color"
	ActionBrushOpacity     = "brush_opacity"
	ActionLayerOpacity     = "layer_opacity"
	ActionBlendMode        = "blend_mode"
	ActionClearLayer       = "clear_layer"
	ActionImport           = "import"
)

// LoadScript reads a YAML script file.
func LoadScript(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open the script: %w", err)
	}
	defer f.Close()

	return ParseScript(f)
}

// ParseScript decodes a YAML script.
func ParseScript(r io.Reader) (*Script, error) {
	var sc Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("could not parse the script: %w", err)
	}
	return &sc, nil
}

// Runner replays scripts against a session.
type Runner struct {
	session *Session
	// BaseDir resolves relative import paths.
	BaseDir string
	// OnStep is called before every step, if set.
	OnStep func(i int, st Step)
	logger *slog.Logger
}

// NewRunner returns a runner driving s.
func NewRunner(s *Session, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{session: s, logger: logger}
}

// Run executes the steps in order and stops at the first failing one.
func (r *Runner) Run(ctx context.Context, sc *Script) error {
	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.OnStep != nil {
			r.OnStep(i, st)
		}
		if err := r.Step(ctx, st); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, st.Action, err)
		}
	}
	return nil
}

// Step executes a single step.
func (r *Runner) Step(ctx context.Context, st Step) error {
	s := r.session

	switch st.Action {
	case ActionAddLayer:
		s.AddLayer(st.Name)
	case ActionDeleteLayer:
		s.DeleteLayer()
	case ActionMergeDown:
		s.MergeDown()
	case ActionToggleVisibility:
		return s.ToggleVisibility(st.Index)
	case ActionSelectLayer:
		return s.SetActiveLayer(st.Index)
	case ActionPointerDown, ActionPointerMove:
		p, err := st.point()
		if err != nil {
			return err
		}
		if st.Action == ActionPointerDown {
			s.PointerDown(p)
		} else {
			s.PointerMove(p)
		}
	case ActionPointerUp:
		s.PointerUp()
	case ActionPointerLeave:
		s.PointerLeave()
	case ActionStroke:
		return r.stroke(st)
	case ActionFilter:
		kind, err := ParseFilter(st.Filter)
		if err != nil {
			return err
		}
		return s.ApplyFilter(kind)
	case ActionUndo:
		_, err := s.Undo(ctx)
		return err
	case ActionKey:
		return r.Key(ctx, st.Key)
	case ActionTool:
		return s.SetTool(Tool(st.Tool))
	case ActionBrushSize:
		s.SetBrushSize(st.Size)
	case ActionColor:
		return s.SetColor(st.Color)
	case ActionBrushOpacity:
		if st.Opacity == nil {
			return errors.New("missing opacity")
		}
		s.SetBrushOpacity(*st.Opacity)
	case ActionLayerOpacity:
		if st.Opacity == nil {
			return errors.New("missing opacity")
		}
		s.SetLayerOpacity(*st.Opacity)
	case ActionBlendMode:
		return s.SetBlendMode(Mode(st.Mode))
	case ActionClearLayer:
		s.ClearLayer()
	case ActionImport:
		return r.importImage(ctx, st.Source)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, st.Action)
	}
	return nil
}

// Key executes a keyboard shortcut: ctrl+z undoes, b and e select the brush
// and the eraser, [ and ] shrink and grow the brush. Other keys are ignored.
func (r *Runner) Key(ctx context.Context, key string) error {
	s := r.session

	switch strings.ToLower(key) {
	case "ctrl+z", "meta+z", "cmd+z":
		_, err := s.Undo(ctx)
		return err
	case "b":
		return s.SetTool(Brush)
	case "e":
		return s.SetTool(Eraser)
	case "[":
		s.AdjustBrushSize(-BrushSizeStep)
	case "]":
		s.AdjustBrushSize(BrushSizeStep)
	default:
		r.logger.Debug("key ignored", "key", key)
	}
	return nil
}

func (r *Runner) stroke(st Step) error {
	s := r.session

	stroke := Stroke{
		Tool:    Tool(st.Tool),
		Size:    st.Size,
		Color:   s.BrushColor(),
		Opacity: 1,
	}
	if stroke.Tool == "" {
		stroke.Tool = s.Tool()
	}
	if stroke.Size == 0 {
		stroke.Size = s.BrushSize()
	}
	if st.Color != "" {
		c, err := utils.HexToRGBA(st.Color)
		if err != nil {
			return err
		}
		stroke.Color = c
	}
	if st.Opacity != nil {
		stroke.Opacity = *st.Opacity
	}
	for _, p := range st.Points {
		stroke.Points = append(stroke.Points, Point{X: p[0], Y: p[1]})
	}
	return s.Draw(stroke)
}

// importImage adds the picture at source as a new layer and waits for the
// decode to complete. An empty source does nothing.
func (r *Runner) importImage(ctx context.Context, source string) error {
	if source == "" {
		r.logger.Debug("import ignored, no source")
		return nil
	}
	var (
		f   *os.File
		err error
	)
	if utils.IsValidUrl(source) {
		f, err = utils.DownloadImage(ctx, source)
		if err != nil {
			return err
		}
		defer os.Remove(f.Name())
	} else {
		path := source
		if !filepath.IsAbs(path) && r.BaseDir != "" {
			path = filepath.Join(r.BaseDir, path)
		}
		f, err = os.Open(path)
		if err != nil {
			return fmt.Errorf("could not open the image: %w", err)
		}
	}
	defer f.Close()

	// the file stays open until the decode is done
	return <-r.session.ImportImage(f)
}

func (st Step) point() (Point, error) {
	if len(st.At) != 2 {
		return Point{}, fmt.Errorf("%s needs a position [x, y], got %v", st.Action, st.At)
	}
	return Point{X: st.At[0], Y: st.At[1]}, nil
}
