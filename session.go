package photolite

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/photolite/photolite/utils"
)

// State is what a Listener receives after every visible change.
type State struct {
	// Layers lists the stack bottom to top.
	Layers []LayerInfo
	// Active is the index of the layer receiving strokes and filters.
	Active int
	// Composite is a private copy of the flattened canvas.
	Composite *image.NRGBA
	// HistoryLen is the number of available undo steps.
	HistoryLen int
}

// Listener reflects the session state, typically in a user interface.
// It must not call back into the session.
type Listener interface {
	Update(State)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(State)

// Update calls f(st).
func (f ListenerFunc) Update(st State) { f(st) }

// Option configures a Session.
type Option func(*Session)

// WithListener registers the listener notified after every visible change.
func WithListener(l Listener) Option {
	return func(s *Session) { s.listener = l }
}

// WithLogger sets the logger. Sessions log to slog.Default otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithCodec overrides the history codec selected by the configuration.
func WithCodec(c Codec) Option {
	return func(s *Session) { s.codec = c }
}

// Session owns a layer stack, its undo history and the tool state.
//
// Layers are kept in an arena keyed by their id; order lists the ids bottom
// to top. All methods are safe for concurrent use, although editing is
// expected to be driven from a single event loop: the lock mostly orders
// the completion of asynchronous imports against user operations.
type Session struct {
	mu sync.Mutex

	cfg           Config
	width, height int
	arena         map[LayerID]*Layer
	order         []LayerID
	active        int

	codec      Codec
	history    *History
	compositor *Compositor
	composite  *image.NRGBA

	listener   Listener
	logger     *slog.Logger
	registerer prometheus.Registerer
	metrics    *sessionMetrics

	// gen changes whenever layers are removed or replaced wholesale.
	// Asynchronous work started under an older generation is discarded.
	gen     uint64
	pending sync.WaitGroup

	tool         Tool
	brushSize    float64
	brushColor   color.NRGBA
	brushOpacity float64

	stroking bool
	last     Point
}

// NewSession creates a session with a single opaque background layer.
func NewSession(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// Validate guarantees the colors parse.
	bg, _ := utils.HexToRGBA(cfg.Canvas.Background)
	brushColor, _ := utils.HexToRGBA(cfg.Brush.Color)

	s := &Session{
		cfg:          cfg,
		width:        cfg.Canvas.Width,
		height:       cfg.Canvas.Height,
		arena:        make(map[LayerID]*Layer),
		compositor:   NewCompositor(cfg.Canvas.Width, cfg.Canvas.Height),
		tool:         Tool(cfg.Brush.Tool),
		brushSize:    cfg.Brush.Size,
		brushColor:   brushColor,
		brushOpacity: cfg.Brush.Opacity,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.metrics = newSessionMetrics(s.registerer)
	if s.codec == nil {
		codec, err := NewCodec(cfg.History.Codec)
		if err != nil {
			return nil, err
		}
		s.codec = codec
	}
	s.history = NewHistory(cfg.History.Depth, s.codec)

	background := NewLayer(s.width, s.height, "Background")
	background.Fill(bg)
	s.insertLayer(background, 0)

	st := s.refresh()
	s.notify(st)
	return s, nil
}

// Size returns the canvas dimensions shared by every layer.
func (s *Session) Size() (width, height int) {
	return s.width, s.height
}

// Len returns the number of layers.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// ActiveIndex returns the index of the active layer.
func (s *Session) ActiveIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Layers describes the stack bottom to top.
func (s *Session) Layers() []LayerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.infos()
}

// Layer returns the layer at index. The layer stays owned by the session:
// pixel edits made through it are not recorded in the history and only
// show up in the composite after the next operation re-renders it.
func (s *Session) Layer(index int) (*Layer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIndex(index); err != nil {
		return nil, err
	}
	return s.arena[s.order[index]], nil
}

// LayerByID looks a layer up by its stable id.
func (s *Session) LayerByID(id LayerID) (*Layer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.arena[id]
	return l, ok
}

// IndexOf returns the current stack position of a layer, or -1.
func (s *Session) IndexOf(id LayerID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Index(s.order, id)
}

// Composite returns a copy of the flattened canvas.
func (s *Session) Composite() *image.NRGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return imaging.Clone(s.composite)
}

// HistoryLen returns the number of available undo steps.
func (s *Session) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Len()
}

// AddLayer inserts a transparent layer right above the active one and makes
// it active. An empty name defaults to "Layer N".
func (s *Session) AddLayer(name string) LayerID {
	s.mu.Lock()
	id := s.addLayer(name)
	st := s.refresh()
	s.mu.Unlock()

	s.notify(st)
	return id
}

func (s *Session) addLayer(name string) LayerID {
	if name == "" {
		name = fmt.Sprintf("Layer %d", len(s.order)+1)
	}
	s.snapshot()

	l := NewLayer(s.width, s.height, name)
	at := s.active + 1
	s.insertLayer(l, at)
	s.active = at

	s.metrics.operations.WithLabelValues("add_layer").Inc()
	s.logger.Debug("layer added", "name", name, "index", at, "layers", len(s.order))
	return l.ID
}

// DeleteLayer removes the active layer and selects the one below it.
// The last remaining layer is never deleted; false is returned instead.
func (s *Session) DeleteLayer() bool {
	s.mu.Lock()
	if len(s.order) <= 1 {
		s.mu.Unlock()
		s.logger.Debug("delete ignored, single layer left")
		return false
	}
	s.snapshot()
	s.removeActive()
	s.metrics.operations.WithLabelValues("delete_layer").Inc()
	st := s.refresh()
	s.mu.Unlock()

	s.notify(st)
	return true
}

// removeActive drops the active layer without taking a snapshot.
func (s *Session) removeActive() {
	id := s.order[s.active]
	name := s.arena[id].Name
	delete(s.arena, id)
	s.order = slices.Delete(s.order, s.active, s.active+1)
	s.active = max(0, s.active-1)
	s.gen++

	s.logger.Debug("layer removed", "name", name, "active", s.active, "layers", len(s.order))
}

// ToggleVisibility shows or hides the layer at index.
func (s *Session) ToggleVisibility(index int) error {
	s.mu.Lock()
	if err := s.checkIndex(index); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.cfg.History.TrackAttributes {
		s.snapshot()
	}
	l := s.arena[s.order[index]]
	l.Visible = !l.Visible
	s.metrics.operations.WithLabelValues("toggle_visibility").Inc()
	st := s.refresh()
	s.mu.Unlock()

	s.notify(st)
	return nil
}

// MergeDown composites the active layer onto the layer below it, using the
// active layer's opacity and mode, and removes it. The layer below keeps
// its own attributes and becomes active. At the bottom of the stack
// nothing happens and false is returned.
func (s *Session) MergeDown() bool {
	s.mu.Lock()
	if s.active == 0 {
		s.mu.Unlock()
		s.logger.Debug("merge ignored, no layer below")
		return false
	}
	s.snapshot()

	top := s.arena[s.order[s.active]]
	bottom := s.arena[s.order[s.active-1]]
	s.compositor.Merge(bottom, top)
	s.removeActive()
	s.metrics.operations.WithLabelValues("merge_down").Inc()

	st := s.refresh()
	s.mu.Unlock()

	s.notify(st)
	return true
}

// SetActiveLayer selects the layer receiving strokes and filters.
func (s *Session) SetActiveLayer(index int) error {
	s.mu.Lock()
	if err := s.checkIndex(index); err != nil {
		s.mu.Unlock()
		return err
	}
	s.active = index
	st := s.state()
	s.mu.Unlock()

	s.notify(st)
	return nil
}

// SetBlendMode changes the composite operation of the active layer.
func (s *Session) SetBlendMode(mode Mode) error {
	if err := mode.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.cfg.History.TrackAttributes {
		s.snapshot()
	}
	s.activeLayer().Mode = mode
	s.metrics.operations.WithLabelValues("blend_mode").Inc()
	st := s.refresh()
	s.mu.Unlock()

	s.notify(st)
	return nil
}

// SetLayerOpacity changes the opacity of the active layer, clamped to [0, 1].
func (s *Session) SetLayerOpacity(v float64) {
	s.mu.Lock()
	if s.cfg.History.TrackAttributes {
		s.snapshot()
	}
	s.activeLayer().SetOpacity(v)
	s.metrics.operations.WithLabelValues("layer_opacity").Inc()
	st := s.refresh()
	s.mu.Unlock()

	s.notify(st)
}

// ClearLayer makes the active layer fully transparent.
func (s *Session) ClearLayer() {
	s.mu.Lock()
	s.snapshot()
	s.activeLayer().Clear()
	s.metrics.operations.WithLabelValues("clear_layer").Inc()
	st := s.refresh()
	s.mu.Unlock()

	s.notify(st)
}

// ApplyFilter replaces the active layer with the filtered version of itself.
// Only the active layer is filtered, never the composite.
func (s *Session) ApplyFilter(kind FilterKind) error {
	f, err := NewFilter(kind, s.cfg.Filters.BlurRadius)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.snapshot()
	l := s.activeLayer()
	l.replace(f.Apply(l.img))
	s.metrics.operations.WithLabelValues("filter").Inc()
	s.logger.Debug("filter applied", "filter", kind, "layer", l.Name)
	st := s.refresh()
	s.mu.Unlock()

	s.notify(st)
	return nil
}

// Undo restores the most recent snapshot. It returns false when the
// history is empty. When a snapshot cannot be decoded the session is left
// as it was, the snapshot stays in the history and the error is returned.
func (s *Session) Undo(ctx context.Context) (bool, error) {
	s.mu.Lock()
	entry, ok := s.history.Pop()
	if !ok {
		s.metrics.undos.WithLabelValues("empty").Inc()
		s.mu.Unlock()
		s.logger.Debug("nothing to undo")
		return false, nil
	}

	layers, err := s.history.Restore(ctx, entry, s.width, s.height)
	if err != nil {
		s.history.push(entry)
		s.metrics.undos.WithLabelValues("error").Inc()
		s.mu.Unlock()
		s.logger.Error("undo failed", "error", err)
		return false, fmt.Errorf("could not restore the snapshot: %w", err)
	}

	clear(s.arena)
	s.order = s.order[:0]
	for i, l := range layers {
		s.insertLayer(l, i)
	}
	s.active = utils.Clamp(entry.active, 0, len(s.order)-1)
	s.stroking = false
	s.gen++
	s.metrics.undos.WithLabelValues("ok").Inc()

	s.logger.Debug("undo", "layers", len(s.order), "active", s.active, "history", s.history.Len())
	st := s.refresh()
	s.mu.Unlock()

	s.notify(st)
	return true, nil
}

// ImportImage decodes a picture in the background and adds it as a new
// layer above the active one, scaled to fit the canvas and centered.
// The returned channel yields the outcome once and is then closed.
// If layers were removed or an undo happened while decoding, the picture
// is dropped and ErrStaleDecode is reported. A nil reader, when no file
// was picked, changes nothing and reports no error.
func (s *Session) ImportImage(r io.Reader) <-chan error {
	done := make(chan error, 1)
	if r == nil {
		s.logger.Debug("import ignored, no source")
		done <- nil
		close(done)
		return done
	}

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer close(done)

		img, err := DecodeImage(r)
		if err != nil {
			s.logger.Warn("import failed", "error", err)
			done <- err
			return
		}
		fitted, at := fitImage(img, s.width, s.height)

		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			s.logger.Warn("import discarded", "started", gen, "current", s.gen)
			done <- ErrStaleDecode
			return
		}
		s.addLayer("Imported Image")
		l := s.activeLayer()
		draw.Draw(l.img, fitted.Bounds().Add(at), fitted, image.Point{}, draw.Over)
		s.metrics.operations.WithLabelValues("import").Inc()
		st := s.refresh()
		s.mu.Unlock()

		s.notify(st)
		done <- nil
	}()
	return done
}

// Wait blocks until every pending import has completed.
func (s *Session) Wait() {
	s.pending.Wait()
}

// Export encodes the flattened canvas.
func (s *Session) Export(w io.Writer, format Format) error {
	s.mu.Lock()
	img := imaging.Clone(s.composite)
	s.mu.Unlock()

	if err := EncodeImage(w, img, format); err != nil {
		return fmt.Errorf("could not export the image: %w", err)
	}
	return nil
}

// snapshot records the current stack. A failure only costs the undo step,
// so it is logged and the operation goes on.
func (s *Session) snapshot() {
	if err := s.history.Snapshot(s.layers(), s.active); err != nil {
		s.logger.Warn("snapshot failed", "error", err)
		return
	}
	if e, ok := s.history.Peek(); ok {
		s.metrics.snapshotBytes.Observe(float64(e.Size()))
	}
}

func (s *Session) insertLayer(l *Layer, at int) {
	s.arena[l.ID] = l
	s.order = slices.Insert(s.order, at, l.ID)
}

// layers returns the live layers bottom to top.
func (s *Session) layers() []*Layer {
	layers := make([]*Layer, len(s.order))
	for i, id := range s.order {
		layers[i] = s.arena[id]
	}
	return layers
}

func (s *Session) activeLayer() *Layer {
	return s.arena[s.order[s.active]]
}

func (s *Session) checkIndex(index int) error {
	if index < 0 || index >= len(s.order) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrLayerIndex, index, len(s.order))
	}
	return nil
}

func (s *Session) infos() []LayerInfo {
	infos := make([]LayerInfo, len(s.order))
	for i, id := range s.order {
		infos[i] = s.arena[id].info(i == s.active)
	}
	return infos
}

// refresh re-renders the composite and captures the state to notify.
func (s *Session) refresh() *State {
	start := time.Now()
	s.composite = s.compositor.Render(s.layers())
	s.metrics.renderSeconds.Observe(time.Since(start).Seconds())
	s.metrics.layers.Set(float64(len(s.order)))
	s.metrics.historyDepth.Set(float64(s.history.Len()))
	return s.state()
}

// state captures the state for the listener, nil if there is none.
func (s *Session) state() *State {
	if s.listener == nil {
		return nil
	}
	return &State{
		Layers:     s.infos(),
		Active:     s.active,
		Composite:  imaging.Clone(s.composite),
		HistoryLen: s.history.Len(),
	}
}

// notify must be called without holding the lock.
func (s *Session) notify(st *State) {
	if st == nil || s.listener == nil {
		return
	}
	s.listener.Update(*st)
}
