package photolite

import (
	"fmt"
	"image/color"

	"github.com/photolite/photolite/utils"
)

// SetTool selects the brush or the eraser for pointer strokes.
func (s *Session) SetTool(t Tool) error {
	if _, err := ParseTool(string(t)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tool = t
	s.logger.Debug("tool selected", "tool", t)
	return nil
}

// Tool returns the selected tool.
func (s *Session) Tool() Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tool
}

// SetBrushSize sets the stroke diameter, clamped to [MinBrushSize, MaxBrushSize].
func (s *Session) SetBrushSize(size float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brushSize = utils.Clamp(size, MinBrushSize, MaxBrushSize)
}

// AdjustBrushSize grows the brush by delta, or shrinks it when delta is
// negative. Growing only happens below MaxBrushSize and shrinking only
// above MinBrushSize; the result always stays in range.
func (s *Session) AdjustBrushSize(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case delta > 0 && s.brushSize < MaxBrushSize:
		s.brushSize = utils.Min(s.brushSize+delta, MaxBrushSize)
	case delta < 0 && s.brushSize > MinBrushSize:
		s.brushSize = utils.Max(s.brushSize+delta, MinBrushSize)
	}
	return s.brushSize
}

// BrushSize returns the stroke diameter.
func (s *Session) BrushSize() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brushSize
}

// SetColor sets the brush color from a hex string such as "#ff8800".
func (s *Session) SetColor(hex string) error {
	c, err := utils.HexToRGBA(hex)
	if err != nil {
		return err
	}
	s.SetBrushColor(c)
	return nil
}

// SetBrushColor sets the brush color.
func (s *Session) SetBrushColor(c color.NRGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brushColor = c
}

// BrushColor returns the brush color.
func (s *Session) BrushColor() color.NRGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brushColor
}

// SetBrushOpacity sets the brush opacity, clamped to [0, 1].
// The eraser always works at full strength.
func (s *Session) SetBrushOpacity(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brushOpacity = utils.Clamp(v, 0, 1)
}

// Stroking reports whether a pointer stroke is in progress.
func (s *Session) Stroking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stroking
}

// PointerDown starts a stroke on the active layer with the current tool.
// The layer is snapshotted first and a single dot is painted at p.
func (s *Session) PointerDown(p Point) {
	s.mu.Lock()
	s.snapshot()
	s.stroking = true
	s.last = p
	s.paint(p, p)
	s.metrics.operations.WithLabelValues("stroke").Inc()
	st := s.refresh()
	s.mu.Unlock()

	s.notify(st)
}

// PointerMove extends the stroke to p. It does nothing while idle.
func (s *Session) PointerMove(p Point) {
	s.mu.Lock()
	if !s.stroking {
		s.mu.Unlock()
		return
	}
	s.paint(s.last, p)
	s.last = p
	st := s.refresh()
	s.mu.Unlock()

	s.notify(st)
}

// PointerUp ends the stroke.
func (s *Session) PointerUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stroking = false
}

// PointerLeave ends the stroke when the pointer leaves the canvas.
func (s *Session) PointerLeave() {
	s.PointerUp()
}

func (s *Session) paint(a, b Point) {
	paintSegment(s.activeLayer().img, a, b, s.tool, s.brushSize, s.brushColor, s.brushOpacity)
}

// Draw paints a whole stroke on the active layer as one undo step. The
// stroke is composited once, so its joints get the same opacity as the rest.
// A stroke with a single point paints a dot. The size is clamped to the
// brush limits and an empty tool means the brush.
func (s *Session) Draw(st Stroke) error {
	if len(st.Points) == 0 {
		return ErrEmptyStroke
	}
	tool := st.Tool
	if tool == "" {
		tool = Brush
	}
	if _, err := ParseTool(string(tool)); err != nil {
		return fmt.Errorf("could not draw the stroke: %w", err)
	}
	size := utils.Clamp(st.Size, MinBrushSize, MaxBrushSize)

	s.mu.Lock()
	s.snapshot()
	paintStroke(s.activeLayer().img, st.Points, tool, size, st.Color, st.Opacity)
	s.metrics.operations.WithLabelValues("stroke").Inc()
	s.logger.Debug("stroke drawn", "tool", tool, "points", len(st.Points), "size", size)
	state := s.refresh()
	s.mu.Unlock()

	s.notify(state)
	return nil
}
