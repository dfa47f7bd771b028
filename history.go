package photolite

import (
	"bytes"
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultHistoryDepth is the number of undo steps kept by default.
const DefaultHistoryDepth = 10

// layerState is the frozen copy of one layer inside a history entry.
type layerState struct {
	id      LayerID
	name    string
	visible bool
	mode    Mode
	opacity float64
	data    []byte
}

// Entry is an immutable snapshot of the layer stack and the active index.
type Entry struct {
	layers []layerState
	active int
}

// Len returns the number of layers captured by the entry.
func (e *Entry) Len() int {
	return len(e.layers)
}

// Active returns the active layer index captured by the entry.
func (e *Entry) Active() int {
	return e.active
}

// Names returns the captured layer names, bottom to top.
func (e *Entry) Names() []string {
	names := make([]string, len(e.layers))
	for i, l := range e.layers {
		names[i] = l.name
	}
	return names
}

// Size returns the encoded size of the entry in bytes.
func (e *Entry) Size() int {
	var n int
	for _, l := range e.layers {
		n += len(l.data)
	}
	return n
}

// History is a bounded stack of snapshots. When full, pushing a new entry
// evicts the oldest one; Pop always returns the newest.
type History struct {
	entries  []*Entry
	capacity int
	codec    Codec
}

// NewHistory creates an empty history. A capacity below one falls back to
// DefaultHistoryDepth and a nil codec to PNG.
func NewHistory(capacity int, codec Codec) *History {
	if capacity < 1 {
		capacity = DefaultHistoryDepth
	}
	if codec == nil {
		codec = NewPNGCodec()
	}
	return &History{
		entries:  make([]*Entry, 0, capacity),
		capacity: capacity,
		codec:    codec,
	}
}

// Snapshot encodes every layer and pushes the resulting entry. The pixels
// are copied before Snapshot returns, so later edits of the live layers
// never leak into the entry.
func (h *History) Snapshot(layers []*Layer, active int) error {
	entry := &Entry{
		layers: make([]layerState, len(layers)),
		active: active,
	}

	var g errgroup.Group
	for i, l := range layers {
		entry.layers[i] = layerState{
			id:      l.ID,
			name:    l.Name,
			visible: l.Visible,
			mode:    l.Mode,
			opacity: l.Opacity,
		}
		g.Go(func() error {
			var buf bytes.Buffer
			if err := h.codec.Encode(&buf, l.img); err != nil {
				return fmt.Errorf("could not encode layer %q: %w", l.Name, err)
			}
			entry.layers[i].data = buf.Bytes()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	h.push(entry)
	return nil
}

func (h *History) push(e *Entry) {
	if len(h.entries) >= h.capacity {
		copy(h.entries, h.entries[1:])
		h.entries[len(h.entries)-1] = nil
		h.entries = h.entries[:len(h.entries)-1]
	}
	h.entries = append(h.entries, e)
}

// Pop removes and returns the newest entry. It returns false when there is
// nothing to undo.
func (h *History) Pop() (*Entry, bool) {
	n := len(h.entries)
	if n == 0 {
		return nil, false
	}
	e := h.entries[n-1]
	h.entries[n-1] = nil
	h.entries = h.entries[:n-1]
	return e, true
}

// Peek returns the newest entry without removing it.
func (h *History) Peek() (*Entry, bool) {
	if len(h.entries) == 0 {
		return nil, false
	}
	return h.entries[len(h.entries)-1], true
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Cap returns the maximum number of stored entries.
func (h *History) Cap() int {
	return h.capacity
}

// Clear drops every entry.
func (h *History) Clear() {
	clear(h.entries)
	h.entries = h.entries[:0]
}

// Restore decodes the entry into freshly built layers of the given size,
// keeping the captured ids and attributes. Either every layer is decoded
// or an error is returned and no layer at all.
func (h *History) Restore(ctx context.Context, e *Entry, width, height int) ([]*Layer, error) {
	layers := make([]*Layer, len(e.layers))

	g, ctx := errgroup.WithContext(ctx)
	for i, st := range e.layers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := h.codec.Decode(bytes.NewReader(st.data))
			if err != nil {
				return fmt.Errorf("could not decode layer %q: %w", st.name, err)
			}
			l := newLayerWithID(st.id, width, height, st.name)
			l.Visible = st.visible
			l.Mode = st.mode
			l.Opacity = st.opacity
			l.replace(toNRGBA(img))
			layers[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return layers, nil
}
