package photolite

import "errors"

var (
	// ErrLayerIndex is returned when a layer index is outside of the stack.
	ErrLayerIndex = errors.New("layer index out of range")
	// ErrUnknownFilter is returned for filter kinds outside of the supported set.
	ErrUnknownFilter = errors.New("unknown filter")
	// ErrUnknownTool is returned for tools other than the brush and the eraser.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrStaleDecode is reported by an asynchronous decode which completed after
	// the layer stack was restructured; its result has been discarded.
	ErrStaleDecode = errors.New("decode result is stale")
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrUnsupportedFormat is returned for unknown export or codec formats.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrEmptyStroke is returned when a stroke has no points.
	ErrEmptyStroke = errors.New("stroke has no points")
)
