package utils

import (
	"fmt"
	"time"
)

// MessageType selects the color of a CLI message.
type MessageType int

// The message types used across the CLI application.
const (
	DefaultMessage MessageType = iota
	SuccessMessage
	ErrorMessage
	StatusMessage
)

// ANSI escape sequences of the message colors.
const (
	DefaultColor = "\x1b[0m"
	StatusColor  = "\x1b[36m"
	SuccessColor = "\x1b[32m"
	ErrorColor   = "\x1b[31m"
)

var messageColors = map[MessageType]string{
	DefaultMessage: DefaultColor,
	StatusMessage:  StatusColor,
	SuccessMessage: SuccessColor,
	ErrorMessage:   ErrorColor,
}

// NoColor turns DecorateText into a no-op, e.g. when stderr is redirected.
var NoColor bool

// DecorateText wraps s in the color of its message type.
// Unknown message types are returned unchanged.
func DecorateText(s string, msgType MessageType) string {
	c, ok := messageColors[msgType]
	if !ok || NoColor {
		return s
	}
	return c + s + DefaultColor
}

// FormatTime prints a duration as seconds, adding the minutes and hours
// once they are reached: 1.50s, 2m 5.00s, 1h 1m 1.00s.
func FormatTime(d time.Duration) string {
	d = d.Round(10 * time.Millisecond)
	h := int64(d / time.Hour)
	m := int64(d % time.Hour / time.Minute)
	sec := (d % time.Minute).Seconds()

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %.2fs", h, m, sec)
	case m > 0:
		return fmt.Sprintf("%dm %.2fs", m, sec)
	}
	return fmt.Sprintf("%.2fs", sec)
}
