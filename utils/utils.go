package utils

import (
	"errors"
	"fmt"
	"image/color"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// ErrInvalidColor is returned for color strings which are not of the
// #rgb, #rrggbb or #rrggbbaa form.
var ErrInvalidColor = errors.New("invalid hex color")

// Contains returns true if the value is present in the collection.
func Contains[T comparable](collection []T, value T) bool {
	for _, v := range collection {
		if v == value {
			return true
		}
	}
	return false
}

// HexToRGBA converts a hex color string to color.NRGBA.
// The leading # is optional and the short #rgb form is accepted.
func HexToRGBA(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}

// DetectContentType detects the file type by reading MIME type information of the file content.
func DetectContentType(fname string) (string, error) {
	file, err := os.Open(fname)
	if err != nil {
		return "", err
	}
	defer file.Close()

	// Only the first 512 bytes are used to sniff the content type.
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil {
		return "", err
	}

	// Always returns a valid content-type and "application/octet-stream" if no others seemed to match.
	return http.DetectContentType(buffer[:n]), nil
}

// IsImage reports whether the file content looks like an image.
func IsImage(fname string) (bool, error) {
	ctype, err := DetectContentType(fname)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(ctype, "image/"), nil
}
