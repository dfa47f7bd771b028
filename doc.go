/*
Package photolite is the core of a raster image editor. It keeps a stack of
paintable RGBA layers, composites them into the visible canvas, paints brush
and eraser strokes, applies pixel filters and keeps a bounded undo history.

Input handling and the on-screen widgets are left to the caller: pointer
events, key commands and toolbar actions map one to one to Session methods,
and a Listener is notified with the new State after every visible change.

	package main

	import (
		"context"
		"image/color"
		"log"
		"os"

		"github.com/photolite/photolite"
	)

	func main() {
		s, err := photolite.NewSession(photolite.DefaultConfig())
		if err != nil {
			log.Fatal(err)
		}
		s.AddLayer("Sketch")
		s.Draw(photolite.Stroke{
			Points:  []photolite.Point{{X: 10, Y: 10}, {X: 200, Y: 120}},
			Tool:    photolite.Brush,
			Size:    12,
			Color:   color.NRGBA{A: 0xff},
			Opacity: 1,
		})
		if _, err := s.Undo(context.Background()); err != nil {
			log.Fatal(err)
		}
		if err := s.Export(os.Stdout, photolite.FormatPNG); err != nil {
			log.Fatal(err)
		}
	}
*/
package photolite
