package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// iconBytes is the tray icon, generated at startup: a filmstrip-style square
// with sprocket holes. Platforms that need .ico accept PNG payloads through
// systray on the targets we ship.
var iconBytes = buildIcon()

func buildIcon() []byte {
	const size = 16
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	bg := color.RGBA{R: 30, G: 30, B: 34, A: 255}
	hole := color.RGBA{R: 220, G: 220, B: 226, A: 255}

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, bg)
		}
	}
	for _, y := range []int{1, 13} {
		for x := 2; x < size-2; x += 4 {
			img.SetRGBA(x, y, hole)
			img.SetRGBA(x+1, y, hole)
			img.SetRGBA(x, y+1, hole)
			img.SetRGBA(x+1, y+1, hole)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
