package preview

import (
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"
)

// FitMode selects how a source frame is composited onto the thumbnail
// canvas.
type FitMode string

const (
	// FitContain letterboxes: scale to fit preserving aspect, center with
	// padding.
	FitContain FitMode = "contain"
	// FitCover crops: scale to fill preserving aspect, center-cropping
	// overflow.
	FitCover FitMode = "cover"
)

const (
	// baseDimension is the displayed thumbnail's base size in CSS pixels.
	baseDimension = 160
	// superSample renders at a multiple of displayed size for sharpness on
	// high-density displays.
	superSample = 2
)

// thumbSize computes the rendered bitmap dimensions for a display aspect
// ratio. The base dimension applies to the width, which is the short side
// for portrait-ish ratios. Both dimensions round to even numbers, since
// downstream video pipelines reject odd dimensions.
func thumbSize(aspectW, aspectH int) (int, int) {
	if aspectW <= 0 || aspectH <= 0 {
		aspectW, aspectH = 16, 9
	}
	w := float64(baseDimension * superSample)
	h := w * float64(aspectH) / float64(aspectW)
	return roundEven(w), roundEven(h)
}

func roundEven(v float64) int {
	n := int(math.Round(v))
	if n%2 != 0 {
		n++
	}
	if n < 2 {
		n = 2
	}
	return n
}

// compose scales src onto a w×h canvas using the given fit mode. The canvas
// is cleared to black first; contain pads, cover clips at the canvas bounds.
func compose(src image.Image, w, h int, mode FitMode) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, xdraw.Src)

	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return dst
	}

	scaleX := float64(w) / float64(sb.Dx())
	scaleY := float64(h) / float64(sb.Dy())

	var scale float64
	if mode == FitCover {
		scale = math.Max(scaleX, scaleY)
	} else {
		scale = math.Min(scaleX, scaleY)
	}

	dw := int(math.Round(float64(sb.Dx()) * scale))
	dh := int(math.Round(float64(sb.Dy()) * scale))
	x0 := (w - dw) / 2
	y0 := (h - dh) / 2

	target := image.Rect(x0, y0, x0+dw, y0+dh)
	xdraw.ApproxBiLinear.Scale(dst, target, src, sb, xdraw.Src, nil)
	return dst
}
