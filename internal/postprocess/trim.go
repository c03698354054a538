package postprocess

import (
	"image"
	"image/color"
	"math"
)

// DefaultTolerance is the first-pass colour distance, as a fraction of full
// scale, under which a margin pixel counts as border.
const DefaultTolerance = 0.05

// borderReference is the synthetic near-zero colour the first pass trims against.
var borderReference = color.RGBA{R: 1, G: 1, B: 1, A: 1}

// Trim removes uniform margins in two passes. The first pass strips margins
// within tolerance of a near-transparent reference colour; the second strips,
// exactly, margins matching the top-left colour of what remains. If a pass
// would leave nothing, its input is kept. The result has a zero origin.
func Trim(img *image.RGBA, tolerance float64) *image.RGBA {
	if tolerance < 0 {
		tolerance = 0
	}
	bounds := img.Bounds()
	first := contentBounds(img, bounds, borderReference, tolerance)
	if first.Empty() {
		first = bounds
	}
	corner := img.RGBAAt(first.Min.X, first.Min.Y)
	second := contentBounds(img, first, corner, 0)
	if second.Empty() {
		second = first
	}
	if second == bounds && bounds.Min == (image.Point{}) {
		return img
	}
	return cropCopy(img, second)
}

// contentBounds returns the smallest rectangle inside r holding a pixel that
// differs from ref by more than tolerance. Empty when every pixel matches.
func contentBounds(img *image.RGBA, r image.Rectangle, ref color.RGBA, tolerance float64) image.Rectangle {
	matches := func(x, y int) bool {
		return colorDistance(img.RGBAAt(x, y), ref) <= tolerance
	}
	rowMatches := func(y int) bool {
		for x := r.Min.X; x < r.Max.X; x++ {
			if !matches(x, y) {
				return false
			}
		}
		return true
	}

	top := r.Min.Y
	for top < r.Max.Y && rowMatches(top) {
		top++
	}
	if top == r.Max.Y {
		return image.Rectangle{}
	}
	bottom := r.Max.Y
	for bottom > top && rowMatches(bottom-1) {
		bottom--
	}

	colMatches := func(x int) bool {
		for y := top; y < bottom; y++ {
			if !matches(x, y) {
				return false
			}
		}
		return true
	}
	left := r.Min.X
	for left < r.Max.X && colMatches(left) {
		left++
	}
	right := r.Max.X
	for right > left && colMatches(right-1) {
		right--
	}
	return image.Rect(left, top, right, bottom)
}

// colorDistance is the RMS channel difference scaled to [0, 1].
func colorDistance(a, b color.RGBA) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	da := float64(a.A) - float64(b.A)
	return math.Sqrt((dr*dr+dg*dg+db*db+da*da)/4) / 255
}

func cropCopy(img *image.RGBA, r image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		srcStart := img.PixOffset(r.Min.X, r.Min.Y+y)
		copy(out.Pix[y*out.Stride:y*out.Stride+r.Dx()*4], img.Pix[srcStart:srcStart+r.Dx()*4])
	}
	return out
}
