package card

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// luma returns the average-channel brightness of a pixel, 0..255.
func luma(c color.Color) uint8 {
	r, g, b, _ := c.RGBA()
	return uint8((r + g + b) / 3 >> 8)
}

// saturation returns the HSV saturation of a pixel scaled to 0..255.
func saturation(c color.Color) uint8 {
	r, g, b, _ := c.RGBA()
	max := r
	if g > max {
		max = g
	}
	if b > max {
		max = b
	}
	min := r
	if g < min {
		min = g
	}
	if b < min {
		min = b
	}
	if max == 0 {
		return 0
	}
	return uint8((max - min) * 255 / max)
}

// isCardGreen reports whether a pixel falls in the green band used by the
// card background (green channel dominant with real saturation, matching the
// HSV range the legacy detector used).
func isCardGreen(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	r8, g8, b8 := uint32(r>>8), uint32(g>>8), uint32(b>>8)
	if g8 < 40 {
		return false
	}
	if g8 <= r8 || g8 <= b8 {
		return false
	}
	// demand a clear margin so gray/white pixels don't pass
	return g8-r8 >= 20 && g8-b8 >= 10 && saturation(c) >= 40
}

// binarize performs a global threshold on a grayscale image.
func binarize(img image.Image, threshold uint8) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var v uint8 = 255
			if luma(img.At(x, y)) <= threshold {
				v = 0
			}
			out.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return out
}

// otsuThreshold computes the global threshold that minimizes intra-class
// brightness variance; used where a fixed threshold is too brittle.
func otsuThreshold(img image.Image) uint8 {
	var hist [256]int
	b := img.Bounds()
	total := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[luma(img.At(x, y))]++
			total++
		}
	}
	if total == 0 {
		return 127
	}
	sum := 0.0
	for i, n := range hist {
		sum += float64(i) * float64(n)
	}
	sumB, wB := 0.0, 0
	best, bestVar := 127, 0.0
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		v := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if v > bestVar {
			bestVar = v
			best = t
		}
	}
	return uint8(best)
}

// adaptiveThreshold performs a mean adaptive threshold over a sliding window
// using an integral image, which tolerates uneven lighting.
func adaptiveThreshold(img image.Image, window int, bias int) *image.NRGBA {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	out := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	half := window / 2
	ints := make([]int, w*h)
	for y := 0; y < h; y++ {
		rowSum := 0
		for x := 0; x < w; x++ {
			rowSum += int(luma(img.At(img.Bounds().Min.X+x, img.Bounds().Min.Y+y)))
			idx := y*w + x
			if y == 0 {
				ints[idx] = rowSum
			} else {
				ints[idx] = ints[(y-1)*w+x] + rowSum
			}
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, y0 := x-half, y-half
			x1, y1 := x+half, y+half
			if x0 < 0 {
				x0 = 0
			}
			if y0 < 0 {
				y0 = 0
			}
			if x1 >= w {
				x1 = w - 1
			}
			if y1 >= h {
				y1 = h - 1
			}
			a := ints[y0*w+x0]
			b := ints[y0*w+x1]
			c := ints[y1*w+x0]
			d := ints[y1*w+x1]
			mean := (d - b - c + a) / ((x1 - x0 + 1) * (y1 - y0 + 1))
			pix := int(luma(img.At(img.Bounds().Min.X+x, img.Bounds().Min.Y+y)))
			th := mean - bias
			if th < 0 {
				th = 0
			}
			if pix < th {
				out.Set(x, y, color.NRGBA{0, 0, 0, 255})
			} else {
				out.Set(x, y, color.NRGBA{255, 255, 255, 255})
			}
		}
	}
	return out
}
