package card

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Variant classifies how the screenshot was captured. It only drives
// normalization: once a Normalized image exists, downstream stages never
// branch on it again.
type Variant int

const (
	VariantClean   Variant = iota // native-resolution screenshot
	VariantOverlay                // card inside emulator chrome
	VariantPhoto                  // physical screen photographed at an angle
)

func (v Variant) String() string {
	switch v {
	case VariantClean:
		return "clean"
	case VariantOverlay:
		return "overlay"
	}
	return "photo"
}

// Canonical frame all normalized cards are resampled into (the title's
// native screen resolution).
const (
	canonicalW = 240
	canonicalH = 160
)

// Normalized is an OCR-ready card raster in the canonical frame.
type Normalized struct {
	Img     *image.NRGBA
	Variant Variant
}

// Normalize classifies the input against the variant detectors in priority
// order and produces the canonical raster. It is pure: identical input bytes
// give identical output. When no detector's geometric fit passes its
// acceptance gate it returns ErrUnrecognizedLayout rather than handing a
// poorly rectified image to the recognizer.
func Normalize(img image.Image) (*Normalized, error) {
	if out, ok := detectClean(img); ok {
		return &Normalized{Img: out, Variant: VariantClean}, nil
	}
	if out, ok := detectOverlay(img); ok {
		return &Normalized{Img: out, Variant: VariantOverlay}, nil
	}
	if out, ok := detectPhoto(img); ok {
		return &Normalized{Img: out, Variant: VariantPhoto}, nil
	}
	return nil, ErrUnrecognizedLayout
}

// detectClean accepts the exact canonical resolution or an exact integer
// multiple of it (common emulator window scales).
func detectClean(img image.Image) (*image.NRGBA, bool) {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if w == canonicalW && h == canonicalH {
		return imaging.Clone(img), true
	}
	if w%canonicalW == 0 && h%canonicalH == 0 {
		sx := w / canonicalW
		sy := h / canonicalH
		if sx == sy && sx >= 2 && sx <= 8 {
			return imaging.Resize(img, canonicalW, canonicalH, imaging.Lanczos), true
		}
	}
	return nil, false
}

// detectOverlay locates the card's green background inside a larger frame
// and crops it out.
func detectOverlay(img image.Image) (*image.NRGBA, bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < canonicalW || h < canonicalH {
		return nil, false
	}
	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mask[y*w+x] = isCardGreen(img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	_, box, count := largestComponent(mask, w, h)
	if count < 2000 {
		return nil, false
	}
	bw, bh := box.Dx(), box.Dy()
	if bw < 100 || bh < 60 {
		return nil, false
	}
	ratio := float64(bw) / float64(bh)
	if ratio < 1.2 || ratio > 3.0 {
		return nil, false
	}
	// demand the mask actually fills the box; sparse green scatter is not a card
	if float64(count) < 0.4*float64(bw*bh) {
		return nil, false
	}
	crop := imaging.Crop(img, box.Add(b.Min))
	return imaging.Resize(crop, canonicalW, canonicalH, imaging.Lanczos), true
}

// detectPhoto handles large captures of a physical screen: threshold the
// bright display area, fit its extreme-point quadrilateral, resample through
// a perspective transform, then normalize illumination.
func detectPhoto(img image.Image) (*image.NRGBA, bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 1500 && h <= 800 {
		return nil, false
	}
	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mask[y*w+x] = luma(img.At(b.Min.X+x, b.Min.Y+y)) >= 180
		}
	}
	comp, box, count := largestComponent(mask, w, h)
	bw, bh := box.Dx(), box.Dy()
	if bw < 800 || bh < 300 {
		return nil, false
	}
	// the display region should dominate its bounding box, otherwise the fit
	// is too loose to trust
	if float64(count) < 0.5*float64(bw*bh) {
		return nil, false
	}
	quad := quadCorners(comp, w, h)
	topLen := dist(quad[0], quad[1])
	leftLen := dist(quad[0], quad[3])
	if leftLen < 1 {
		return nil, false
	}
	ratio := topLen / leftLen
	if ratio < 1.2 || ratio > 2.2 {
		return nil, false
	}
	out := perspectiveResample(img, quad, canonicalW, canonicalH)
	// physical-capture lighting is uncontrolled; stretch midtone contrast
	return imaging.AdjustSigmoid(out, 0.5, 5.0), true
}

type point struct{ x, y float64 }

func dist(a, b point) float64 {
	dx := a.x - b.x
	dy := a.y - b.y
	return math.Sqrt(dx*dx + dy*dy)
}

// largestComponent runs a flood fill over the mask and returns the biggest
// 4-connected region, its bounding box, and its pixel count. Only the winner
// is materialized: the first pass measures every component against a shared
// visited set, then the winner is re-flooded into its own mask.
func largestComponent(mask []bool, w, h int) ([]bool, image.Rectangle, int) {
	visited := make([]bool, w*h)
	queue := make([]int, 0, 1024)
	flood := func(start int, comp []bool) (image.Rectangle, int) {
		minX, minY, maxX, maxY := w, h, 0, 0
		count := 0
		queue = queue[:0]
		queue = append(queue, start)
		visited[start] = true
		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			if comp != nil {
				comp[idx] = true
			}
			count++
			x, y := idx%w, idx/w
			if x < minX {
				minX = x
			}
			if y < minY {
				minY = y
			}
			if x > maxX {
				maxX = x
			}
			if y > maxY {
				maxY = y
			}
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				n := ny*w + nx
				if mask[n] && !visited[n] {
					visited[n] = true
					queue = append(queue, n)
				}
			}
		}
		return image.Rect(minX, minY, maxX+1, maxY+1), count
	}

	bestStart, bestCount := -1, 0
	var bestBox image.Rectangle
	for start := 0; start < w*h; start++ {
		if !mask[start] || visited[start] {
			continue
		}
		box, count := flood(start, nil)
		if count > bestCount {
			bestStart, bestCount, bestBox = start, count, box
		}
	}
	if bestStart < 0 {
		return make([]bool, w*h), image.Rectangle{}, 0
	}
	for i := range visited {
		visited[i] = false
	}
	comp := make([]bool, w*h)
	flood(bestStart, comp)
	return comp, bestBox, bestCount
}

// quadCorners approximates the region's corners by its extreme points:
// TL minimizes x+y, BR maximizes it, TR maximizes x-y, BL minimizes x-y.
func quadCorners(comp []bool, w, h int) [4]point {
	var tl, tr, br, bl point
	first := true
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !comp[y*w+x] {
				continue
			}
			fx, fy := float64(x), float64(y)
			if first {
				tl, tr, br, bl = point{fx, fy}, point{fx, fy}, point{fx, fy}, point{fx, fy}
				first = false
				continue
			}
			if fx+fy < tl.x+tl.y {
				tl = point{fx, fy}
			}
			if fx+fy > br.x+br.y {
				br = point{fx, fy}
			}
			if fx-fy > tr.x-tr.y {
				tr = point{fx, fy}
			}
			if fx-fy < bl.x-bl.y {
				bl = point{fx, fy}
			}
		}
	}
	return [4]point{tl, tr, br, bl}
}

// perspectiveResample maps the unit square onto the quad (TL,TR,BR,BL) with
// a projective transform and inverse-samples the source bilinearly.
func perspectiveResample(src image.Image, quad [4]point, outW, outH int) *image.NRGBA {
	p00, p10, p11, p01 := quad[0], quad[1], quad[2], quad[3]
	d1 := point{p10.x - p11.x, p10.y - p11.y}
	d2 := point{p01.x - p11.x, p01.y - p11.y}
	s := point{p00.x - p10.x - p01.x + p11.x, p00.y - p10.y - p01.y + p11.y}
	den := d1.x*d2.y - d1.y*d2.x
	var g, hh float64
	if math.Abs(den) > 1e-9 {
		g = (s.x*d2.y - s.y*d2.x) / den
		hh = (d1.x*s.y - d1.y*s.x) / den
	}
	a11 := p10.x - p00.x + g*p10.x
	a12 := p01.x - p00.x + hh*p01.x
	a13 := p00.x
	a21 := p10.y - p00.y + g*p10.y
	a22 := p01.y - p00.y + hh*p01.y
	a23 := p00.y

	out := image.NewNRGBA(image.Rect(0, 0, outW, outH))
	srcN := imaging.Clone(src)
	for j := 0; j < outH; j++ {
		v := (float64(j) + 0.5) / float64(outH)
		for i := 0; i < outW; i++ {
			u := (float64(i) + 0.5) / float64(outW)
			d := g*u + hh*v + 1
			sx := (a11*u + a12*v + a13) / d
			sy := (a21*u + a22*v + a23) / d
			out.SetNRGBA(i, j, bilinearSample(srcN, sx, sy))
		}
	}
	return out
}

func bilinearSample(img *image.NRGBA, x, y float64) color.NRGBA {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	clamp := func(v, max int) int {
		if v < 0 {
			return 0
		}
		if v > max {
			return max
		}
		return v
	}
	x0 := clamp(int(math.Floor(x)), w-1)
	y0 := clamp(int(math.Floor(y)), h-1)
	x1 := clamp(x0+1, w-1)
	y1 := clamp(y0+1, h-1)
	fx := x - math.Floor(x)
	fy := y - math.Floor(y)
	mix := func(a, b uint8, t float64) float64 {
		return float64(a)*(1-t) + float64(b)*t
	}
	c00 := img.NRGBAAt(x0, y0)
	c10 := img.NRGBAAt(x1, y0)
	c01 := img.NRGBAAt(x0, y1)
	c11 := img.NRGBAAt(x1, y1)
	r := mix(uint8(mix(c00.R, c10.R, fx)), uint8(mix(c01.R, c11.R, fx)), fy)
	g := mix(uint8(mix(c00.G, c10.G, fx)), uint8(mix(c01.G, c11.G, fx)), fy)
	b := mix(uint8(mix(c00.B, c10.B, fx)), uint8(mix(c01.B, c11.B, fx)), fy)
	return color.NRGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}
}
