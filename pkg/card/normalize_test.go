package card

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestNormalizeCleanNative(t *testing.T) {
	norm, err := Normalize(testCard(3))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if norm.Variant != VariantClean {
		t.Fatalf("variant %s", norm.Variant)
	}
	b := norm.Img.Bounds()
	if b.Dx() != canonicalW || b.Dy() != canonicalH {
		t.Fatalf("bounds %v", b)
	}
}

func TestNormalizeCleanIntegerScale(t *testing.T) {
	norm, err := Normalize(solid(canonicalW*2, canonicalH*2, cardGreen))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if norm.Variant != VariantClean {
		t.Fatalf("variant %s", norm.Variant)
	}
	if norm.Img.Bounds().Dx() != canonicalW {
		t.Fatalf("not resampled to canonical: %v", norm.Img.Bounds())
	}
}

func TestNormalizeOverlay(t *testing.T) {
	// card background embedded in dark emulator chrome
	img := solid(800, 600, color.NRGBA{R: 30, G: 30, B: 30, A: 255})
	for y := 100; y < 420; y++ {
		for x := 100; x < 580; x++ {
			img.SetNRGBA(x, y, cardGreen)
		}
	}
	norm, err := Normalize(img)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if norm.Variant != VariantOverlay {
		t.Fatalf("variant %s", norm.Variant)
	}
	if norm.Img.Bounds().Dx() != canonicalW || norm.Img.Bounds().Dy() != canonicalH {
		t.Fatalf("bounds %v", norm.Img.Bounds())
	}
}

func TestNormalizeOverlayRejectsWrongAspect(t *testing.T) {
	// a tall green region is not a card
	img := solid(800, 600, color.NRGBA{R: 30, G: 30, B: 30, A: 255})
	for y := 50; y < 550; y++ {
		for x := 300; x < 450; x++ {
			img.SetNRGBA(x, y, cardGreen)
		}
	}
	if _, err := Normalize(img); !errors.Is(err, ErrUnrecognizedLayout) {
		t.Fatalf("expected ErrUnrecognizedLayout got %v", err)
	}
}

func TestNormalizePhoto(t *testing.T) {
	// large capture with a bright display region
	img := solid(1600, 900, color.NRGBA{R: 20, G: 20, B: 20, A: 255})
	for y := 100; y < 800; y++ {
		for x := 200; x < 1400; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 230, G: 230, B: 230, A: 255})
		}
	}
	norm, err := Normalize(img)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if norm.Variant != VariantPhoto {
		t.Fatalf("variant %s", norm.Variant)
	}
	if norm.Img.Bounds().Dx() != canonicalW || norm.Img.Bounds().Dy() != canonicalH {
		t.Fatalf("bounds %v", norm.Img.Bounds())
	}
}

func TestNormalizeUnrecognized(t *testing.T) {
	img := solid(500, 400, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
	if _, err := Normalize(img); !errors.Is(err, ErrUnrecognizedLayout) {
		t.Fatalf("expected ErrUnrecognizedLayout got %v", err)
	}
}

func TestLargestComponentPicksBiggest(t *testing.T) {
	w, h := 10, 6
	mask := make([]bool, w*h)
	fill := func(x0, y0, x1, y1 int) {
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				mask[y*w+x] = true
			}
		}
	}
	fill(0, 0, 2, 2) // 4 px
	fill(5, 1, 8, 5) // 12 px
	comp, box, count := largestComponent(mask, w, h)
	if count != 12 {
		t.Fatalf("count %d", count)
	}
	if box != image.Rect(5, 1, 8, 5) {
		t.Fatalf("box %v", box)
	}
	if !comp[2*w+6] {
		t.Fatalf("winner pixel missing from component mask")
	}
	if comp[0] {
		t.Fatalf("losing component leaked into the winner's mask")
	}
}

func TestLargestComponentEmptyMask(t *testing.T) {
	comp, box, count := largestComponent(make([]bool, 12), 4, 3)
	if count != 0 || !box.Empty() || len(comp) != 12 {
		t.Fatalf("count=%d box=%v len=%d", count, box, len(comp))
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	a, err := Normalize(testCard(5))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	b, err := Normalize(testCard(5))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(a.Img.Pix) != len(b.Img.Pix) {
		t.Fatalf("pixel buffers differ in size")
	}
	for i := range a.Img.Pix {
		if a.Img.Pix[i] != b.Img.Pix[i] {
			t.Fatalf("pixel %d differs", i)
		}
	}
}
