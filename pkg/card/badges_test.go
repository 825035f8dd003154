package card

import (
	"image"
	"image/color"
	"testing"
)

var cardGreen = color.NRGBA{R: 60, G: 220, B: 60, A: 255}

// testCard returns a canonical-size raster filled with the card background
// green, with the first k badge slots drawn as high-contrast icons.
func testCard(k int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, canonicalW, canonicalH))
	for y := 0; y < canonicalH; y++ {
		for x := 0; x < canonicalW; x++ {
			img.SetNRGBA(x, y, cardGreen)
		}
	}
	for i := 0; i < k; i++ {
		fillBadgeSlot(img, i)
	}
	return img
}

// fillBadgeSlot draws a black/white checkerboard over slot i, which gives the
// low saturation, high variance and dark minima of a real badge icon.
func fillBadgeSlot(img *image.NRGBA, i int) {
	segW := badgeRow.Dx() / maxBadges
	x0 := badgeRow.Min.X + i*segW
	x1 := x0 + segW
	if i == maxBadges-1 {
		x1 = badgeRow.Max.X
	}
	for y := badgeRow.Min.Y; y < badgeRow.Max.Y; y++ {
		for x := x0; x < x1; x++ {
			c := color.NRGBA{A: 255}
			if (x+y)%2 == 0 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
}

func TestCountBadgesEmptyRow(t *testing.T) {
	n, conf := CountBadges(testCard(0))
	if n != 0 || conf != ConfHigh {
		t.Fatalf("expected 0/high got %d/%s", n, conf)
	}
}

func TestCountBadgesPartial(t *testing.T) {
	for _, k := range []int{1, 3, 7} {
		n, conf := CountBadges(testCard(k))
		if n != k {
			t.Fatalf("k=%d: counted %d", k, n)
		}
		if conf != ConfHigh {
			t.Fatalf("k=%d: expected high got %s", k, conf)
		}
	}
}

func TestCountBadgesFullRow(t *testing.T) {
	n, _ := CountBadges(testCard(maxBadges))
	if n != maxBadges {
		t.Fatalf("counted %d", n)
	}
}

func TestCountBadgesTinyImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	n, conf := CountBadges(img)
	if n != 0 || conf != ConfAbsent {
		t.Fatalf("badge row outside bounds must be absent, got %d/%s", n, conf)
	}
}

func TestCountBadgesIgnoresGapSlots(t *testing.T) {
	// a filled slot after an empty one must not extend the count; badges are
	// earned sequentially so the scan stops at the first empty slot
	img := testCard(2)
	fillBadgeSlot(img, 4)
	n, _ := CountBadges(img)
	if n != 2 {
		t.Fatalf("counted %d, want 2", n)
	}
}

func TestScoreSegmentPolarity(t *testing.T) {
	flatGreen := segmentMetrics{std: 0, min: 113, mean: 113, sat: 185}
	if s := scoreSegment(flatGreen); s > 0 {
		t.Fatalf("flat green scored %d, want <= 0", s)
	}
	icon := segmentMetrics{std: 127, min: 0, mean: 127, sat: 0}
	if s := scoreSegment(icon); s < 5 {
		t.Fatalf("icon scored %d, want strong positive", s)
	}
}
