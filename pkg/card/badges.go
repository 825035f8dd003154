package card

import (
	"image"
	"math"
)

// Badge icon row in the canonical frame: eight slots along the bottom of the
// card, after the BADGES label.
var badgeRow = image.Rect(17, 131, 225, 147)

const maxBadges = 8

type segmentMetrics struct {
	std  float64
	min  float64
	mean float64
	sat  float64
}

// CountBadges counts earned badges by inspecting the badge icon row of a
// normalized card, not the recognized text: digit OCR on tiny icons is
// unreliable, while filled slots differ measurably from the flat green of
// empty ones. The result is capped to [0,8] and strictly overrides any
// textual badge hint.
func CountBadges(img *image.NRGBA) (int, Confidence) {
	rb := badgeRow.Intersect(img.Bounds())
	if rb.Dx() < maxBadges || rb.Dy() == 0 {
		return 0, ConfAbsent
	}

	segW := rb.Dx() / maxBadges
	scores := make([]int, maxBadges)
	for i := 0; i < maxBadges; i++ {
		x0 := rb.Min.X + i*segW
		x1 := x0 + segW
		if i == maxBadges-1 {
			x1 = rb.Max.X
		}
		// trim segment edges to stay off the slot grid lines
		trim := segW * 15 / 100
		if segW <= 20 {
			trim = 1
		}
		if x1-x0 > 2*trim {
			x0 += trim
			x1 -= trim
		}
		m := measureSegment(img, x0, x1, rb.Min.Y, rb.Max.Y)
		scores[i] = scoreSegment(m)
	}

	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore <= 0 {
		// uniformly empty row reads as zero badges with a clear signal
		return 0, ConfHigh
	}
	threshold := 2
	switch {
	case maxScore >= 8:
		threshold = 5
	case maxScore >= 5:
		threshold = 3
	}

	count := countFilled(scores, threshold)
	conf := ConfHigh
	if maxScore < 5 {
		// weak icon signal; the count is a guess, not a measurement
		conf = ConfLow
	}
	return count, conf
}

func measureSegment(img *image.NRGBA, x0, x1, y0, y1 int) segmentMetrics {
	var sum, sumSq, satSum float64
	minV := 255.0
	n := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			c := img.NRGBAAt(x, y)
			v := float64(int(c.R)+int(c.G)+int(c.B)) / 3
			sum += v
			sumSq += v * v
			if v < minV {
				minV = v
			}
			satSum += float64(saturation(c))
			n++
		}
	}
	if n == 0 {
		return segmentMetrics{}
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return segmentMetrics{
		std:  math.Sqrt(variance),
		min:  minV,
		mean: mean,
		sat:  satSum / float64(n),
	}
}

// scoreSegment rates how badge-like a slot looks. Filled badges are colorful
// icons with dark outlines and texture; empty slots are flat saturated green.
func scoreSegment(m segmentMetrics) int {
	score := 0
	switch {
	case m.sat < 40:
		score += 4
	case m.sat < 70:
		score += 2
	case m.sat > 100:
		score -= 4
	}
	switch {
	case m.std > 50:
		score += 3
	case m.std > 35:
		score += 2
	case m.std < 20:
		score -= 2
	}
	switch {
	case m.min < 30:
		score += 3
	case m.min < 70:
		score += 2
	case m.min < 100:
		score++
	}
	switch {
	case m.mean < 150:
		score += 2
	case m.mean < 180:
		score++
	case m.mean > 200:
		score--
	}
	return score
}

// countFilled walks the slots left to right looking for the filled→empty
// transition; badges are earned sequentially so there is a single cutoff.
func countFilled(scores []int, threshold int) int {
	count := 0
	for i, score := range scores {
		if score <= 0 {
			break
		}
		if i == 0 {
			if score < threshold {
				break
			}
			count++
			continue
		}
		drop := scores[i-1] - score
		if drop >= 3 || score < threshold {
			break
		}
		if drop >= 2 && i < len(scores)-1 {
			rest := scores[i+1:]
			sum := 0
			for _, r := range rest {
				sum += r
			}
			if sum <= 0 {
				count++
				break
			}
		}
		count++
	}
	if count > maxBadges {
		count = maxBadges
	}
	return count
}
