package card

import (
	"context"
	"errors"
	"image"
	"log"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// cardWhitelist keeps the engine on the card's character set: trainer names,
// the field labels, digits, and the separators OCR tends to produce.
const cardWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789.,:;|]() -"

const ocrScale = 3 // canonical 240x160 is too small for Tesseract as-is

// Presets returns the recognition attempts in order. Each prepares the
// normalized card differently; a later preset often recovers a field an
// earlier one garbled.
func Presets() []Preset {
	base := func(img *image.NRGBA) image.Image {
		g := imaging.Grayscale(img)
		g = imaging.AdjustContrast(g, 15)
		g = imaging.Sharpen(g, 0.7)
		return imaging.Resize(g, canonicalW*ocrScale, canonicalH*ocrScale, imaging.Lanczos)
	}
	return []Preset{
		{Name: "base", Whitelist: cardWhitelist, PSM: gosseract.PSM_SINGLE_BLOCK, Prepare: base},
		{Name: "adaptive", Whitelist: cardWhitelist, PSM: gosseract.PSM_SINGLE_BLOCK, Prepare: func(img *image.NRGBA) image.Image {
			return adaptiveThreshold(base(img), 15, 7)
		}},
		{Name: "otsu", Whitelist: cardWhitelist, PSM: gosseract.PSM_SINGLE_BLOCK, Prepare: func(img *image.NRGBA) image.Image {
			scaled := base(img)
			return binarize(scaled, otsuThreshold(scaled))
		}},
		{Name: "inverted", Whitelist: cardWhitelist, PSM: gosseract.PSM_SINGLE_BLOCK, Prepare: func(img *image.NRGBA) image.Image {
			return imaging.Invert(base(img))
		}},
		{Name: "sparse", Whitelist: cardWhitelist, PSM: gosseract.PSM_SPARSE_TEXT, Prepare: base},
	}
}

// runPasses drives the multi-pass recognition strategy: badge icons are
// counted once from pixels, then each preset's text is extracted and the
// pass with the most successfully parsed fields wins. A recognition timeout
// aborts the image; other per-pass errors only skip that pass.
func runPasses(ctx context.Context, rec Recognizer, norm *Normalized, timeout func(context.Context) (context.Context, context.CancelFunc)) (CandidateRecord, error) {
	badges, badgesConf := CountBadges(norm.Img)
	best := CandidateRecord{Badges: badges, BadgesConf: badgesConf}
	bestScore := best.parsedScore()

	for _, preset := range Presets() {
		prepared := preset.Prepare(norm.Img)
		passCtx, cancel := timeout(ctx)
		text, err := recognizeWithTimeout(passCtx, rec, prepared, preset)
		cancel()
		if err != nil {
			if errors.Is(err, ErrRecognitionTimeout) {
				return CandidateRecord{}, ErrRecognitionTimeout
			}
			log.Printf("OCR pass %s failed: %v", preset.Name, err)
			continue
		}
		cand := Extract(normalizeText(text))
		cand.Badges = badges
		cand.BadgesConf = badgesConf
		if hint, ok := badgeHint(text); ok && hint != badges {
			// icons are the ground-truth UI element; the text is supplementary
			log.Printf("OCR pass %s badge hint %d disagrees with icon count %d; keeping icons", preset.Name, hint, badges)
		}
		if s := cand.parsedScore(); s > bestScore {
			best = cand
			bestScore = s
		}
		if best.textFieldsHigh() {
			break
		}
	}
	return best, nil
}

// normalizeText collapses whitespace so the field regexes see one line.
func normalizeText(t string) string {
	t = strings.ReplaceAll(t, "\n", " ")
	t = strings.ReplaceAll(t, "\t", " ")
	return strings.Join(strings.Fields(t), " ")
}
