package card

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Preset names one recognition attempt: how to prepare the canonical raster
// and how to configure the engine for it.
type Preset struct {
	Name      string
	Whitelist string
	PSM       gosseract.PageSegMode
	Prepare   func(*image.NRGBA) image.Image
}

// Recognizer is the narrow capability the core needs from the OCR engine.
// It returns raw, possibly garbled text; no invariant is guaranteed beyond
// "some text was returned". Tests substitute a scripted fake.
type Recognizer interface {
	Recognize(img image.Image, preset Preset) (string, error)
}

// TesseractRecognizer runs gosseract against a temp PNG of the prepared
// image, the same way the rest of the toolchain feeds Tesseract.
type TesseractRecognizer struct{}

func (TesseractRecognizer) Recognize(img image.Image, preset Preset) (string, error) {
	tmp, err := os.CreateTemp("", "card-*.png")
	if err != nil {
		return "", fmt.Errorf("temp image: %w", err)
	}
	_ = tmp.Close()
	defer os.Remove(tmp.Name())
	if err := imaging.Save(img, tmp.Name()); err != nil {
		return "", fmt.Errorf("save temp image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()
	_ = client.SetLanguage("eng")
	if preset.Whitelist != "" {
		_ = client.SetWhitelist(preset.Whitelist)
	}
	_ = client.SetPageSegMode(preset.PSM)
	client.SetImage(tmp.Name())
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr error: %w", err)
	}
	return text, nil
}

// recognizeWithTimeout bounds one engine invocation. An overrun is reported
// as ErrRecognitionTimeout; the abandoned call's result is discarded so no
// partial state leaks out of a timed-out attempt.
func recognizeWithTimeout(ctx context.Context, rec Recognizer, img image.Image, preset Preset) (string, error) {
	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := rec.Recognize(img, preset)
		ch <- result{text: text, err: err}
	}()
	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", ErrRecognitionTimeout
	}
}
