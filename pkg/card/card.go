// Package card turns a trainer-card screenshot into a validated progress
// record: variant detection and normalization, multi-pass OCR, field
// extraction with confidence tags, and cross-field validation.
package card

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
)

// DefaultRecognitionTimeout bounds a single OCR engine invocation.
const DefaultRecognitionTimeout = 20 * time.Second

// Parser runs the full extraction pipeline against a substitutable
// recognizer.
type Parser struct {
	rec     Recognizer
	timeout time.Duration
}

func NewParser(rec Recognizer, timeout time.Duration) *Parser {
	if timeout <= 0 {
		timeout = DefaultRecognitionTimeout
	}
	return &Parser{rec: rec, timeout: timeout}
}

// Parse normalizes the image, recognizes and extracts the fields, and
// validates the result. Errors are ErrUnrecognizedLayout,
// ErrRecognitionTimeout, or a *ValidationError.
func (p *Parser) Parse(ctx context.Context, img image.Image) (ValidatedRecord, error) {
	norm, err := Normalize(img)
	if err != nil {
		return ValidatedRecord{}, err
	}
	cand, err := runPasses(ctx, p.rec, norm, func(parent context.Context) (context.Context, context.CancelFunc) {
		return context.WithTimeout(parent, p.timeout)
	})
	if err != nil {
		return ValidatedRecord{}, err
	}
	return Validate(cand)
}

// ParseFile is a convenience wrapper for the CLI tools.
func (p *Parser) ParseFile(ctx context.Context, path string) (ValidatedRecord, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return ValidatedRecord{}, fmt.Errorf("open image: %w", err)
	}
	return p.Parse(ctx, img)
}
