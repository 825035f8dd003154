package card

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"
)

// fakeRecognizer scripts per-preset text so the pass strategy can be tested
// without a Tesseract install.
type fakeRecognizer struct {
	byPreset map[string]string
	delay    time.Duration
	calls    []string
}

func (f *fakeRecognizer) Recognize(_ image.Image, preset Preset) (string, error) {
	f.calls = append(f.calls, preset.Name)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	text, ok := f.byPreset[preset.Name]
	if !ok {
		return "", errors.New("engine crashed")
	}
	return text, nil
}

func noTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithCancel(parent)
}

func TestRunPassesPicksBestPass(t *testing.T) {
	rec := &fakeRecognizer{byPreset: map[string]string{
		"base":     "garbled nonsense",
		"adaptive": "NAME: RED TIME: 12:34 POKEDEX: 45",
		"otsu":     "NAME: RED",
		"inverted": "",
		"sparse":   "",
	}}
	norm := &Normalized{Img: testCard(3), Variant: VariantClean}
	cand, err := runPasses(context.Background(), rec, norm, noTimeout)
	if err != nil {
		t.Fatalf("runPasses: %v", err)
	}
	if cand.Name != "RED" || cand.Time.String() != "12:34" || cand.Pokedex != 45 {
		t.Fatalf("best pass not selected: %+v", cand)
	}
	if cand.Badges != 3 || cand.BadgesConf != ConfHigh {
		t.Fatalf("badges from icons: %d/%s", cand.Badges, cand.BadgesConf)
	}
}

func TestRunPassesStopsEarlyWhenAllFieldsHigh(t *testing.T) {
	rec := &fakeRecognizer{byPreset: map[string]string{
		"base":     "NAME: RED TIME: 12:34 POKEDEX: 45",
		"adaptive": "",
		"otsu":     "",
		"inverted": "",
		"sparse":   "",
	}}
	norm := &Normalized{Img: testCard(3), Variant: VariantClean}
	if _, err := runPasses(context.Background(), rec, norm, noTimeout); err != nil {
		t.Fatalf("runPasses: %v", err)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("expected early exit after first pass, ran %v", rec.calls)
	}
}

func TestRunPassesSkipsFailingPass(t *testing.T) {
	// base has no entry and errors; the strategy must continue, not abort
	rec := &fakeRecognizer{byPreset: map[string]string{
		"adaptive": "NAME: RED TIME: 1:00 POKEDEX: 7",
		"otsu":     "", "inverted": "", "sparse": "",
	}}
	norm := &Normalized{Img: testCard(1), Variant: VariantClean}
	cand, err := runPasses(context.Background(), rec, norm, noTimeout)
	if err != nil {
		t.Fatalf("runPasses: %v", err)
	}
	if cand.Name != "RED" {
		t.Fatalf("recovery pass not used: %+v", cand)
	}
}

func TestRunPassesIconCountBeatsTextHint(t *testing.T) {
	// the text claims 7 badges but the icon row shows 3; icons win
	rec := &fakeRecognizer{byPreset: map[string]string{
		"base": "NAME: RED TIME: 1:00 POKEDEX: 7 BADGES: 7",
		"adaptive": "", "otsu": "", "inverted": "", "sparse": "",
	}}
	norm := &Normalized{Img: testCard(3), Variant: VariantClean}
	cand, err := runPasses(context.Background(), rec, norm, noTimeout)
	if err != nil {
		t.Fatalf("runPasses: %v", err)
	}
	if cand.Badges != 3 {
		t.Fatalf("badges %d, icon count must override the text", cand.Badges)
	}
}

func TestRunPassesTimeout(t *testing.T) {
	rec := &fakeRecognizer{
		byPreset: map[string]string{"base": "NAME: RED"},
		delay:    200 * time.Millisecond,
	}
	norm := &Normalized{Img: testCard(1), Variant: VariantClean}
	shortTimeout := func(parent context.Context) (context.Context, context.CancelFunc) {
		return context.WithTimeout(parent, 5*time.Millisecond)
	}
	_, err := runPasses(context.Background(), rec, norm, shortTimeout)
	if !errors.Is(err, ErrRecognitionTimeout) {
		t.Fatalf("expected ErrRecognitionTimeout got %v", err)
	}
}

func TestParserEndToEnd(t *testing.T) {
	rec := &fakeRecognizer{byPreset: map[string]string{
		"base": "IDNo. 05195 NAME: RED MONEY 3000 POKEDEX: 45 TIME: 12:34 BADGES: 3",
		"adaptive": "", "otsu": "", "inverted": "", "sparse": "",
	}}
	parser := NewParser(rec, time.Second)
	out, err := parser.Parse(context.Background(), testCard(3))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.Name != "RED" || out.Badges != 3 || out.Time.String() != "12:34" || out.Pokedex != 45 {
		t.Fatalf("unexpected record %+v", out)
	}
}

func TestParserRejectsUnreadableCard(t *testing.T) {
	rec := &fakeRecognizer{byPreset: map[string]string{
		"base": "", "adaptive": "", "otsu": "", "inverted": "", "sparse": "",
	}}
	parser := NewParser(rec, time.Second)
	_, err := parser.Parse(context.Background(), testCard(3))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if vErr.Reason != ReasonMissingName {
		t.Fatalf("got reason %s", vErr.Reason)
	}
}
