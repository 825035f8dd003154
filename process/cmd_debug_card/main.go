package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/disintegration/imaging"

	"gymtrack/pkg/card"
)

// Dumps the intermediate stages of the card pipeline for one image: detected
// variant, per-preset raw text and extraction, and the final validation
// verdict.
func main() {
	f := flag.String("file", "", "trainer-card image to inspect")
	flag.Parse()
	if *f == "" {
		log.Fatalf("-file required")
	}
	img, err := imaging.Open(*f)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	norm, err := card.Normalize(img)
	if err != nil {
		log.Fatalf("normalize: %v", err)
	}
	fmt.Printf("variant=%s size=%dx%d\n", norm.Variant, norm.Img.Bounds().Dx(), norm.Img.Bounds().Dy())

	badges, conf := card.CountBadges(norm.Img)
	fmt.Printf("badges=%d conf=%s\n", badges, conf)

	rec := card.TesseractRecognizer{}
	for _, preset := range card.Presets() {
		text, err := rec.Recognize(preset.Prepare(norm.Img), preset)
		if err != nil {
			fmt.Printf("pass %-8s error: %v\n", preset.Name, err)
			continue
		}
		cand := card.Extract(text)
		fmt.Printf("pass %-8s name=%q(%s) time=%s(%s) dex=%d(%s)\n",
			preset.Name, cand.Name, cand.NameConf, cand.Time, cand.TimeConf, cand.Pokedex, cand.PokedexConf)
		fmt.Printf("  raw: %q\n", text)
	}

	parser := card.NewParser(rec, card.DefaultRecognitionTimeout)
	final, err := parser.Parse(context.Background(), img)
	if err != nil {
		fmt.Printf("verdict: REJECTED: %v\n", err)
		return
	}
	fmt.Printf("verdict: name=%s badges=%d time=%s dex=%d\n", final.Name, final.Badges, final.Time, final.Pokedex)
}
