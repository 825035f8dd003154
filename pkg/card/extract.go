package card

import (
	"regexp"
	"strconv"
	"strings"
)

// maxPokedex is the number of species this title's dex can hold. Matches
// above it are discarded as absent rather than clamped: clamping would
// fabricate plausible-looking wrong data.
const maxPokedex = 386

var (
	nameAnchorRE = regexp.MustCompile(`(?i)\bNAME[:;.\s]+([A-Za-z0-9 .]+)`)
	nameFuzzyRE  = regexp.MustCompile(`(?i)\b(?:WAME|NANE|NAHE)[:;.\s]+([A-Za-z0-9 .]+)`)
	nameLeadZero = regexp.MustCompile(`\b0([A-Za-z])`)
	nameTailZero = regexp.MustCompile(`([A-Za-z])0\b`)
	nameTokenRE  = regexp.MustCompile(`^[A-Za-z0-9.]+$`)

	timeAnchorRE   = regexp.MustCompile(`(?i)\bTIME[:;.\s]+([0-9OoIl]{1,3})[:;.\s]+([0-9OoIl]{2})\b`)
	timeFuzzyRE    = regexp.MustCompile(`(?i)\b(?:TINE|TTIME|TTME|SEE)[:;.\s]+([0-9OoIl]{1,3})[:;.\s]+([0-9OoIl]{2})\b`)
	timeFallbackRE = regexp.MustCompile(`\b([0-9]{1,3}):([0-9]{2})\b`)

	dexAnchorRE = regexp.MustCompile(`(?i)\bPOK[EÉé]?DEX[:;.\s]+([0-9](?:\s?[0-9]){0,2})\b`)
	dexNoisyRE  = regexp.MustCompile(`(?i)\bPOK[EÉé]?DEX[:;.\s]+([0-9OoIlSsBbGa|\]]{1,4})`)
	dexFuzzyRE  = regexp.MustCompile(`(?i)\b[oO]?POK[EÉé]?(?:NEX|EDE|KEDE|DE)[*:;.\s]+([0-9OoIlSsBbGa|\]]{1,4}(?:\s[0-9OoIlSsBbGa|\]])*)`)

	badgeHintRE = regexp.MustCompile(`(?i)\bBADGES?[:;.\s]+([0-9OoIl])\b`)
)

// tokens that OCR pulls in from neighboring card fields and which never
// belong to a trainer name
var nameGarbage = map[string]struct{}{
	"MONEY": {}, "EMONEY": {}, "OM": {}, "TT": {}, "A": {},
	"POKEDEX": {}, "TIME": {}, "BADGES": {}, "ID": {}, "IDNO": {},
}

// digitRepairs maps the glyphs Tesseract habitually confuses for digits.
var digitRepairs = strings.NewReplacer(
	"O", "0", "o", "0", "D", "0", "d", "0",
	"I", "1", "i", "1", "l", "1", "|", "1", "]", "1",
	"Z", "2", "z", "2",
	"a", "4",
	"S", "5", "s", "5",
	"G", "6", "b", "6",
	"B", "8",
)

// Extract parses raw recognized text into the text-derived candidate fields.
// It never fails: a field the heuristics cannot recover is ConfAbsent.
// Badges are not extracted here; they come from the icon counter.
func Extract(text string) CandidateRecord {
	rec := CandidateRecord{}
	rec.Name, rec.NameConf = extractName(text)
	rec.Time, rec.TimeConf = extractTime(text)
	rec.Pokedex, rec.PokedexConf = extractPokedex(text)
	return rec
}

func extractName(text string) (string, Confidence) {
	if m := nameAnchorRE.FindStringSubmatch(text); len(m) >= 2 {
		if name := cleanName(m[1]); name != "" {
			return name, ConfHigh
		}
	}
	if m := nameFuzzyRE.FindStringSubmatch(text); len(m) >= 2 {
		if name := cleanName(m[1]); name != "" {
			return name, ConfLow
		}
	}
	return "", ConfAbsent
}

// cleanName trims OCR artifacts from the token(s) following the anchor.
// Case is preserved: names are case-sensitive as displayed.
func cleanName(raw string) string {
	raw = strings.Join(strings.Fields(raw), " ")
	raw = nameLeadZero.ReplaceAllString(raw, "O$1")
	raw = nameTailZero.ReplaceAllString(raw, "${1}O")
	var kept []string
	for _, word := range strings.Fields(raw) {
		if _, bad := nameGarbage[strings.ToUpper(word)]; bad {
			break
		}
		if nameTokenRE.MatchString(word) {
			kept = append(kept, word)
		}
	}
	return strings.Join(kept, " ")
}

func extractTime(text string) (Playtime, Confidence) {
	anchored := timeAnchorRE.FindAllStringSubmatch(text, -1)
	for _, m := range anchored {
		if pt, ok := parseTimeMatch(m[1], m[2]); ok {
			if len(anchored) == 1 {
				return pt, ConfHigh
			}
			// more than one candidate in the label region is ambiguous
			return pt, ConfLow
		}
	}
	if m := timeFuzzyRE.FindStringSubmatch(text); len(m) >= 3 {
		if pt, ok := parseTimeMatch(m[1], m[2]); ok {
			return pt, ConfLow
		}
	}
	// label garbled entirely but the digits may still be readable
	if m := timeFallbackRE.FindStringSubmatch(text); len(m) >= 3 {
		if pt, ok := parseTimeMatch(m[1], m[2]); ok && pt.Hours > 0 {
			return pt, ConfLow
		}
	}
	return Playtime{}, ConfAbsent
}

func parseTimeMatch(hs, ms string) (Playtime, bool) {
	h, err1 := strconv.Atoi(repairDigits(hs))
	m, err2 := strconv.Atoi(repairDigits(ms))
	if err1 != nil || err2 != nil {
		return Playtime{}, false
	}
	if h < 0 || h >= 1000 || m < 0 || m >= 60 {
		return Playtime{}, false
	}
	return Playtime{Hours: h, Minutes: m}, true
}

func extractPokedex(text string) (int, Confidence) {
	if m := dexAnchorRE.FindStringSubmatch(text); len(m) >= 2 {
		if n, ok := parseDexMatch(m[1]); ok {
			return n, ConfHigh
		}
	}
	if m := dexNoisyRE.FindStringSubmatch(text); len(m) >= 2 {
		if n, ok := parseDexMatch(m[1]); ok {
			return n, ConfLow
		}
	}
	if m := dexFuzzyRE.FindStringSubmatch(text); len(m) >= 2 {
		if n, ok := parseDexMatch(m[1]); ok {
			return n, ConfLow
		}
	}
	return 0, ConfAbsent
}

func parseDexMatch(raw string) (int, bool) {
	digits := repairDigits(strings.Join(strings.Fields(raw), ""))
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	if n < 0 || n > maxPokedex {
		return 0, false
	}
	return n, true
}

// badgeHint reads a textual badge count if one survived OCR. It is only
// used for cross-checking against the icon count, which always wins.
func badgeHint(text string) (int, bool) {
	m := badgeHintRE.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(repairDigits(m[1]))
	if err != nil || n < 0 || n > maxBadges {
		return 0, false
	}
	return n, true
}

func repairDigits(s string) string {
	return digitRepairs.Replace(s)
}
