package card

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Confidence tags how a field value was recovered. Absence of a field is
// distinct from a zero value: a Pokédex of 0 at game start is a real
// observation, an unreadable Pokédex is not.
type Confidence int

const (
	ConfAbsent Confidence = iota
	ConfLow               // recovered via a fallback heuristic (fuzzy anchor, repair)
	ConfHigh              // primary exact match
)

func (c Confidence) String() string {
	switch c {
	case ConfHigh:
		return "high"
	case ConfLow:
		return "low"
	}
	return "absent"
}

// Playtime is the elapsed in-game time shown on the card, H:MM.
type Playtime struct {
	Hours   int
	Minutes int
}

func (p Playtime) String() string {
	return fmt.Sprintf("%d:%02d", p.Hours, p.Minutes)
}

// MarshalJSON keeps the legacy flat-file representation ("2:15").
func (p Playtime) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Playtime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	pt, err := ParsePlaytime(s)
	if err != nil {
		return err
	}
	*p = pt
	return nil
}

// ParsePlaytime parses "H:MM" / "HHH:MM".
func ParsePlaytime(s string) (Playtime, error) {
	i := strings.IndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return Playtime{}, fmt.Errorf("invalid playtime %q", s)
	}
	h, err := strconv.Atoi(s[:i])
	if err != nil {
		return Playtime{}, fmt.Errorf("invalid playtime hours %q", s)
	}
	m, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return Playtime{}, fmt.Errorf("invalid playtime minutes %q", s)
	}
	if h < 0 || m < 0 || m > 59 {
		return Playtime{}, fmt.Errorf("playtime out of range %q", s)
	}
	return Playtime{Hours: h, Minutes: m}, nil
}

// CandidateRecord holds the four extracted fields with per-field confidence.
// A field's value is meaningful only when its confidence is not ConfAbsent.
type CandidateRecord struct {
	Name        string
	NameConf    Confidence
	Badges      int
	BadgesConf  Confidence
	Time        Playtime
	TimeConf    Confidence
	Pokedex     int
	PokedexConf Confidence
}

// parsedScore ranks candidates from different recognition passes: primarily
// by how many fields were recovered at all, then by how many are high.
func (r CandidateRecord) parsedScore() int {
	score := 0
	for _, c := range []Confidence{r.NameConf, r.BadgesConf, r.TimeConf, r.PokedexConf} {
		if c != ConfAbsent {
			score += 4
		}
		if c == ConfHigh {
			score++
		}
	}
	return score
}

// textFieldsHigh reports whether every text-derived field already hit an
// exact match, meaning further recognition passes cannot improve the result.
func (r CandidateRecord) textFieldsHigh() bool {
	return r.NameConf == ConfHigh && r.TimeConf == ConfHigh && r.PokedexConf == ConfHigh
}

// ValidatedRecord is a CandidateRecord that passed all acceptance rules.
// Immutable once produced.
type ValidatedRecord struct {
	Name    string
	Badges  int
	Time    Playtime
	Pokedex int
}
