// Package progress owns the per-player, per-badge-level history and its
// latest-wins merge semantics. Callers only see the Merge/query contract;
// nothing else mutates the entry set.
package progress

import (
	"time"

	"gymtrack/pkg/card"
)

// Outcome is the result of merging one validated record.
type Outcome int

const (
	OutcomeInserted Outcome = iota
	OutcomeSuperseded
	OutcomeIgnoredDuplicate // source message already processed
	OutcomeIgnoredStale     // older or equal event time than stored data
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeSuperseded:
		return "superseded"
	case OutcomeIgnoredDuplicate:
		return "ignored-duplicate"
	}
	return "ignored-stale"
}

// Changed reports whether the merge mutated stored state.
func (o Outcome) Changed() bool {
	return o == OutcomeInserted || o == OutcomeSuperseded
}

// Entry is one stored progress record, keyed by (user, badge level).
type Entry struct {
	UserID          string        `json:"user_id"`
	TrainerName     string        `json:"trainer_name"`
	BadgeLevel      int           `json:"badge_level"`
	Time            card.Playtime `json:"time"`
	PokedexCount    int           `json:"pokedex"`
	SourceEventTime time.Time     `json:"event_time"`
	SourceMessageID string        `json:"message_id"`
}

// Store merges validated records and serves the two reporting queries.
//
// Merge is idempotent under replay: the same sourceMessageID never changes
// observable state twice. For an existing (user, badge level) key, only a
// strictly newer sourceEventTime supersedes stored data; older or equal
// reports are ignored regardless of how their field values look.
type Store interface {
	Merge(userID string, rec card.ValidatedRecord, eventTime time.Time, messageID string) (Outcome, error)

	// GetForUser returns the user's entries ordered by badge level ascending.
	GetForUser(userID string) ([]Entry, error)

	// GetLatestPerUser maps each known user to their highest badge-level entry.
	GetLatestPerUser() (map[string]Entry, error)
}
