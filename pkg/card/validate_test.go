package card

import (
	"errors"
	"testing"
)

func validCandidate() CandidateRecord {
	return CandidateRecord{
		Name: "RED", NameConf: ConfHigh,
		Badges: 3, BadgesConf: ConfHigh,
		Time: Playtime{Hours: 12, Minutes: 34}, TimeConf: ConfHigh,
		Pokedex: 45, PokedexConf: ConfHigh,
	}
}

func rejectionReason(t *testing.T, rec CandidateRecord) string {
	t.Helper()
	_, err := Validate(rec)
	if err == nil {
		t.Fatalf("expected rejection for %+v", rec)
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError got %T", err)
	}
	if vErr.Hint == "" {
		t.Fatalf("rejection %s carries no user hint", vErr.Reason)
	}
	return vErr.Reason
}

func TestValidateAccepts(t *testing.T) {
	out, err := Validate(validCandidate())
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if out.Name != "RED" || out.Badges != 3 || out.Time.String() != "12:34" || out.Pokedex != 45 {
		t.Fatalf("unexpected record %+v", out)
	}
}

func TestValidateMissingName(t *testing.T) {
	rec := validCandidate()
	rec.Name, rec.NameConf = "", ConfAbsent
	if r := rejectionReason(t, rec); r != ReasonMissingName {
		t.Fatalf("got %s", r)
	}
}

func TestValidateLowNameIsAccepted(t *testing.T) {
	// a fuzzy-anchored name is still a name; only absence rejects
	rec := validCandidate()
	rec.NameConf = ConfLow
	if _, err := Validate(rec); err != nil {
		t.Fatalf("low-confidence name should pass: %v", err)
	}
}

func TestValidateAmbiguousBadges(t *testing.T) {
	// badges key the merge, so a guessed count must reject
	rec := validCandidate()
	rec.BadgesConf = ConfLow
	if r := rejectionReason(t, rec); r != ReasonMissingBadges {
		t.Fatalf("got %s", r)
	}
}

func TestValidateLowTime(t *testing.T) {
	rec := validCandidate()
	rec.TimeConf = ConfLow
	if r := rejectionReason(t, rec); r != ReasonInvalidTime {
		t.Fatalf("got %s", r)
	}
}

func TestValidateMissingPokedex(t *testing.T) {
	rec := validCandidate()
	rec.PokedexConf = ConfAbsent
	if r := rejectionReason(t, rec); r != ReasonMissingPokedex {
		t.Fatalf("got %s", r)
	}
}

func TestValidateImplausibleCombination(t *testing.T) {
	rec := validCandidate()
	rec.Badges = 0
	rec.Pokedex = maxDexBeforeFirstBadge + 1
	if r := rejectionReason(t, rec); r != ReasonImplausibleComb {
		t.Fatalf("got %s", r)
	}
	// exactly at the bound is still plausible
	rec.Pokedex = maxDexBeforeFirstBadge
	if _, err := Validate(rec); err != nil {
		t.Fatalf("bound value should pass: %v", err)
	}
}

func TestValidateReasonPrecedence(t *testing.T) {
	// when several fields fail the first rule in order wins
	rec := validCandidate()
	rec.Name, rec.NameConf = "", ConfAbsent
	rec.BadgesConf = ConfLow
	if r := rejectionReason(t, rec); r != ReasonMissingName {
		t.Fatalf("got %s", r)
	}
}
