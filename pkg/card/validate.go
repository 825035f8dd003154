package card

// maxDexBeforeFirstBadge is a conservative cross-field sanity bound: more
// species than this with zero badges means one of the two fields was
// misread. It is deliberately loose, not a game-rule engine.
const maxDexBeforeFirstBadge = 60

// Validate applies the acceptance rules to a candidate. All must hold; a
// failure carries a specific reason and a resubmission hint for the user.
func Validate(rec CandidateRecord) (ValidatedRecord, error) {
	if rec.NameConf == ConfAbsent || rec.Name == "" {
		return ValidatedRecord{}, newValidationError(ReasonMissingName)
	}
	// badge count is also the merge key, so a guessed count is not acceptable
	if rec.BadgesConf != ConfHigh || rec.Badges < 0 || rec.Badges > maxBadges {
		return ValidatedRecord{}, newValidationError(ReasonMissingBadges)
	}
	if rec.TimeConf != ConfHigh || rec.Time.Hours < 0 || rec.Time.Hours > 999 ||
		rec.Time.Minutes < 0 || rec.Time.Minutes > 59 {
		return ValidatedRecord{}, newValidationError(ReasonInvalidTime)
	}
	if rec.PokedexConf == ConfAbsent {
		return ValidatedRecord{}, newValidationError(ReasonMissingPokedex)
	}
	if rec.Badges == 0 && rec.Pokedex > maxDexBeforeFirstBadge {
		return ValidatedRecord{}, newValidationError(ReasonImplausibleComb)
	}
	return ValidatedRecord{
		Name:    rec.Name,
		Badges:  rec.Badges,
		Time:    rec.Time,
		Pokedex: rec.Pokedex,
	}, nil
}
