package card

import "errors"

// ErrUnrecognizedLayout is returned when no screenshot variant's geometry
// matches the input within tolerance. Non-retryable; the caller should ask
// for a clearer image instead of passing a poorly rectified one downstream.
var ErrUnrecognizedLayout = errors.New("no trainer card layout recognized")

// ErrRecognitionTimeout is returned when the OCR engine does not answer
// within the configured bound. The attempt commits no partial state.
var ErrRecognitionTimeout = errors.New("text recognition timed out")

// Rejection reasons produced by Validate.
const (
	ReasonMissingName     = "missing-name"
	ReasonMissingBadges   = "missing-or-ambiguous-badges"
	ReasonInvalidTime     = "invalid-time-format"
	ReasonMissingPokedex  = "missing-pokedex"
	ReasonImplausibleComb = "implausible-combination"
)

var rejectionHints = map[string]string{
	ReasonMissingName:     "I couldn't read the trainer name. Please post a clearer screenshot of your trainer card.",
	ReasonMissingBadges:   "I couldn't make out the badge row. Please post a screenshot where the badge icons are visible.",
	ReasonInvalidTime:     "I couldn't read the play time. Please post a clearer screenshot of your trainer card.",
	ReasonMissingPokedex:  "I couldn't read the Pokédex count. Please post a clearer screenshot of your trainer card.",
	ReasonImplausibleComb: "The numbers on this card don't add up. Please post a fresh screenshot of your trainer card.",
}

// ValidationError reports why a candidate record was rejected. It is never
// retried automatically; the image itself is presumed to be the defect.
type ValidationError struct {
	Reason string
	Hint   string
}

func (e *ValidationError) Error() string {
	return "invalid trainer card: " + e.Reason
}

func newValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason, Hint: rejectionHints[reason]}
}
