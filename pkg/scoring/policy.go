package scoring

import (
	"fmt"

	"github.com/Ramsey-B/heather/pkg/models"
)

// Policy maps a match count to a confidence level.
type Policy string

const (
	// PolicyIntended: 0 not found, 1 uncertain, more ambiguous.
	PolicyIntended Policy = "intended"
	// PolicyLegacy treats any match as ambiguous, so uncertain is never produced.
	PolicyLegacy Policy = "legacy"
)

func ParsePolicy(value string) (Policy, error) {
	switch Policy(value) {
	case "", PolicyIntended:
		return PolicyIntended, nil
	case PolicyLegacy:
		return PolicyLegacy, nil
	default:
		return "", fmt.Errorf("unknown confidence policy %q", value)
	}
}

func (p Policy) Confidence(matchCount int) models.Confidence {
	if p == PolicyLegacy {
		if matchCount >= 1 {
			return models.ConfidenceAmbiguous
		}
		return models.ConfidenceNotFound
	}

	switch {
	case matchCount > 1:
		return models.ConfidenceAmbiguous
	case matchCount == 1:
		return models.ConfidenceUncertain
	default:
		return models.ConfidenceNotFound
	}
}
