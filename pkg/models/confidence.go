package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Confidence is the strength of an authority link on a metadata value.
type Confidence int

const (
	ConfidenceUnset     Confidence = -1
	ConfidenceNotFound  Confidence = 300
	ConfidenceAmbiguous Confidence = 400
	ConfidenceUncertain Confidence = 500
	ConfidenceAccepted  Confidence = 600
)

var confidenceNames = map[Confidence]string{
	ConfidenceUnset:     "unset",
	ConfidenceNotFound:  "not_found",
	ConfidenceAmbiguous: "ambiguous",
	ConfidenceUncertain: "uncertain",
	ConfidenceAccepted:  "accepted",
}

func (c Confidence) String() string {
	if name, ok := confidenceNames[c]; ok {
		return name
	}
	return fmt.Sprintf("confidence(%d)", int(c))
}

// ParseConfidence accepts a name ("uncertain", "NOT_FOUND") or the numeric level.
func ParseConfidence(value string) (Confidence, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for c, name := range confidenceNames {
		if name == normalized {
			return c, nil
		}
	}

	var level int
	if _, err := fmt.Sscanf(normalized, "%d", &level); err == nil {
		if _, ok := confidenceNames[Confidence(level)]; ok {
			return Confidence(level), nil
		}
	}

	return ConfidenceUnset, fmt.Errorf("unknown confidence %q", value)
}

func (c Confidence) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Confidence) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		parsed, err := ParseConfidence(name)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}

	var level int
	if err := json.Unmarshal(data, &level); err != nil {
		return fmt.Errorf("confidence must be a name or a number: %w", err)
	}
	parsed, err := ParseConfidence(fmt.Sprint(level))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
