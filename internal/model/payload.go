package model

import "fmt"

// Handoff payloads are typed per edge rather than duck-typed maps, so the
// consuming role validates one struct at its entry point.

// ResearchPayload travels on the researcher → writer edge.
type ResearchPayload struct {
	Documents []Document `json:"documents"`
	Angle     Angle      `json:"angle"`
}

// Validate checks the payload carries what the writer needs.
func (p ResearchPayload) Validate() error {
	if len(p.Documents) == 0 {
		return fmt.Errorf("research payload has no documents")
	}
	if !p.Angle.WellFormed() {
		return fmt.Errorf("research payload angle is malformed (category=%q)", p.Angle.Category)
	}
	return nil
}

// ReviewPayload travels on the writer → reviewer edge.
// RevisionCount is the number of prior review attempts, not draft count.
type ReviewPayload struct {
	Draft         DraftVersion     `json:"draft"`
	Recipient     RecipientProfile `json:"recipient"`
	Documents     []Document       `json:"documents"`
	Angle         Angle            `json:"angle"`
	RevisionCount int              `json:"revision_count"`
}

// Validate checks the payload carries what the reviewer needs.
func (p ReviewPayload) Validate() error {
	if p.Draft.Content == "" {
		return fmt.Errorf("review payload has an empty draft")
	}
	if p.Recipient.Name == "" {
		return fmt.Errorf("review payload is missing the recipient")
	}
	return nil
}
