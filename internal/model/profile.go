package model

import (
	"strings"
	"time"
)

// SenderProfile identifies who the message is from.
type SenderProfile struct {
	Name         string `json:"name"`
	Title        string `json:"title,omitempty"`
	Organization string `json:"organization,omitempty"`
	Email        string `json:"email,omitempty"`
}

// RecipientProfile identifies who the message is for.
type RecipientProfile struct {
	Name         string `json:"name"`
	Title        string `json:"title,omitempty"`
	Organization string `json:"organization,omitempty"`
	Email        string `json:"email,omitempty"`
}

var seniorTitleMarkers = []string{
	"chief", "ceo", "cto", "cfo", "coo", "president", "founder",
	"vp", "vice president", "director", "head of", "partner",
}

// Senior reports whether the recipient's title suggests a senior audience.
// Senior recipients default to a formal, direct register.
func (r RecipientProfile) Senior() bool {
	title := strings.ToLower(r.Title)
	for _, marker := range seniorTitleMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

// OrganizationProfile describes the recipient's organization, used to scope
// the news search.
type OrganizationProfile struct {
	Name        string   `json:"name"`
	Industry    string   `json:"industry,omitempty"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Options are caller-supplied overrides for a generation run.
// Style and Tone, when set, take precedence over derived defaults.
type Options struct {
	Style string   `json:"style,omitempty"`
	Tone  string   `json:"tone,omitempty"`
	Goals []string `json:"goals,omitempty"`
}

// OutcomeStatus is the terminal status of a run's outcome record.
type OutcomeStatus string

const (
	OutcomeApproved OutcomeStatus = "approved"
	OutcomeFailed   OutcomeStatus = "failed"
)

// GeneratedMessage is the approved output of a run.
type GeneratedMessage struct {
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	Angle     Angle      `json:"angle"`
	Documents []Document `json:"documents,omitempty"`
	Score     float64    `json:"score"`
}

// Outcome is the caller-visible result of a run: always well-formed, even on
// failure. On approval it carries exactly one generated message.
type Outcome struct {
	RunID        int64              `json:"run_id"`
	Recipient    RecipientProfile   `json:"recipient"`
	CreatedAt    time.Time          `json:"created_at"`
	Status       OutcomeStatus      `json:"status"`
	FailedReason string             `json:"failed_reason,omitempty"`
	Messages     []GeneratedMessage `json:"messages"`
}
