package model

import "time"

// Phase is the coarse stage of a generation run.
type Phase string

const (
	PhaseResearch Phase = "research"
	PhaseWriting  Phase = "writing"
	PhaseReview   Phase = "review"
	PhaseRevision Phase = "revision"
	PhaseComplete Phase = "complete"
	PhaseFailed   Phase = "failed"
)

// Terminal reports whether the phase is a sink state.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// Role identifies an actor mutating run state.
type Role string

const (
	RoleResearcher   Role = "researcher"
	RoleWriter       Role = "writer"
	RoleReviewer     Role = "reviewer"
	RoleOrchestrator Role = "orchestrator"
)

// RunState tracks where a run currently is.
// Progress is in [0,1], monotonically non-decreasing within a phase and reset
// to 0 on phase entry.
type RunState struct {
	Phase    Phase     `json:"phase"`
	SubPhase string    `json:"sub_phase,omitempty"`
	Progress float64   `json:"progress"`
	Error    *RunError `json:"error,omitempty"`
}

// RunError is present while a role is inside a recoverable-failure window.
// It is cleared only by a successful recovery.
type RunError struct {
	Role             Role      `json:"role"`
	Message          string    `json:"message"`
	Timestamp        time.Time `json:"timestamp"`
	RecoveryAttempts int       `json:"recovery_attempts"`
}

// Decision is one entry of the append-only decision log.
type Decision struct {
	Role       Role           `json:"role"`
	Timestamp  time.Time      `json:"timestamp"`
	Label      string         `json:"label"`
	Reasoning  string         `json:"reasoning"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Handoff is a logged transfer of control and data between roles.
// Payload carries a typed payload struct (ResearchPayload, ReviewPayload);
// consuming roles validate it at their entry point.
type Handoff struct {
	From      Role      `json:"from"`
	To        Role      `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
	Payload   any       `json:"payload,omitempty"`
}

type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionRejected SuggestionStatus = "rejected"
)

// Suggestion is a note from one role addressed to another. Pending suggestions
// block the addressed role's precondition check until resolved.
type Suggestion struct {
	ID        int64            `json:"id"`
	From      Role             `json:"from"`
	For       Role             `json:"for"`
	Timestamp time.Time        `json:"timestamp"`
	Text      string           `json:"text"`
	Context   string           `json:"context,omitempty"`
	Status    SuggestionStatus `json:"status"`
}

// DraftVersion is one entry of the append-only draft history.
// Version is the 1-based position in the log.
type DraftVersion struct {
	Version   int            `json:"version"`
	Content   string         `json:"content"`
	Subject   string         `json:"subject"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  DraftMetadata  `json:"metadata"`
	Feedback  *DraftFeedback `json:"feedback,omitempty"`
}

// DraftMetadata describes how a draft was produced.
type DraftMetadata struct {
	Style                  string             `json:"style"`
	Tone                   string             `json:"tone"`
	WordCount              int                `json:"word_count"`
	Goals                  []string           `json:"goals,omitempty"`
	ReferencedDocuments    []int64            `json:"referenced_documents,omitempty"`
	Strategy               string             `json:"strategy,omitempty"`
	PersonalizationFactors []string           `json:"personalization_factors,omitempty"`
	StyleAdherence         map[string]float64 `json:"style_adherence,omitempty"`
}

// DraftFeedback is the reviewer's verdict attached to a draft version.
type DraftFeedback struct {
	Score        float64   `json:"score"`
	Suggestions  []string  `json:"suggestions,omitempty"`
	Improvements []string  `json:"improvements,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ResearchFindings is set at most once per research phase.
type ResearchFindings struct {
	Documents       []Document        `json:"documents"`
	Angle           Angle             `json:"angle"`
	RelevanceScores map[int64]float64 `json:"relevance_scores,omitempty"`
}

// Performance accumulates counters across a run. Updates merge; unspecified
// fields are left untouched.
type Performance struct {
	ResearchTime   time.Duration `json:"research_time"`
	WritingTime    time.Duration `json:"writing_time"`
	ReviewTime     time.Duration `json:"review_time"`
	TotalRevisions int           `json:"total_revisions"`
	QualityScores  []float64     `json:"quality_scores,omitempty"`
}

// Memory holds everything roles accumulate during a run.
type Memory struct {
	Decisions        []Decision        `json:"decisions"`
	ResearchFindings *ResearchFindings `json:"research_findings,omitempty"`
	DraftHistory     []DraftVersion    `json:"draft_history"`
	Performance      Performance       `json:"performance"`
}

// Collaboration holds the cross-role logs.
type Collaboration struct {
	Handoffs    []Handoff    `json:"handoffs"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Run is the record of one end-to-end generation attempt. It is exclusively
// owned by the orchestrator for the attempt's lifetime and mutated only through
// the run-state store.
type Run struct {
	ID           int64               `json:"id"`
	Sender       SenderProfile       `json:"sender"`
	Recipient    RecipientProfile    `json:"recipient"`
	Organization OrganizationProfile `json:"organization"`
	CreatedAt    time.Time           `json:"created_at"`

	State         RunState      `json:"state"`
	Memory        Memory        `json:"memory"`
	Collaboration Collaboration `json:"collaboration"`

	// ReviewAttempts counts completed reviewer verdicts; passed to the
	// reviewer as revisionCount on each invocation.
	ReviewAttempts int `json:"review_attempts"`
}
