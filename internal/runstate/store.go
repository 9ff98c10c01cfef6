// Package runstate holds the mutable record of a single generation run.
//
// Every mutation a role makes to shared run state goes through a Store method,
// never through direct field writes. The store serializes mutations with a
// run-scoped mutex, so a completed handoff is immediately visible to the next
// role that reads — there is no eventually-consistent window to wait out.
package runstate

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"scribehq.app/scribe/internal/model"
)

var (
	// ErrRunClosed is returned for mutations after a run reached a terminal phase.
	ErrRunClosed = errors.New("run is closed")

	// ErrFindingsAlreadySet is returned when research findings are set twice.
	ErrFindingsAlreadySet = errors.New("research findings already set")

	// ErrSuggestionNotFound is returned for status updates on unknown suggestions.
	ErrSuggestionNotFound = errors.New("suggestion not found")
)

// Store is the single-writer state handle for one run. One instance per run;
// nothing is shared across runs.
type Store struct {
	mu  sync.Mutex
	run model.Run

	nextSuggestionID int64
}

// New creates a run record in the research phase.
func New(id int64, sender model.SenderProfile, recipient model.RecipientProfile, org model.OrganizationProfile) *Store {
	return &Store{
		run: model.Run{
			ID:           id,
			Sender:       sender,
			Recipient:    recipient,
			Organization: org,
			CreatedAt:    time.Now().UTC(),
			State: model.RunState{
				Phase: model.PhaseResearch,
			},
		},
		nextSuggestionID: 1,
	}
}

// allowedTransitions is the phase state machine. Same-phase updates (sub-phase,
// progress) are always allowed; any non-terminal phase may fail.
var allowedTransitions = map[model.Phase][]model.Phase{
	model.PhaseResearch: {model.PhaseWriting, model.PhaseFailed},
	model.PhaseWriting:  {model.PhaseReview, model.PhaseFailed},
	model.PhaseReview:   {model.PhaseRevision, model.PhaseComplete, model.PhaseFailed},
	model.PhaseRevision: {model.PhaseReview, model.PhaseFailed},
}

func transitionAllowed(from, to model.Phase) bool {
	for _, p := range allowedTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// RecordDecision appends to the decision log. Side-effect only; decisions never
// influence control flow. No-op once the run is closed.
func (s *Store) RecordDecision(role model.Role, label, reasoning string, confidence float64, metadata map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run.State.Phase.Terminal() {
		return
	}

	s.run.Memory.Decisions = append(s.run.Memory.Decisions, model.Decision{
		Role:       role,
		Timestamp:  time.Now().UTC(),
		Label:      label,
		Reasoning:  reasoning,
		Confidence: clamp01(confidence),
		Metadata:   metadata,
	})
}

// UpdatePhase moves the run through the state machine, or updates sub-phase and
// progress within the current phase. Progress is monotonic within a phase and
// resets on phase entry.
func (s *Store) UpdatePhase(phase model.Phase, subPhase string, progress float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.run.State.Phase
	if current.Terminal() {
		return fmt.Errorf("transition %s -> %s: %w", current, phase, ErrRunClosed)
	}

	progress = clamp01(progress)

	if phase == current {
		if subPhase != "" {
			s.run.State.SubPhase = subPhase
		}
		if progress > s.run.State.Progress {
			s.run.State.Progress = progress
		}
		return nil
	}

	if !transitionAllowed(current, phase) {
		return fmt.Errorf("invalid phase transition %s -> %s", current, phase)
	}

	s.run.State.Phase = phase
	s.run.State.SubPhase = subPhase
	s.run.State.Progress = progress
	return nil
}

// RecordHandoff appends a handoff entry. The last entry is the authoritative
// record of who handed control to the acting role and with what payload.
func (s *Store) RecordHandoff(from, to model.Role, reason string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run.State.Phase.Terminal() {
		return
	}

	s.run.Collaboration.Handoffs = append(s.run.Collaboration.Handoffs, model.Handoff{
		From:      from,
		To:        to,
		Timestamp: time.Now().UTC(),
		Reason:    reason,
		Payload:   payload,
	})
}

// SetResearchFindings records the researcher's output. Findings are set at most
// once per run; a second call fails.
func (s *Store) SetResearchFindings(documents []model.Document, angle model.Angle, scores map[int64]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run.State.Phase.Terminal() {
		return ErrRunClosed
	}
	if s.run.Memory.ResearchFindings != nil {
		return ErrFindingsAlreadySet
	}

	s.run.Memory.ResearchFindings = &model.ResearchFindings{
		Documents:       append([]model.Document(nil), documents...),
		Angle:           angle,
		RelevanceScores: copyScores(scores),
	}
	return nil
}

// AddDraftVersion appends a draft to the history and returns it with its
// 1-based version assigned. History length never decreases.
func (s *Store) AddDraftVersion(content, subject string, metadata model.DraftMetadata) (model.DraftVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run.State.Phase.Terminal() {
		return model.DraftVersion{}, ErrRunClosed
	}

	draft := model.DraftVersion{
		Version:   len(s.run.Memory.DraftHistory) + 1,
		Content:   content,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
	s.run.Memory.DraftHistory = append(s.run.Memory.DraftHistory, draft)
	return draft, nil
}

// RecordFeedback attaches reviewer feedback to an existing draft version.
func (s *Store) RecordFeedback(version int, feedback model.DraftFeedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if version < 1 || version > len(s.run.Memory.DraftHistory) {
		return fmt.Errorf("draft version %d out of range (history length %d)", version, len(s.run.Memory.DraftHistory))
	}

	feedback.Timestamp = time.Now().UTC()
	s.run.Memory.DraftHistory[version-1].Feedback = &feedback
	return nil
}

// AddSuggestion appends a suggestion from one role addressed to another and
// returns its ID. New suggestions start pending.
func (s *Store) AddSuggestion(from, forRole model.Role, text, context string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSuggestionID
	s.nextSuggestionID++

	s.run.Collaboration.Suggestions = append(s.run.Collaboration.Suggestions, model.Suggestion{
		ID:        id,
		From:      from,
		For:       forRole,
		Timestamp: time.Now().UTC(),
		Text:      text,
		Context:   context,
		Status:    model.SuggestionPending,
	})
	return id
}

// UpdateSuggestionStatus resolves a pending suggestion.
func (s *Store) UpdateSuggestionStatus(id int64, status model.SuggestionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.run.Collaboration.Suggestions {
		if s.run.Collaboration.Suggestions[i].ID == id {
			s.run.Collaboration.Suggestions[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("suggestion %d: %w", id, ErrSuggestionNotFound)
}

// RecordError opens (or refreshes) the run's recoverable-failure window.
// Recovery attempts survive a refresh so the ceiling cannot be reset by
// re-recording the same failure.
func (s *Store) RecordError(role model.Role, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempts := 0
	if s.run.State.Error != nil {
		attempts = s.run.State.Error.RecoveryAttempts
	}
	s.run.State.Error = &model.RunError{
		Role:             role,
		Message:          message,
		Timestamp:        time.Now().UTC(),
		RecoveryAttempts: attempts,
	}
}

// IncrementRecoveryAttempts bumps the current error's attempt counter and
// returns the new value. Returns 0 when no error is recorded.
func (s *Store) IncrementRecoveryAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run.State.Error == nil {
		return 0
	}
	s.run.State.Error.RecoveryAttempts++
	return s.run.State.Error.RecoveryAttempts
}

// ClearError closes the recoverable-failure window after a successful recovery.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.State.Error = nil
}

// IncrementReviewAttempts bumps the count of completed reviewer verdicts and
// returns the new value.
func (s *Store) IncrementReviewAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.ReviewAttempts++
	return s.run.ReviewAttempts
}

// UpdatePerformance merges delta into the accumulated counters: durations and
// revision counts add, quality scores append. Zero-valued fields leave the
// existing counters untouched.
func (s *Store) UpdatePerformance(delta model.Performance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	perf := &s.run.Memory.Performance
	perf.ResearchTime += delta.ResearchTime
	perf.WritingTime += delta.WritingTime
	perf.ReviewTime += delta.ReviewTime
	perf.TotalRevisions += delta.TotalRevisions
	perf.QualityScores = append(perf.QualityScores, delta.QualityScores...)
}

// --- Read accessors ---------------------------------------------------------

// Snapshot returns a deep copy of the run record for reporting and persistence.
func (s *Store) Snapshot() model.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRun(s.run)
}

// Phase returns the current phase.
func (s *Store) Phase() model.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run.State.Phase
}

// LatestDraft returns the most recent draft version, if any.
func (s *Store) LatestDraft() (model.DraftVersion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.run.Memory.DraftHistory) == 0 {
		return model.DraftVersion{}, false
	}
	return s.run.Memory.DraftHistory[len(s.run.Memory.DraftHistory)-1], true
}

// DraftHistory returns a copy of the full draft history.
func (s *Store) DraftHistory() []model.DraftVersion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyDrafts(s.run.Memory.DraftHistory)
}

// LatestHandoff returns the most recent handoff entry, if any.
func (s *Store) LatestHandoff() (model.Handoff, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.run.Collaboration.Handoffs) == 0 {
		return model.Handoff{}, false
	}
	return s.run.Collaboration.Handoffs[len(s.run.Collaboration.Handoffs)-1], true
}

// AgentDecisions returns the decision log filtered to one role.
func (s *Store) AgentDecisions(role model.Role) []model.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Decision
	for _, d := range s.run.Memory.Decisions {
		if d.Role == role {
			out = append(out, d)
		}
	}
	return out
}

// CurrentError returns a copy of the active error, if any.
func (s *Store) CurrentError() (model.RunError, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run.State.Error == nil {
		return model.RunError{}, false
	}
	return *s.run.State.Error, true
}

// PendingSuggestions returns pending suggestions addressed to the given role.
func (s *Store) PendingSuggestions(forRole model.Role) []model.Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Suggestion
	for _, sg := range s.run.Collaboration.Suggestions {
		if sg.For == forRole && sg.Status == model.SuggestionPending {
			out = append(out, sg)
		}
	}
	return out
}

// Findings returns a copy of the research findings, if set.
func (s *Store) Findings() (model.ResearchFindings, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run.Memory.ResearchFindings == nil {
		return model.ResearchFindings{}, false
	}
	f := *s.run.Memory.ResearchFindings
	f.Documents = append([]model.Document(nil), f.Documents...)
	f.RelevanceScores = copyScores(f.RelevanceScores)
	return f, true
}

// ReviewAttempts returns the number of completed reviewer verdicts.
func (s *Store) ReviewAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run.ReviewAttempts
}

// --- helpers ----------------------------------------------------------------

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func copyScores(scores map[int64]float64) map[int64]float64 {
	if scores == nil {
		return nil
	}
	out := make(map[int64]float64, len(scores))
	for k, v := range scores {
		out[k] = v
	}
	return out
}

func copyDrafts(drafts []model.DraftVersion) []model.DraftVersion {
	out := append([]model.DraftVersion(nil), drafts...)
	for i := range out {
		if out[i].Feedback != nil {
			fb := *out[i].Feedback
			out[i].Feedback = &fb
		}
	}
	return out
}

func copyRun(run model.Run) model.Run {
	out := run
	out.Memory.Decisions = append([]model.Decision(nil), run.Memory.Decisions...)
	out.Memory.DraftHistory = copyDrafts(run.Memory.DraftHistory)
	if run.Memory.ResearchFindings != nil {
		f := *run.Memory.ResearchFindings
		f.Documents = append([]model.Document(nil), f.Documents...)
		f.RelevanceScores = copyScores(f.RelevanceScores)
		out.Memory.ResearchFindings = &f
	}
	out.Memory.Performance.QualityScores = append([]float64(nil), run.Memory.Performance.QualityScores...)
	out.Collaboration.Handoffs = append([]model.Handoff(nil), run.Collaboration.Handoffs...)
	out.Collaboration.Suggestions = append([]model.Suggestion(nil), run.Collaboration.Suggestions...)
	if run.State.Error != nil {
		e := *run.State.Error
		out.State.Error = &e
	}
	return out
}
