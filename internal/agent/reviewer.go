package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"scribehq.app/scribe/common/llm"
	"scribehq.app/scribe/internal/model"
	"scribehq.app/scribe/internal/runstate"
)

// maxRevisions is the hard revision ceiling. At the ceiling the reviewer
// returns a deterministic conservative verdict without calling inference.
const maxRevisions = 3

// Criteria are the explicit quality requirements applied in the detailed pass.
type Criteria struct {
	MinWords         int
	MaxWords         int
	RequiredElements []string
	ToneDescriptors  []string
	ForbiddenTerms   []string
}

// DefaultCriteria returns the standard outreach quality bar.
func DefaultCriteria() Criteria {
	return Criteria{
		MinWords:         50,
		MaxWords:         250,
		RequiredElements: []string{"personalized opening", "specific reason for reaching out", "clear call to action"},
		ToneDescriptors:  []string{"respectful", "confident", "concise"},
		ForbiddenTerms:   []string{"to whom it may concern", "dear sir or madam", "synergy", "touch base"},
	}
}

// ReviewResult is the reviewer's verdict on the latest draft.
type ReviewResult struct {
	Approved        bool
	Score           float64
	Suggestions     []string
	ImprovedContent string
}

// Reviewer evaluates drafts against quality criteria.
type Reviewer struct {
	base
	llm llm.Client
}

func NewReviewer(client llm.Client, state *runstate.Store) *Reviewer {
	return &Reviewer{
		base: newBase(model.RoleReviewer, state, model.PhaseReview, model.PhaseRevision),
		llm:  client,
	}
}

// Review evaluates the draft handed off by the writer. A nil criteria applies
// the default quality bar. Approval requires both a final score at or above
// the threshold and an empty suggestion list. At the revision ceiling a
// conservative verdict is returned without calling inference.
func (r *Reviewer) Review(ctx context.Context, criteria *Criteria) (ReviewResult, error) {
	ctx = r.withRoleContext(ctx, "scribe.agent.reviewer")

	if err := r.canProceed(); err != nil {
		return ReviewResult{}, NewFatalError(err)
	}

	if r.state.ReviewAttempts() >= maxRevisions {
		slog.InfoContext(ctx, "revision ceiling reached, returning conservative verdict")
		return r.conservativeVerdict(ctx, "manual review required: revision limit reached"), nil
	}

	if criteria == nil {
		c := DefaultCriteria()
		criteria = &c
	}

	var result ReviewResult
	err := r.handleError(ctx, "review",
		func(ctx context.Context) error {
			verdict, reviewErr := r.review(ctx, *criteria)
			if reviewErr != nil {
				return reviewErr
			}
			result = verdict
			return nil
		},
		func(ctx context.Context) error {
			result = r.conservativeVerdict(ctx, "manual review required due to analysis failure")
			return nil
		},
	)
	if err != nil {
		return ReviewResult{}, err
	}
	return result, nil
}

func (r *Reviewer) review(ctx context.Context, criteria Criteria) (ReviewResult, error) {
	payload, err := validateHandoff[model.ReviewPayload](r.state, model.RoleWriter, model.RoleReviewer)
	if err != nil {
		return ReviewResult{}, NewFatalError(err)
	}

	phase := r.state.Phase()
	if err := r.state.UpdatePhase(phase, "quick_pass", 0.2); err != nil {
		return ReviewResult{}, NewFatalError(err)
	}

	quick, err := r.quickPass(ctx, payload)
	if err != nil {
		return ReviewResult{}, NewRecoverableError(fmt.Errorf("quick pass: %w", err))
	}
	slog.InfoContext(ctx, "quick pass completed", "score", quick.Score)

	if err := r.state.UpdatePhase(phase, "detailed_pass", 0.5); err != nil {
		return ReviewResult{}, NewFatalError(err)
	}

	run := r.state.Snapshot()
	detailed, err := r.detailedPass(ctx, payload, run, criteria)
	if err != nil {
		return ReviewResult{}, NewRecoverableError(fmt.Errorf("detailed pass: %w", err))
	}

	var improved string
	var improvements []string
	if detailed.Score < approvedScoreThreshold {
		if err := r.state.UpdatePhase(phase, "improvement_pass", 0.8); err != nil {
			return ReviewResult{}, NewFatalError(err)
		}
		improved, improvements, err = r.improvementPass(ctx, payload, detailed.Suggestions)
		if err != nil {
			return ReviewResult{}, NewRecoverableError(fmt.Errorf("improvement pass: %w", err))
		}
	}

	// Final validation: reward an established successful pattern by boosting
	// the tone and personalization sub-scores.
	if hasPriorApprovedDraft(run, payload.Draft.Version) {
		detailed.ToneScore = boost(detailed.ToneScore)
		detailed.PersonalizationScore = boost(detailed.PersonalizationScore)
		r.state.RecordDecision(model.RoleReviewer, "pattern_reward",
			"boosted tone and personalization sub-scores for an established successful pattern", 0.6, nil)
	}

	finalScore := finalScore(detailed)
	result := ReviewResult{
		Approved:        finalScore >= approvedScoreThreshold && len(detailed.Suggestions) == 0,
		Score:           finalScore,
		Suggestions:     detailed.Suggestions,
		ImprovedContent: improved,
	}

	r.record(ctx, payload.Draft.Version, result, improvements)
	return result, nil
}

// conservativeVerdict is the degraded result used at the ceiling and as the
// fallback: never approved, zero score, a single suggestion.
func (r *Reviewer) conservativeVerdict(ctx context.Context, suggestion string) ReviewResult {
	result := ReviewResult{
		Approved:    false,
		Score:       0,
		Suggestions: []string{suggestion},
	}
	version := 0
	if draft, ok := r.state.LatestDraft(); ok {
		version = draft.Version
	}
	r.record(ctx, version, result, nil)
	return result
}

// record persists the verdict: feedback on the draft version, suggestions
// addressed to the writer, and the completed-review counter.
func (r *Reviewer) record(ctx context.Context, draftVersion int, result ReviewResult, improvements []string) {
	if draftVersion > 0 {
		if err := r.state.RecordFeedback(draftVersion, model.DraftFeedback{
			Score:        result.Score,
			Suggestions:  result.Suggestions,
			Improvements: improvements,
		}); err != nil {
			slog.WarnContext(ctx, "failed to record draft feedback", "version", draftVersion, "error", err)
		}
	}

	for _, s := range result.Suggestions {
		r.state.AddSuggestion(model.RoleReviewer, model.RoleWriter, s, "review verdict")
	}

	attempts := r.state.IncrementReviewAttempts()
	r.state.UpdatePerformance(model.Performance{QualityScores: []float64{result.Score}})

	slog.InfoContext(ctx, "review recorded",
		"approved", result.Approved,
		"score", result.Score,
		"suggestions", len(result.Suggestions),
		"review_attempts", attempts)

	if !result.Approved {
		var docs []model.Document
		var angle model.Angle
		if findings, ok := r.state.Findings(); ok {
			docs, angle = findings.Documents, findings.Angle
		}
		r.handoffTo(ctx, model.RoleWriter, "revision requested", model.ResearchPayload{
			Documents: docs,
			Angle:     angle,
		})
	}
}

type quickVerdict struct {
	Score          float64 `json:"score" jsonschema_description:"Coarse overall quality score, 0 to 100"`
	ToneScore      float64 `json:"tone_score" jsonschema_description:"Tone appropriateness, 0 to 100"`
	RelevanceScore float64 `json:"relevance_score" jsonschema_description:"Relevance to the recipient, 0 to 100"`
}

func (r *Reviewer) quickPass(ctx context.Context, payload model.ReviewPayload) (quickVerdict, error) {
	var result quickVerdict
	_, err := r.llm.Chat(ctx, llm.Request{
		SystemPrompt: "You are a fast first-pass reviewer of outreach messages. Score coarsely; a detailed review follows.",
		UserPrompt: fmt.Sprintf("Recipient: %s, %s at %s\n\nSubject: %s\n\n%s",
			payload.Recipient.Name, payload.Recipient.Title, payload.Recipient.Organization,
			payload.Draft.Subject, payload.Draft.Content),
		SchemaName:  "quick_verdict",
		Schema:      llm.GenerateSchema[quickVerdict](),
		MaxTokens:   256,
		Temperature: llm.Temp(0),
	}, &result)
	return result, err
}

type detailedVerdict struct {
	Score                float64  `json:"score" jsonschema_description:"Overall quality score, 0 to 100"`
	ToneScore            float64  `json:"tone_score" jsonschema_description:"Tone sub-score, 0 to 100"`
	PersonalizationScore float64  `json:"personalization_score" jsonschema_description:"Personalization sub-score, 0 to 100"`
	ClarityScore         float64  `json:"clarity_score" jsonschema_description:"Clarity sub-score, 0 to 100"`
	RelevanceScore       float64  `json:"relevance_score" jsonschema_description:"Relevance sub-score, 0 to 100"`
	Suggestions          []string `json:"suggestions" jsonschema_description:"Concrete revision suggestions; empty if none needed"`
}

func (r *Reviewer) detailedPass(ctx context.Context, payload model.ReviewPayload, run model.Run, criteria Criteria) (detailedVerdict, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Recipient: %s, %s at %s\n", payload.Recipient.Name, payload.Recipient.Title, payload.Recipient.Organization)
	fmt.Fprintf(&prompt, "Angle: %s\nRevision count: %d\n\n", payload.Angle.Theme, payload.RevisionCount)
	fmt.Fprintf(&prompt, "Criteria:\n- length between %d and %d words\n", criteria.MinWords, criteria.MaxWords)
	fmt.Fprintf(&prompt, "- required elements: %s\n", strings.Join(criteria.RequiredElements, ", "))
	fmt.Fprintf(&prompt, "- tone: %s\n", strings.Join(criteria.ToneDescriptors, ", "))
	fmt.Fprintf(&prompt, "- forbidden terms: %s\n", strings.Join(criteria.ForbiddenTerms, ", "))

	for _, d := range run.Memory.DraftHistory {
		if d.Version >= payload.Draft.Version || d.Feedback == nil {
			continue
		}
		fmt.Fprintf(&prompt, "\nPrior draft v%d scored %.0f; suggestions: %s\n",
			d.Version, d.Feedback.Score, strings.Join(d.Feedback.Suggestions, "; "))
	}

	fmt.Fprintf(&prompt, "\nSubject: %s\n\n%s", payload.Draft.Subject, payload.Draft.Content)

	var result detailedVerdict
	_, err := r.llm.Chat(ctx, llm.Request{
		SystemPrompt: "You are a rigorous reviewer of outreach messages. Apply every criterion. " +
			"Only leave the suggestion list empty when the draft needs no changes at all.",
		UserPrompt:  prompt.String(),
		SchemaName:  "detailed_verdict",
		Schema:      llm.GenerateSchema[detailedVerdict](),
		MaxTokens:   1024,
		Temperature: llm.Temp(0),
	}, &result)
	return result, err
}

type improvement struct {
	ImprovedContent string   `json:"improved_content" jsonschema_description:"The rewritten draft body"`
	Improvements    []string `json:"improvements" jsonschema_description:"Itemized reasoning for each change"`
}

func (r *Reviewer) improvementPass(ctx context.Context, payload model.ReviewPayload, suggestions []string) (string, []string, error) {
	var result improvement
	_, err := r.llm.Chat(ctx, llm.Request{
		SystemPrompt: "You rewrite outreach drafts to address review suggestions while preserving intent and voice.",
		UserPrompt: fmt.Sprintf("Suggestions:\n- %s\n\nDraft:\n%s",
			strings.Join(suggestions, "\n- "), payload.Draft.Content),
		SchemaName:  "draft_improvement",
		Schema:      llm.GenerateSchema[improvement](),
		MaxTokens:   2048,
		Temperature: llm.Temp(0.5),
	}, &result)
	if err != nil {
		return "", nil, err
	}
	return result.ImprovedContent, result.Improvements, nil
}

func hasPriorApprovedDraft(run model.Run, currentVersion int) bool {
	for _, d := range run.Memory.DraftHistory {
		if d.Version < currentVersion && d.Feedback != nil && d.Feedback.Score >= approvedScoreThreshold {
			return true
		}
	}
	return false
}

func boost(score float64) float64 {
	boosted := score * 1.1
	if boosted > 100 {
		return 100
	}
	return boosted
}

// finalScore averages the detailed sub-scores so the pattern-reward boost can
// move the verdict.
func finalScore(v detailedVerdict) float64 {
	return (v.ToneScore + v.PersonalizationScore + v.ClarityScore + v.RelevanceScore) / 4
}
