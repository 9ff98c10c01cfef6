// Package pipeline sequences the three roles through the run state machine:
// research, writing, then a bounded review/revision loop ending in complete
// or failed.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"scribehq.app/scribe/common/llm"
	"scribehq.app/scribe/common/logger"
	"scribehq.app/scribe/internal/agent"
	"scribehq.app/scribe/internal/model"
	"scribehq.app/scribe/internal/news"
	"scribehq.app/scribe/internal/runstate"
	"scribehq.app/scribe/internal/store"
)

// maxReviewIterations bounds the review/revision loop. Hard bound, not
// caller-configurable.
const maxReviewIterations = 3

// Clients groups the per-role inference clients. Roles may share one client
// or use differently sized models.
type Clients struct {
	Researcher llm.Client
	Writer     llm.Client
	Reviewer   llm.Client
}

type Pipeline struct {
	clients Clients
	search  news.Searcher
	runs    store.RunStore
}

func New(clients Clients, search news.Searcher, runs store.RunStore) *Pipeline {
	return &Pipeline{
		clients: clients,
		search:  search,
		runs:    runs,
	}
}

// Generate runs one end-to-end generation attempt under a caller-assigned run
// ID and always returns a well-formed outcome; failures of any kind surface as
// a failed outcome with a human-readable reason, never as an error or panic.
func (p *Pipeline) Generate(ctx context.Context, runID int64, sender model.SenderProfile, recipient model.RecipientProfile, org model.OrganizationProfile, options model.Options) (outcome model.Outcome) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RunID:     logger.Ptr(runID),
		Component: "scribe.pipeline",
	})

	state := runstate.New(runID, sender, recipient, org)

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "pipeline panicked", "panic", r)
			outcome = p.fail(ctx, state, fmt.Sprintf("internal error: %v", r))
		}
	}()

	slog.InfoContext(ctx, "run started",
		"recipient", recipient.Name,
		"organization", org.Name)

	if err := p.runs.Create(ctx, state.Snapshot()); err != nil {
		slog.ErrorContext(ctx, "failed to persist new run", "error", err)
	}

	researchStart := time.Now()
	researcher := agent.NewResearcher(p.clients.Researcher, p.search, state)
	if err := researcher.Research(ctx); err != nil {
		return p.fail(ctx, state, err.Error())
	}
	state.UpdatePerformance(model.Performance{ResearchTime: time.Since(researchStart)})

	writer := agent.NewWriter(p.clients.Writer, state)
	reviewer := agent.NewReviewer(p.clients.Reviewer, state)

	goals := options.Goals
	var verdict agent.ReviewResult

	for iteration := 0; iteration < maxReviewIterations; iteration++ {
		opts := options
		opts.Goals = goals

		writeStart := time.Now()
		if err := writer.Compose(ctx, opts); err != nil {
			return p.fail(ctx, state, err.Error())
		}
		state.UpdatePerformance(model.Performance{WritingTime: time.Since(writeStart)})

		reviewStart := time.Now()
		result, err := reviewer.Review(ctx, nil)
		if err != nil {
			return p.fail(ctx, state, err.Error())
		}
		state.UpdatePerformance(model.Performance{ReviewTime: time.Since(reviewStart)})
		verdict = result

		if verdict.Approved {
			return p.complete(ctx, state, verdict)
		}

		if iteration == maxReviewIterations-1 {
			break
		}

		state.UpdatePerformance(model.Performance{TotalRevisions: 1})
		if top := p.resolveSuggestions(ctx, state); top != "" {
			goals = append(goals, "address reviewer feedback: "+top)
		}
		if err := state.UpdatePhase(model.PhaseRevision, "", 0); err != nil {
			return p.fail(ctx, state, err.Error())
		}
		slog.InfoContext(ctx, "revision requested",
			"iteration", iteration+1,
			"score", verdict.Score)
	}

	reason := fmt.Sprintf("draft rejected after %d revisions", maxReviewIterations)
	if len(verdict.Suggestions) > 0 {
		reason += ": " + strings.Join(verdict.Suggestions, "; ")
	}
	return p.fail(ctx, state, reason)
}

// resolveSuggestions accepts every suggestion pending for the writer (the
// revision goal carries them forward) and returns the top one.
func (p *Pipeline) resolveSuggestions(ctx context.Context, state *runstate.Store) string {
	pending := state.PendingSuggestions(model.RoleWriter)
	for _, s := range pending {
		if err := state.UpdateSuggestionStatus(s.ID, model.SuggestionAccepted); err != nil {
			slog.WarnContext(ctx, "failed to accept suggestion", "suggestion_id", s.ID, "error", err)
		}
	}
	if len(pending) == 0 {
		return ""
	}
	return pending[0].Text
}

func (p *Pipeline) complete(ctx context.Context, state *runstate.Store, verdict agent.ReviewResult) model.Outcome {
	if err := state.UpdatePhase(model.PhaseComplete, "", 1); err != nil {
		slog.ErrorContext(ctx, "failed to close run as complete", "error", err)
	}

	run := state.Snapshot()
	draft := run.Memory.DraftHistory[len(run.Memory.DraftHistory)-1]

	message := model.GeneratedMessage{
		Subject: draft.Subject,
		Body:    draft.Content,
		Score:   verdict.Score,
	}
	if findings := run.Memory.ResearchFindings; findings != nil {
		message.Angle = findings.Angle
		message.Documents = referencedDocuments(findings.Documents, draft.Metadata.ReferencedDocuments)
	}

	outcome := model.Outcome{
		RunID:     run.ID,
		Recipient: run.Recipient,
		CreatedAt: run.CreatedAt,
		Status:    model.OutcomeApproved,
		Messages:  []model.GeneratedMessage{message},
	}
	p.persist(ctx, run, outcome)

	slog.InfoContext(ctx, "run completed",
		"score", verdict.Score,
		"drafts", len(run.Memory.DraftHistory),
		"revisions", run.Memory.Performance.TotalRevisions)
	return outcome
}

func (p *Pipeline) fail(ctx context.Context, state *runstate.Store, reason string) model.Outcome {
	if err := state.UpdatePhase(model.PhaseFailed, "", 0); err != nil {
		slog.WarnContext(ctx, "failed to close run as failed", "error", err)
	}

	run := state.Snapshot()
	outcome := model.Outcome{
		RunID:        run.ID,
		Recipient:    run.Recipient,
		CreatedAt:    run.CreatedAt,
		Status:       model.OutcomeFailed,
		FailedReason: reason,
		Messages:     []model.GeneratedMessage{},
	}
	p.persist(ctx, run, outcome)

	slog.WarnContext(ctx, "run failed", "reason", reason)
	return outcome
}

func (p *Pipeline) persist(ctx context.Context, run model.Run, outcome model.Outcome) {
	if err := p.runs.SaveOutcome(ctx, run, outcome); err != nil {
		slog.ErrorContext(ctx, "failed to persist outcome", "error", err)
	}
}

// referencedDocuments filters findings to the documents the final draft
// actually cites; an empty reference list keeps all findings.
func referencedDocuments(docs []model.Document, ids []int64) []model.Document {
	if len(ids) == 0 {
		return docs
	}
	byID := make(map[int64]bool, len(ids))
	for _, docID := range ids {
		byID[docID] = true
	}
	var out []model.Document
	for _, d := range docs {
		if byID[d.ID] {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return docs
	}
	return out
}
