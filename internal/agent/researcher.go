package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"scribehq.app/scribe/common/llm"
	"scribehq.app/scribe/internal/model"
	"scribehq.app/scribe/internal/news"
	"scribehq.app/scribe/internal/runstate"
)

// recencyWindow drops documents older than six months. Stale news reads as
// out of touch in outreach, so older results are silently discarded.
const recencyWindow = 6 * 30 * 24 * time.Hour

// ErrNoDocuments indicates research surfaced nothing recent to write from.
var ErrNoDocuments = errors.New("no relevant news articles found")

// anglesByCategory maps the top-ranked document's category to the narrative
// theme the writer frames the message around.
var anglesByCategory = map[model.Category]string{
	model.CategoryPartnership: "congratulate on the recent partnership or investment and connect it to a collaboration opportunity",
	model.CategoryDevelopment: "highlight the recent product or technology development and relate it to shared goals",
	model.CategoryLeadership:  "reference the leadership or strategy news as an opening for a forward-looking conversation",
	model.CategoryAchievement: "acknowledge the recent achievement or milestone as the reason for reaching out now",
	model.CategoryOther:       "reference recent company news to show genuine familiarity",
}

// Researcher gathers and ranks reference documents for a run.
type Researcher struct {
	base
	llm    llm.Client
	search news.Searcher
}

func NewResearcher(client llm.Client, search news.Searcher, state *runstate.Store) *Researcher {
	return &Researcher{
		base:   newBase(model.RoleResearcher, state, model.PhaseResearch),
		llm:    client,
		search: search,
	}
}

// Research finds recent news about the run's organization, categorizes it,
// derives a narrative angle, persists the findings and hands off to the
// writer. On primary failure a broadened generic search runs once as fallback.
func (r *Researcher) Research(ctx context.Context) error {
	ctx = r.withRoleContext(ctx, "scribe.agent.researcher")

	if err := r.canProceed(); err != nil {
		return NewFatalError(err)
	}

	return r.handleError(ctx, "research", r.research, r.fallbackResearch)
}

func (r *Researcher) research(ctx context.Context) error {
	run := r.state.Snapshot()

	query := buildSearchQuery(run.Recipient, run.Organization)
	r.state.RecordDecision(model.RoleResearcher, "query_built",
		"combined organization name, industry and keywords into one search query", 0.9,
		map[string]any{"query": query})

	if err := r.state.UpdatePhase(model.PhaseResearch, "searching", 0.1); err != nil {
		return NewFatalError(err)
	}

	docs, err := r.search.Search(ctx, query)
	if err != nil {
		return NewRecoverableError(fmt.Errorf("searching news: %w", err))
	}

	docs = filterRecent(docs, time.Now())
	slog.InfoContext(ctx, "search results filtered", "query", query, "recent_documents", len(docs))
	if len(docs) == 0 {
		return NewRecoverableError(fmt.Errorf("%w for query %q", ErrNoDocuments, query))
	}

	if err := r.state.UpdatePhase(model.PhaseResearch, "categorizing", 0.5); err != nil {
		return NewFatalError(err)
	}

	docs, scores, err := r.categorize(ctx, docs, run.Organization)
	if err != nil {
		return NewRecoverableError(fmt.Errorf("categorizing documents: %w", err))
	}
	if len(docs) == 0 {
		return NewFatalError(fmt.Errorf("no documents carry a valid category"))
	}

	return r.finish(ctx, docs, scores)
}

// fallbackResearch broadens to a generic "{organization} news" search with no
// inference call; every surviving document is tagged "other".
func (r *Researcher) fallbackResearch(ctx context.Context) error {
	run := r.state.Snapshot()

	query := run.Organization.Name + " news"
	r.state.RecordDecision(model.RoleResearcher, "fallback_search",
		"primary research failed, broadening to a generic organization news query", 0.5,
		map[string]any{"query": query})

	docs, err := r.search.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("fallback search: %w", err)
	}

	docs = filterRecent(docs, time.Now())
	if len(docs) == 0 {
		return fmt.Errorf("%w for fallback query %q", ErrNoDocuments, query)
	}

	for i := range docs {
		docs[i].Category = model.CategoryOther
	}
	return r.finish(ctx, docs, nil)
}

// finish prioritizes, persists findings and hands off to the writer. Shared by
// the primary and fallback paths.
func (r *Researcher) finish(ctx context.Context, docs []model.Document, scores map[int64]float64) error {
	prioritize(docs)

	angle := model.Angle{
		Category: docs[0].Category,
		Theme:    anglesByCategory[docs[0].Category],
	}
	r.state.RecordDecision(model.RoleResearcher, "angle_derived",
		"angle follows the top-ranked document's category", 0.8,
		map[string]any{"category": string(angle.Category)})

	if err := r.state.SetResearchFindings(docs, angle, scores); err != nil {
		return NewFatalError(fmt.Errorf("persisting findings: %w", err))
	}
	if err := r.state.UpdatePhase(model.PhaseResearch, "complete", 1); err != nil {
		return NewFatalError(err)
	}

	r.handoffTo(ctx, model.RoleWriter, "research complete", model.ResearchPayload{
		Documents: docs,
		Angle:     angle,
	})
	return nil
}

type categorization struct {
	Assignments []categoryAssignment `json:"assignments" jsonschema_description:"One entry per input document, by index"`
}

type categoryAssignment struct {
	Index     int     `json:"index" jsonschema_description:"Zero-based index of the document in the input list"`
	Category  string  `json:"category" jsonschema:"enum=partnership_investment,enum=development_innovation,enum=leadership_strategy,enum=achievement_milestone,enum=other"`
	Relevance float64 `json:"relevance" jsonschema_description:"Relevance to the outreach context, 0 to 1"`
}

// categorize assigns one of the five fixed categories to every document in a
// single inference call. Documents the model mislabels are dropped.
func (r *Researcher) categorize(ctx context.Context, docs []model.Document, org model.OrganizationProfile) ([]model.Document, map[int64]float64, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Organization: %s", org.Name)
	if org.Industry != "" {
		fmt.Fprintf(&prompt, " (industry: %s)", org.Industry)
	}
	prompt.WriteString("\n\nArticles:\n")
	for i, d := range docs {
		fmt.Fprintf(&prompt, "%d. %s — %s (%s)\n", i, d.Title, d.Summary, d.PublishedAt.Format("2006-01-02"))
	}

	var result categorization
	_, err := r.llm.Chat(ctx, llm.Request{
		SystemPrompt: "You categorize news articles about an organization for outreach research. " +
			"Assign each article exactly one category and a relevance score.",
		UserPrompt:  prompt.String(),
		SchemaName:  "document_categorization",
		Schema:      llm.GenerateSchema[categorization](),
		MaxTokens:   2048,
		Temperature: llm.Temp(0),
	}, &result)
	if err != nil {
		return nil, nil, err
	}

	scores := make(map[int64]float64)
	kept := make([]model.Document, 0, len(docs))
	for _, a := range result.Assignments {
		if a.Index < 0 || a.Index >= len(docs) {
			continue
		}
		category := model.Category(a.Category)
		if !category.Valid() {
			continue
		}
		doc := docs[a.Index]
		doc.Category = category
		kept = append(kept, doc)
		scores[doc.ID] = a.Relevance
	}

	r.state.RecordDecision(model.RoleResearcher, "documents_categorized",
		fmt.Sprintf("%d of %d documents received a valid category", len(kept), len(docs)), 0.7, nil)
	return kept, scores, nil
}

func buildSearchQuery(recipient model.RecipientProfile, org model.OrganizationProfile) string {
	parts := []string{org.Name}
	if org.Industry != "" {
		parts = append(parts, org.Industry)
	}
	parts = append(parts, org.Keywords...)
	if len(parts) == 1 && recipient.Organization != "" && recipient.Organization != org.Name {
		parts = append(parts, recipient.Organization)
	}
	return strings.Join(parts, " ")
}

func filterRecent(docs []model.Document, now time.Time) []model.Document {
	cutoff := now.Add(-recencyWindow)
	kept := docs[:0]
	for _, d := range docs {
		if d.PublishedAt.After(cutoff) {
			kept = append(kept, d)
		}
	}
	return kept
}

// prioritize sorts by category rank ascending, then publish date newest-first.
func prioritize(docs []model.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		ri, rj := docs[i].Category.Rank(), docs[j].Category.Rank()
		if ri != rj {
			return ri < rj
		}
		return docs[i].PublishedAt.After(docs[j].PublishedAt)
	})
}
