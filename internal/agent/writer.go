package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"scribehq.app/scribe/common/llm"
	"scribehq.app/scribe/common/logger"
	"scribehq.app/scribe/internal/model"
	"scribehq.app/scribe/internal/runstate"
)

const approvedScoreThreshold = 80

// Writer composes message drafts from research findings.
type Writer struct {
	base
	llm llm.Client
}

func NewWriter(client llm.Client, state *runstate.Store) *Writer {
	return &Writer{
		base: newBase(model.RoleWriter, state, model.PhaseWriting, model.PhaseRevision),
		llm:  client,
	}
}

// Compose generates a draft and hands it to the reviewer. In the writing phase
// it consumes the researcher's handoff; in the revision phase it consumes the
// reviewer's. Caller-supplied style and tone in options override the derived
// defaults; options goals flow into the prompt and metadata.
func (w *Writer) Compose(ctx context.Context, options model.Options) error {
	ctx = w.withRoleContext(ctx, "scribe.agent.writer")

	if err := w.canProceed(); err != nil {
		return NewFatalError(err)
	}

	return w.handleError(ctx, "compose",
		func(ctx context.Context) error { return w.compose(ctx, options) },
		func(ctx context.Context) error { return w.fallbackCompose(ctx, options) },
	)
}

func (w *Writer) compose(ctx context.Context, options model.Options) error {
	phase := w.state.Phase()

	expectedFrom := model.RoleResearcher
	if phase == model.PhaseRevision {
		expectedFrom = model.RoleReviewer
	}
	payload, err := validateHandoff[model.ResearchPayload](w.state, expectedFrom, model.RoleWriter)
	if err != nil {
		return NewFatalError(err)
	}

	run := w.state.Snapshot()
	style, tone := w.deriveStyleTone(run, options)

	if err := w.state.UpdatePhase(phase, "selecting_documents", 0.2); err != nil {
		return NewFatalError(err)
	}

	selected, strategy, factors, err := w.selectDocuments(ctx, payload, run, style, tone)
	if err != nil {
		return NewRecoverableError(fmt.Errorf("selecting documents: %w", err))
	}

	if err := w.state.UpdatePhase(phase, "drafting", 0.5); err != nil {
		return NewFatalError(err)
	}

	body, adherence, err := w.generateBody(ctx, run, payload.Angle, selected, strategy, style, tone, options.Goals)
	if err != nil {
		return NewRecoverableError(fmt.Errorf("generating body: %w", err))
	}

	subject, err := w.generateSubject(ctx, run, payload.Angle, body, tone)
	if err != nil {
		return NewRecoverableError(fmt.Errorf("generating subject: %w", err))
	}

	docIDs := make([]int64, len(selected))
	for i, d := range selected {
		docIDs[i] = d.ID
	}

	draft, err := w.state.AddDraftVersion(body, subject, model.DraftMetadata{
		Style:                  style,
		Tone:                   tone,
		WordCount:              len(strings.Fields(body)),
		Goals:                  options.Goals,
		ReferencedDocuments:    docIDs,
		Strategy:               strategy,
		PersonalizationFactors: factors,
		StyleAdherence:         adherence,
	})
	if err != nil {
		return NewFatalError(err)
	}

	slog.InfoContext(ctx, "draft composed",
		"version", draft.Version,
		"word_count", draft.Metadata.WordCount,
		"subject", logger.Truncate(subject, 80))

	w.handoff(ctx, draft, payload, run.Recipient)
	return nil
}

// fallbackCompose produces a short generic professional draft with no document
// integration and no inference call. The most recent prior draft, if any,
// anchors the register.
func (w *Writer) fallbackCompose(ctx context.Context, options model.Options) error {
	run := w.state.Snapshot()

	style, tone := "professional", "friendly"
	if prior, ok := w.state.LatestDraft(); ok {
		style, tone = prior.Metadata.Style, prior.Metadata.Tone
	}
	if options.Style != "" {
		style = options.Style
	}
	if options.Tone != "" {
		tone = options.Tone
	}

	body := genericDraftBody(run.Sender, run.Recipient)
	subject := fmt.Sprintf("Reaching out from %s", run.Sender.Organization)
	if run.Sender.Organization == "" {
		subject = fmt.Sprintf("Hello from %s", run.Sender.Name)
	}

	w.state.RecordDecision(model.RoleWriter, "fallback_draft",
		"primary composition failed, generated a generic draft without document integration", 0.4, nil)

	draft, err := w.state.AddDraftVersion(body, subject, model.DraftMetadata{
		Style:     style,
		Tone:      tone,
		WordCount: len(strings.Fields(body)),
		Goals:     options.Goals,
	})
	if err != nil {
		return err
	}

	var angle model.Angle
	var docs []model.Document
	if findings, ok := w.state.Findings(); ok {
		angle, docs = findings.Angle, findings.Documents
	}
	w.handoff(ctx, draft, model.ResearchPayload{Documents: docs, Angle: angle}, run.Recipient)
	return nil
}

func (w *Writer) handoff(ctx context.Context, draft model.DraftVersion, payload model.ResearchPayload, recipient model.RecipientProfile) {
	w.handoffTo(ctx, model.RoleReviewer, "draft ready for review", model.ReviewPayload{
		Draft:         draft,
		Recipient:     recipient,
		Documents:     payload.Documents,
		Angle:         payload.Angle,
		RevisionCount: w.state.ReviewAttempts(),
	})
}

// deriveStyleTone picks style and tone: the majority among prior drafts that
// scored at or above the approval threshold wins; otherwise recipient
// seniority decides. Explicit options always override.
func (w *Writer) deriveStyleTone(run model.Run, options model.Options) (string, string) {
	style, tone := "professional", "friendly"
	if run.Recipient.Senior() {
		style, tone = "formal", "direct"
	}

	styleVotes := map[string]int{}
	toneVotes := map[string]int{}
	for _, d := range run.Memory.DraftHistory {
		if d.Feedback == nil || d.Feedback.Score < approvedScoreThreshold {
			continue
		}
		styleVotes[d.Metadata.Style]++
		toneVotes[d.Metadata.Tone]++
	}
	if s := majority(styleVotes); s != "" {
		style = s
	}
	if t := majority(toneVotes); t != "" {
		tone = t
	}

	reason := "derived from recipient seniority"
	if len(styleVotes) > 0 {
		reason = "adopted majority style among prior well-scored drafts"
	}

	if options.Style != "" {
		style = options.Style
		reason = "caller-supplied style override"
	}
	if options.Tone != "" {
		tone = options.Tone
	}

	w.state.RecordDecision(model.RoleWriter, "style_selected", reason, 0.8,
		map[string]any{"style": style, "tone": tone})
	return style, tone
}

func majority(votes map[string]int) string {
	best, bestCount := "", 0
	for v, c := range votes {
		if c > bestCount {
			best, bestCount = v, c
		}
	}
	return best
}

type documentSelection struct {
	SelectedIndices        []int    `json:"selected_indices" jsonschema_description:"Zero-based indices of the documents to reference, most relevant first"`
	Strategy               string   `json:"strategy" jsonschema_description:"Short narrative strategy for the message"`
	PersonalizationFactors []string `json:"personalization_factors" jsonschema_description:"Concrete recipient-specific details the draft should use"`
}

func (w *Writer) selectDocuments(ctx context.Context, payload model.ResearchPayload, run model.Run, style, tone string) ([]model.Document, string, []string, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Recipient: %s, %s at %s\n", run.Recipient.Name, run.Recipient.Title, run.Recipient.Organization)
	fmt.Fprintf(&prompt, "Angle: %s\nStyle: %s, tone: %s\n\nDocuments:\n", payload.Angle.Theme, style, tone)
	for i, d := range payload.Documents {
		fmt.Fprintf(&prompt, "%d. [%s] %s — %s\n", i, d.Category, d.Title, d.Summary)
	}

	var result documentSelection
	_, err := w.llm.Chat(ctx, llm.Request{
		SystemPrompt: "You plan a personalized outreach message. Pick at most three documents worth referencing " +
			"and outline a narrative strategy.",
		UserPrompt:  prompt.String(),
		SchemaName:  "document_selection",
		Schema:      llm.GenerateSchema[documentSelection](),
		MaxTokens:   1024,
		Temperature: llm.Temp(0.3),
	}, &result)
	if err != nil {
		return nil, "", nil, err
	}

	var selected []model.Document
	for _, idx := range result.SelectedIndices {
		if idx >= 0 && idx < len(payload.Documents) {
			selected = append(selected, payload.Documents[idx])
		}
	}
	if len(selected) == 0 {
		selected = payload.Documents[:min(3, len(payload.Documents))]
	}

	w.state.RecordDecision(model.RoleWriter, "documents_selected", result.Strategy, 0.7,
		map[string]any{"count": len(selected)})
	return selected, result.Strategy, result.PersonalizationFactors, nil
}

type bodyDraft struct {
	Body            string  `json:"body" jsonschema_description:"The full message body, plain text"`
	ToneMatch       float64 `json:"tone_match" jsonschema_description:"Self-assessed adherence to the requested tone, 0 to 1"`
	Personalization float64 `json:"personalization" jsonschema_description:"Self-assessed degree of personalization, 0 to 1"`
}

func (w *Writer) generateBody(ctx context.Context, run model.Run, angle model.Angle, docs []model.Document, strategy, style, tone string, goals []string) (string, map[string]float64, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "From: %s (%s, %s)\n", run.Sender.Name, run.Sender.Title, run.Sender.Organization)
	fmt.Fprintf(&prompt, "To: %s (%s, %s)\n", run.Recipient.Name, run.Recipient.Title, run.Recipient.Organization)
	fmt.Fprintf(&prompt, "Angle: %s\nStrategy: %s\nStyle: %s, tone: %s\n", angle.Theme, strategy, style, tone)
	if len(goals) > 0 {
		fmt.Fprintf(&prompt, "Goals: %s\n", strings.Join(goals, "; "))
	}
	prompt.WriteString("\nReference material:\n")
	for _, d := range docs {
		fmt.Fprintf(&prompt, "- %s: %s\n", d.Title, d.Summary)
	}
	if feedback := latestFeedback(run); feedback != nil && len(feedback.Suggestions) > 0 {
		fmt.Fprintf(&prompt, "\nAddress this review feedback:\n- %s\n", strings.Join(feedback.Suggestions, "\n- "))
	}

	var result bodyDraft
	_, err := w.llm.Chat(ctx, llm.Request{
		SystemPrompt: "You write concise, personalized outreach messages. Reference the material naturally; " +
			"never fabricate facts about the recipient.",
		UserPrompt:  prompt.String(),
		SchemaName:  "message_body",
		Schema:      llm.GenerateSchema[bodyDraft](),
		MaxTokens:   2048,
		Temperature: llm.Temp(0.7),
	}, &result)
	if err != nil {
		return "", nil, err
	}
	if result.Body == "" {
		return "", nil, fmt.Errorf("empty message body")
	}

	return result.Body, map[string]float64{
		"tone_match":      result.ToneMatch,
		"personalization": result.Personalization,
	}, nil
}

type subjectLine struct {
	Subject string `json:"subject" jsonschema_description:"A short, specific subject line"`
}

func (w *Writer) generateSubject(ctx context.Context, run model.Run, angle model.Angle, body, tone string) (string, error) {
	var result subjectLine
	_, err := w.llm.Chat(ctx, llm.Request{
		SystemPrompt: "You write email subject lines. Keep it under ten words, specific, no clickbait.",
		UserPrompt: fmt.Sprintf("Recipient: %s at %s\nAngle: %s\nTone: %s\n\nMessage body:\n%s",
			run.Recipient.Name, run.Recipient.Organization, angle.Theme, tone, logger.Truncate(body, 1500)),
		SchemaName:  "subject_line",
		Schema:      llm.GenerateSchema[subjectLine](),
		MaxTokens:   128,
		Temperature: llm.Temp(0.7),
	}, &result)
	if err != nil {
		return "", err
	}
	if result.Subject == "" {
		return "", fmt.Errorf("empty subject line")
	}
	return result.Subject, nil
}

func latestFeedback(run model.Run) *model.DraftFeedback {
	for i := len(run.Memory.DraftHistory) - 1; i >= 0; i-- {
		if fb := run.Memory.DraftHistory[i].Feedback; fb != nil {
			return fb
		}
	}
	return nil
}

func genericDraftBody(sender model.SenderProfile, recipient model.RecipientProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", recipient.Name)
	if recipient.Title != "" && recipient.Organization != "" {
		fmt.Fprintf(&b, "I came across your work as %s at %s and wanted to reach out directly. ",
			recipient.Title, recipient.Organization)
	} else if recipient.Organization != "" {
		fmt.Fprintf(&b, "I've been following %s and wanted to reach out directly. ", recipient.Organization)
	} else {
		b.WriteString("I wanted to reach out directly. ")
	}
	b.WriteString("I'd value a short conversation about how our teams might work together. ")
	b.WriteString("Would you be open to a brief call in the coming weeks?\n\n")
	fmt.Fprintf(&b, "Best regards,\n%s", sender.Name)
	if sender.Title != "" {
		fmt.Fprintf(&b, "\n%s", sender.Title)
	}
	if sender.Organization != "" {
		fmt.Fprintf(&b, ", %s", sender.Organization)
	}
	return b.String()
}
