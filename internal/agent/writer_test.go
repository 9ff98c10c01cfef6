package agent_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"scribehq.app/scribe/common/llm"
	"scribehq.app/scribe/internal/agent"
	"scribehq.app/scribe/internal/model"
	"scribehq.app/scribe/internal/runstate"
)

var _ = Describe("Writer", func() {
	var (
		ctx   context.Context
		state *runstate.Store
		chat  *mockLLM
	)

	docs := []model.Document{
		{ID: 11, Title: "Acme partners with Globex", Category: model.CategoryPartnership, PublishedAt: time.Now().Add(-24 * time.Hour)},
		{ID: 10, Title: "Acme hires new CTO", Category: model.CategoryLeadership, PublishedAt: time.Now().Add(-48 * time.Hour)},
	}
	angle := model.Angle{Category: model.CategoryPartnership, Theme: "recent partnership"}

	// seedWriting puts the run where the writer finds it after research:
	// findings set, handoff recorded, phase writing.
	seedWriting := func(state *runstate.Store) {
		Expect(state.SetResearchFindings(docs, angle, nil)).To(Succeed())
		state.RecordHandoff(model.RoleResearcher, model.RoleWriter, "research complete",
			model.ResearchPayload{Documents: docs, Angle: angle})
		Expect(state.UpdatePhase(model.PhaseWriting, "", 0)).To(Succeed())
	}

	writerJSON := func(req llm.Request) (string, error) {
		switch req.SchemaName {
		case "document_selection":
			return `{"selected_indices":[0],"strategy":"open with the partnership","personalization_factors":["CTO role"]}`, nil
		case "message_body":
			return `{"body":"Hi Sam, congratulations on the Globex partnership. I lead partnerships at Scribe and think there is a natural fit between our teams. Would you be open to a short call next week?","tone_match":0.9,"personalization":0.8}`, nil
		case "subject_line":
			return `{"subject":"Congrats on the Globex partnership"}`, nil
		default:
			return "", fmt.Errorf("unexpected schema %s", req.SchemaName)
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		state = runstate.New(2,
			model.SenderProfile{Name: "Ana Ruiz", Title: "Head of Partnerships", Organization: "Scribe"},
			model.RecipientProfile{Name: "Sam Okafor", Title: "CTO", Organization: "Acme"},
			model.OrganizationProfile{Name: "Acme"},
		)
		seedWriting(state)
		chat = &mockLLM{chatFn: writerJSON}
	})

	It("appends a draft with full metadata and hands off to the reviewer", func() {
		err := agent.NewWriter(chat, state).Compose(ctx, model.Options{Goals: []string{"book a call"}})
		Expect(err).NotTo(HaveOccurred())

		draft, ok := state.LatestDraft()
		Expect(ok).To(BeTrue())
		Expect(draft.Version).To(Equal(1))
		Expect(draft.Subject).To(Equal("Congrats on the Globex partnership"))
		Expect(draft.Metadata.WordCount).To(BeNumerically(">", 20))
		Expect(draft.Metadata.Strategy).To(Equal("open with the partnership"))
		Expect(draft.Metadata.ReferencedDocuments).To(Equal([]int64{11}))
		Expect(draft.Metadata.Goals).To(Equal([]string{"book a call"}))
		Expect(draft.Metadata.StyleAdherence).To(HaveKeyWithValue("tone_match", 0.9))

		handoff, ok := state.LatestHandoff()
		Expect(ok).To(BeTrue())
		Expect(handoff.To).To(Equal(model.RoleReviewer))
		payload, isReview := handoff.Payload.(model.ReviewPayload)
		Expect(isReview).To(BeTrue())
		Expect(payload.RevisionCount).To(BeZero())
		Expect(payload.Draft.Content).To(Equal(draft.Content))

		Expect(state.Phase()).To(Equal(model.PhaseReview))
	})

	Describe("style and tone", func() {
		It("defaults to formal and direct for senior recipients", func() {
			Expect(agent.NewWriter(chat, state).Compose(ctx, model.Options{})).To(Succeed())

			draft, _ := state.LatestDraft()
			Expect(draft.Metadata.Style).To(Equal("formal"))
			Expect(draft.Metadata.Tone).To(Equal("direct"))
		})

		It("defaults to professional and friendly otherwise", func() {
			state = runstate.New(3,
				model.SenderProfile{Name: "Ana Ruiz"},
				model.RecipientProfile{Name: "Sam Okafor", Title: "Software Engineer", Organization: "Acme"},
				model.OrganizationProfile{Name: "Acme"},
			)
			seedWriting(state)

			Expect(agent.NewWriter(chat, state).Compose(ctx, model.Options{})).To(Succeed())

			draft, _ := state.LatestDraft()
			Expect(draft.Metadata.Style).To(Equal("professional"))
			Expect(draft.Metadata.Tone).To(Equal("friendly"))
		})

		It("lets caller options override the derived default", func() {
			err := agent.NewWriter(chat, state).Compose(ctx, model.Options{Style: "casual", Tone: "playful"})
			Expect(err).NotTo(HaveOccurred())

			draft, _ := state.LatestDraft()
			Expect(draft.Metadata.Style).To(Equal("casual"))
			Expect(draft.Metadata.Tone).To(Equal("playful"))
		})

		It("adopts the majority style among prior well-scored drafts", func() {
			for i := 0; i < 2; i++ {
				d, err := state.AddDraftVersion("prior", "s", model.DraftMetadata{Style: "casual", Tone: "warm"})
				Expect(err).NotTo(HaveOccurred())
				Expect(state.RecordFeedback(d.Version, model.DraftFeedback{Score: 90})).To(Succeed())
			}
			d, err := state.AddDraftVersion("prior", "s", model.DraftMetadata{Style: "formal", Tone: "direct"})
			Expect(err).NotTo(HaveOccurred())
			Expect(state.RecordFeedback(d.Version, model.DraftFeedback{Score: 45})).To(Succeed())

			Expect(agent.NewWriter(chat, state).Compose(ctx, model.Options{})).To(Succeed())

			draft, _ := state.LatestDraft()
			Expect(draft.Metadata.Style).To(Equal("casual"))
			Expect(draft.Metadata.Tone).To(Equal("warm"))
		})
	})

	It("fails fast when the handoff did not come from the expected role", func() {
		state.RecordHandoff(model.RoleReviewer, model.RoleWriter, "out of order",
			model.ResearchPayload{Documents: docs, Angle: angle})

		err := agent.NewWriter(chat, state).Compose(ctx, model.Options{})
		Expect(err).To(MatchError(ContainSubstring("unexpected handoff")))
		Expect(agent.IsFatal(err)).To(BeTrue())
	})

	It("accepts the reviewer's handoff in the revision phase", func() {
		Expect(state.UpdatePhase(model.PhaseReview, "", 0)).To(Succeed())
		Expect(state.UpdatePhase(model.PhaseRevision, "", 0)).To(Succeed())
		state.RecordHandoff(model.RoleReviewer, model.RoleWriter, "revision requested",
			model.ResearchPayload{Documents: docs, Angle: angle})

		err := agent.NewWriter(chat, state).Compose(ctx, model.Options{})
		Expect(err).NotTo(HaveOccurred())

		// Handoff to the reviewer nudges revision back to review.
		Expect(state.Phase()).To(Equal(model.PhaseReview))
	})

	It("fails fast while suggestions addressed to the writer are pending", func() {
		state.AddSuggestion(model.RoleReviewer, model.RoleWriter, "shorten the draft", "")

		err := agent.NewWriter(chat, state).Compose(ctx, model.Options{})
		Expect(err).To(MatchError(ContainSubstring("pending suggestions")))
		Expect(agent.IsFatal(err)).To(BeTrue())
	})

	Context("fallback", func() {
		It("produces a generic draft when generation fails", func() {
			chat.chatFn = func(_ llm.Request) (string, error) {
				return "", fmt.Errorf("inference unavailable")
			}

			err := agent.NewWriter(chat, state).Compose(ctx, model.Options{})
			Expect(err).NotTo(HaveOccurred())

			draft, ok := state.LatestDraft()
			Expect(ok).To(BeTrue())
			Expect(draft.Content).To(ContainSubstring("Sam Okafor"))
			Expect(draft.Content).To(ContainSubstring("Ana Ruiz"))
			Expect(draft.Metadata.ReferencedDocuments).To(BeEmpty())

			_, hasError := state.CurrentError()
			Expect(hasError).To(BeFalse())

			handoff, _ := state.LatestHandoff()
			Expect(handoff.To).To(Equal(model.RoleReviewer))
		})
	})
})
