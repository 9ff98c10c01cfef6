package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"scribehq.app/scribe/internal/model"
	"scribehq.app/scribe/internal/store"
)

var _ = Describe("MemoryStore", func() {
	var (
		ctx context.Context
		s   store.RunStore
	)

	run := func(id int64) model.Run {
		return model.Run{
			ID:        id,
			Recipient: model.RecipientProfile{Name: "Sam Okafor"},
			CreatedAt: time.Now().UTC(),
		}
	}

	outcome := func(id int64, createdAt time.Time) model.Outcome {
		return model.Outcome{
			RunID:     id,
			Recipient: model.RecipientProfile{Name: "Sam Okafor"},
			CreatedAt: createdAt,
			Status:    model.OutcomeApproved,
			Messages:  []model.GeneratedMessage{{Subject: "hello"}},
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		s = store.NewMemoryStore()
	})

	It("rejects a duplicate run ID", func() {
		Expect(s.Create(ctx, run(1))).To(Succeed())
		Expect(s.Create(ctx, run(1))).To(MatchError(ContainSubstring("already exists")))
	})

	It("returns ErrNotFound before an outcome is saved", func() {
		Expect(s.Create(ctx, run(1))).To(Succeed())

		_, err := s.GetOutcome(ctx, 1)
		Expect(err).To(MatchError(store.ErrNotFound))

		got, err := s.GetRun(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Recipient.Name).To(Equal("Sam Okafor"))
	})

	It("round-trips a saved outcome", func() {
		Expect(s.Create(ctx, run(1))).To(Succeed())
		Expect(s.SaveOutcome(ctx, run(1), outcome(1, time.Now().UTC()))).To(Succeed())

		got, err := s.GetOutcome(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal(model.OutcomeApproved))
		Expect(got.Messages).To(HaveLen(1))
	})

	It("returns ErrNotFound for an unknown run", func() {
		_, err := s.GetRun(ctx, 404)
		Expect(err).To(MatchError(store.ErrNotFound))
	})

	It("lists recent outcomes newest first, bounded by the limit", func() {
		base := time.Now().UTC()
		for i := int64(1); i <= 3; i++ {
			Expect(s.Create(ctx, run(i))).To(Succeed())
			Expect(s.SaveOutcome(ctx, run(i), outcome(i, base.Add(time.Duration(i)*time.Minute)))).To(Succeed())
		}

		outcomes, err := s.ListRecent(ctx, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(outcomes).To(HaveLen(2))
		Expect(outcomes[0].RunID).To(Equal(int64(3)))
		Expect(outcomes[1].RunID).To(Equal(int64(2)))
	})
})
