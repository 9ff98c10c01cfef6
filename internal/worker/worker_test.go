package worker_test

import (
	"context"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"scribehq.app/scribe/internal/model"
	"scribehq.app/scribe/internal/queue"
	"scribehq.app/scribe/internal/worker"
)

var _ = Describe("Worker", func() {
	var (
		ctx       context.Context
		consumer  *mockConsumer
		generator *mockGenerator
	)

	task := func(attempt int) queue.Message {
		return queue.Message{
			ID:      "1-0",
			RunID:   42,
			Attempt: attempt,
			Payload: queue.GeneratePayload{
				Sender:       model.SenderProfile{Name: "Ana Ruiz"},
				Recipient:    model.RecipientProfile{Name: "Sam Okafor"},
				Organization: model.OrganizationProfile{Name: "Acme"},
			},
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		consumer = &mockConsumer{}
		generator = &mockGenerator{}
	})

	Describe("ProcessMessage", func() {
		It("runs the generator and acks", func() {
			acked := 0
			consumer.ackFn = func(_ context.Context, msg queue.Message) error {
				acked++
				Expect(msg.ID).To(Equal("1-0"))
				return nil
			}

			w := worker.New(consumer, generator, worker.Config{MaxAttempts: 3})
			Expect(w.ProcessMessage(ctx, task(1))).To(Succeed())

			Expect(generator.calls).To(Equal([]int64{42}))
			Expect(acked).To(Equal(1))
		})

		It("acks even when the generation outcome is failed", func() {
			generator.generateFn = func(_ context.Context, runID int64, _ model.SenderProfile, _ model.RecipientProfile, _ model.OrganizationProfile, _ model.Options) model.Outcome {
				return model.Outcome{RunID: runID, Status: model.OutcomeFailed, FailedReason: "no relevant material"}
			}
			acked := 0
			consumer.ackFn = func(_ context.Context, _ queue.Message) error {
				acked++
				return nil
			}

			w := worker.New(consumer, generator, worker.Config{MaxAttempts: 3})
			Expect(w.ProcessMessage(ctx, task(1))).To(Succeed())
			Expect(acked).To(Equal(1))
		})
	})

	Describe("Run", func() {
		It("requeues a message whose processing panics, below the attempt bound", func() {
			var delivered atomic.Bool
			consumer.readFn = func(_ context.Context) ([]queue.Message, error) {
				if delivered.CompareAndSwap(false, true) {
					return []queue.Message{task(1)}, nil
				}
				return nil, nil
			}
			generator.generateFn = func(_ context.Context, _ int64, _ model.SenderProfile, _ model.RecipientProfile, _ model.OrganizationProfile, _ model.Options) model.Outcome {
				panic("generator exploded")
			}

			requeued := make(chan string, 1)
			consumer.requeueFn = func(_ context.Context, _ queue.Message, errMsg string) error {
				requeued <- errMsg
				return nil
			}

			w := worker.New(consumer, generator, worker.Config{MaxAttempts: 3})
			go func() {
				defer GinkgoRecover()
				_ = w.Run(ctx)
			}()

			Eventually(requeued).Should(Receive(ContainSubstring("panic: generator exploded")))
			w.Stop()
		})

		It("sends a message to the DLQ at the attempt bound", func() {
			var delivered atomic.Bool
			consumer.readFn = func(_ context.Context) ([]queue.Message, error) {
				if delivered.CompareAndSwap(false, true) {
					return []queue.Message{task(3)}, nil
				}
				return nil, nil
			}
			generator.generateFn = func(_ context.Context, _ int64, _ model.SenderProfile, _ model.RecipientProfile, _ model.OrganizationProfile, _ model.Options) model.Outcome {
				panic("generator exploded")
			}

			dlq := make(chan string, 1)
			consumer.dlqFn = func(_ context.Context, _ queue.Message, errMsg string) error {
				dlq <- errMsg
				return nil
			}

			w := worker.New(consumer, generator, worker.Config{MaxAttempts: 3})
			go func() {
				defer GinkgoRecover()
				_ = w.Run(ctx)
			}()

			Eventually(dlq).Should(Receive(ContainSubstring("panic")))
			w.Stop()
		})
	})
})
