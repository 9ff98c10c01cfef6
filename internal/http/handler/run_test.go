package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"scribehq.app/scribe/internal/http/handler"
	"scribehq.app/scribe/internal/http/router"
	"scribehq.app/scribe/internal/model"
	"scribehq.app/scribe/internal/queue"
	"scribehq.app/scribe/internal/store"
)

var _ = Describe("RunHandler", func() {
	var (
		engine    *gin.Engine
		generator *mockGenerator
		producer  *mockProducer
		runs      *mockRunStore
	)

	const adminKey = "test-admin-key"

	validBody := func() []byte {
		body, err := json.Marshal(map[string]any{
			"sender":       map[string]any{"name": "Ana Ruiz", "title": "Account Executive"},
			"recipient":    map[string]any{"name": "Sam Okafor", "title": "CTO"},
			"organization": map[string]any{"name": "Acme", "industry": "robotics"},
			"options":      map[string]any{"goals": []string{"book a call"}},
		})
		Expect(err).NotTo(HaveOccurred())
		return body
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		engine = gin.New()
		generator = &mockGenerator{}
		producer = &mockProducer{}
		runs = &mockRunStore{}
		h := handler.NewRunHandler(generator, producer, runs, adminKey)
		router.SetupRoutes(engine, h)
	})

	Describe("POST /api/v1/runs", func() {
		It("runs the pipeline synchronously and returns the outcome", func() {
			generator.generateFn = func(_ context.Context, runID int64, sender model.SenderProfile, recipient model.RecipientProfile, org model.OrganizationProfile, options model.Options) model.Outcome {
				Expect(sender.Name).To(Equal("Ana Ruiz"))
				Expect(recipient.Title).To(Equal("CTO"))
				Expect(org.Industry).To(Equal("robotics"))
				Expect(options.Goals).To(ConsistOf("book a call"))
				return model.Outcome{
					RunID:     runID,
					Recipient: recipient,
					CreatedAt: time.Now().UTC(),
					Status:    model.OutcomeApproved,
					Messages: []model.GeneratedMessage{{
						Subject: "Acme's new robotics line",
						Body:    "Hi Sam,",
						Angle:   model.Angle{Category: model.CategoryDevelopment, Theme: "innovation"},
						Score:   91,
					}},
				}
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewBuffer(validBody()))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["status"]).To(Equal("approved"))
			Expect(resp["recipient"]).To(Equal("Sam Okafor"))
			messages := resp["messages"].([]any)
			Expect(messages).To(HaveLen(1))
			Expect(messages[0].(map[string]any)["subject"]).To(Equal("Acme's new robotics line"))
		})

		It("enqueues the run and returns 202 when async is requested", func() {
			var enqueuedID int64
			producer.enqueueFn = func(_ context.Context, runID int64, payload queue.GeneratePayload) error {
				enqueuedID = runID
				Expect(payload.Recipient.Name).To(Equal("Sam Okafor"))
				return nil
			}
			generator.generateFn = func(_ context.Context, _ int64, _ model.SenderProfile, _ model.RecipientProfile, _ model.OrganizationProfile, _ model.Options) model.Outcome {
				Fail("generator must not run for async requests")
				return model.Outcome{}
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/runs?async=true", bytes.NewBuffer(validBody()))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusAccepted))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["status"]).To(Equal("queued"))
			Expect(resp["run_id"]).NotTo(BeEmpty())
			Expect(enqueuedID).NotTo(BeZero())
		})

		It("returns 500 when enqueueing fails", func() {
			producer.enqueueFn = func(_ context.Context, _ int64, _ queue.GeneratePayload) error {
				return errors.New("redis down")
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/runs?async=true", bytes.NewBuffer(validBody()))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
		})

		It("returns 400 when the recipient name is missing", func() {
			body, _ := json.Marshal(map[string]any{
				"sender":       map[string]any{"name": "Ana Ruiz"},
				"recipient":    map[string]any{"title": "CTO"},
				"organization": map[string]any{"name": "Acme"},
			})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/v1/runs/:id", func() {
		It("returns the outcome for a finished run", func() {
			runs.getOutcomeFn = func(_ context.Context, runID int64) (model.Outcome, error) {
				return model.Outcome{
					RunID:        runID,
					Recipient:    model.RecipientProfile{Name: "Sam Okafor"},
					Status:       model.OutcomeFailed,
					Messages:     []model.GeneratedMessage{},
					FailedReason: "no relevant news articles found",
				}, nil
			}

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/42", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["status"]).To(Equal("failed"))
			Expect(resp["failed_reason"]).To(Equal("no relevant news articles found"))
			Expect(resp["run_id"]).To(Equal("42"))
		})

		It("reports the phase of a run still in flight", func() {
			runs.getOutcomeFn = func(_ context.Context, _ int64) (model.Outcome, error) {
				return model.Outcome{}, store.ErrNotFound
			}
			runs.getRunFn = func(_ context.Context, runID int64) (model.Run, error) {
				return model.Run{ID: runID, State: model.RunState{Phase: model.PhaseReview}}, nil
			}

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/42", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["status"]).To(Equal("processing"))
			Expect(resp["phase"]).To(Equal("review"))
		})

		It("returns 404 for an unknown run", func() {
			runs.getOutcomeFn = func(_ context.Context, _ int64) (model.Outcome, error) {
				return model.Outcome{}, store.ErrNotFound
			}
			runs.getRunFn = func(_ context.Context, _ int64) (model.Run, error) {
				return model.Run{}, store.ErrNotFound
			}

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/42", nil))

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 400 for a non-numeric run id", func() {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/abc", nil))

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/v1/runs", func() {
		It("requires the admin API key", func() {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("lists recent outcomes with a valid key", func() {
			runs.listRecentFn = func(_ context.Context, limit int32) ([]model.Outcome, error) {
				Expect(limit).To(Equal(int32(5)))
				return []model.Outcome{
					{RunID: 2, Status: model.OutcomeApproved, Messages: []model.GeneratedMessage{{Subject: "hi"}}},
					{RunID: 1, Status: model.OutcomeFailed, Messages: []model.GeneratedMessage{}},
				}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=5", nil)
			req.Header.Set("X-Admin-API-Key", adminKey)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["runs"].([]any)).To(HaveLen(2))
		})

		It("accepts the key as a bearer token", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
			req.Header.Set("Authorization", "Bearer "+adminKey)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
		})

		It("rejects an invalid limit", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=0", nil)
			req.Header.Set("X-Admin-API-Key", adminKey)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
