package dto

import (
	"time"

	"scribehq.app/scribe/internal/model"
)

type SenderProfile struct {
	Name         string `json:"name" binding:"required,min=1,max=255"`
	Title        string `json:"title,omitempty"`
	Organization string `json:"organization,omitempty"`
	Email        string `json:"email,omitempty" binding:"omitempty,email"`
}

type RecipientProfile struct {
	Name         string `json:"name" binding:"required,min=1,max=255"`
	Title        string `json:"title,omitempty"`
	Organization string `json:"organization,omitempty"`
	Email        string `json:"email,omitempty" binding:"omitempty,email"`
}

type OrganizationProfile struct {
	Name        string   `json:"name" binding:"required,min=1,max=255"`
	Industry    string   `json:"industry,omitempty"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

type RunOptions struct {
	Style string   `json:"style,omitempty"`
	Tone  string   `json:"tone,omitempty"`
	Goals []string `json:"goals,omitempty"`
}

type GenerateRunRequest struct {
	Sender       SenderProfile       `json:"sender" binding:"required"`
	Recipient    RecipientProfile    `json:"recipient" binding:"required"`
	Organization OrganizationProfile `json:"organization" binding:"required"`
	Options      RunOptions          `json:"options"`
}

func (r GenerateRunRequest) Profiles() (model.SenderProfile, model.RecipientProfile, model.OrganizationProfile, model.Options) {
	return model.SenderProfile{
			Name:         r.Sender.Name,
			Title:        r.Sender.Title,
			Organization: r.Sender.Organization,
			Email:        r.Sender.Email,
		}, model.RecipientProfile{
			Name:         r.Recipient.Name,
			Title:        r.Recipient.Title,
			Organization: r.Recipient.Organization,
			Email:        r.Recipient.Email,
		}, model.OrganizationProfile{
			Name:        r.Organization.Name,
			Industry:    r.Organization.Industry,
			Description: r.Organization.Description,
			Keywords:    r.Organization.Keywords,
		}, model.Options{
			Style: r.Options.Style,
			Tone:  r.Options.Tone,
			Goals: r.Options.Goals,
		}
}

type RunQueuedResponse struct {
	RunID  int64  `json:"run_id,string"`
	Status string `json:"status"`
}

type RunStatusResponse struct {
	RunID  int64  `json:"run_id,string"`
	Status string `json:"status"`
	Phase  string `json:"phase"`
}

type DocumentResponse struct {
	ID          int64     `json:"id,string"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Category    string    `json:"category,omitempty"`
}

type MessageResponse struct {
	Subject       string             `json:"subject"`
	Body          string             `json:"body"`
	AngleCategory string             `json:"angle_category"`
	AngleTheme    string             `json:"angle_theme"`
	Score         float64            `json:"score"`
	Documents     []DocumentResponse `json:"documents,omitempty"`
}

type OutcomeResponse struct {
	RunID        int64             `json:"run_id,string"`
	Status       string            `json:"status"`
	FailedReason string            `json:"failed_reason,omitempty"`
	Recipient    string            `json:"recipient"`
	CreatedAt    time.Time         `json:"created_at"`
	Messages     []MessageResponse `json:"messages"`
}

func ToOutcomeResponse(outcome model.Outcome) OutcomeResponse {
	messages := make([]MessageResponse, 0, len(outcome.Messages))
	for _, msg := range outcome.Messages {
		documents := make([]DocumentResponse, 0, len(msg.Documents))
		for _, doc := range msg.Documents {
			documents = append(documents, DocumentResponse{
				ID:          doc.ID,
				Title:       doc.Title,
				URL:         doc.URL,
				Source:      doc.Source,
				PublishedAt: doc.PublishedAt,
				Category:    string(doc.Category),
			})
		}
		messages = append(messages, MessageResponse{
			Subject:       msg.Subject,
			Body:          msg.Body,
			AngleCategory: string(msg.Angle.Category),
			AngleTheme:    msg.Angle.Theme,
			Score:         msg.Score,
			Documents:     documents,
		})
	}

	return OutcomeResponse{
		RunID:        outcome.RunID,
		Status:       string(outcome.Status),
		FailedReason: outcome.FailedReason,
		Recipient:    outcome.Recipient.Name,
		CreatedAt:    outcome.CreatedAt,
		Messages:     messages,
	}
}
