package queue

import "scribehq.app/scribe/internal/model"

type TaskType string

const (
	TaskTypeGenerate TaskType = "generate_message"
)

// GeneratePayload is the JSON body of a generate task. The run ID travels as
// a separate stream field so consumers can log it before decoding.
type GeneratePayload struct {
	Sender       model.SenderProfile       `json:"sender"`
	Recipient    model.RecipientProfile    `json:"recipient"`
	Organization model.OrganizationProfile `json:"organization"`
	Options      model.Options             `json:"options"`
}
