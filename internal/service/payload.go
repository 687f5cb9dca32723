package service

import (
	"encoding/json"

	"github.com/kursadbilgin/signature-gateway/internal/domain"
)

const (
	defaultMessageSubject = "Please complete your digital signature"
	defaultMessageBody    = "Hello, please review and sign the attached document."
	preservedOrder        = "preserved"
)

// CreateSubmissionPayload is the body sent to the provider's create-from-PDF
// endpoint.
type CreateSubmissionPayload struct {
	Name                 string          `json:"name,omitempty"`
	Documents            json.RawMessage `json:"documents,omitempty"`
	Submitters           json.RawMessage `json:"submitters,omitempty"`
	ExpireAt             *string         `json:"expire_at"`
	SendEmail            bool            `json:"send_email"`
	SendSMS              bool            `json:"send_sms"`
	Order                string          `json:"order"`
	CompletedRedirectURL string          `json:"completed_redirect_url"`
	BCCCompleted         string          `json:"bcc_completed"`
	ReplyTo              string          `json:"reply_to"`
	MergeDocuments       bool            `json:"merge_documents"`
	RemoveTags           bool            `json:"remove_tags"`
	Message              domain.Message  `json:"message"`
}

// BuildCreatePayload merges the caller's request with the gateway defaults.
// Caller values win over defaults. Email and SMS stay off and the remaining
// provider flags are fixed regardless of input.
func BuildCreatePayload(req domain.SubmissionRequest) CreateSubmissionPayload {
	payload := CreateSubmissionPayload{
		Name:       req.Name,
		Documents:  req.Documents,
		Submitters: req.Submitters,
		ExpireAt:   req.ExpireAt,
		Message: domain.Message{
			Subject: defaultMessageSubject,
			Body:    defaultMessageBody,
		},
	}

	if req.CompletedRedirectURL != nil {
		payload.CompletedRedirectURL = *req.CompletedRedirectURL
	}
	if req.BCCCompleted != nil {
		payload.BCCCompleted = *req.BCCCompleted
	}
	if req.ReplyTo != nil {
		payload.ReplyTo = *req.ReplyTo
	}
	if req.Message != nil {
		if req.Message.Subject != "" {
			payload.Message.Subject = req.Message.Subject
		}
		if req.Message.Body != "" {
			payload.Message.Body = req.Message.Body
		}
	}

	payload.SendEmail = false
	payload.SendSMS = false
	payload.Order = preservedOrder
	payload.MergeDocuments = false
	payload.RemoveTags = true

	return payload
}
