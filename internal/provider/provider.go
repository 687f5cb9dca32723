package provider

import (
	"context"
	"encoding/json"
)

// Client is the outbound port to the e-signature provider. Implementations
// never return Go errors: every outcome is folded into a Result.
type Client interface {
	Call(ctx context.Context, method string, endpoint string, body any) *Result
}

// Result is the normalized outcome of one provider call.
type Result struct {
	Success bool            `json:"success"`
	Status  int             `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`

	Err *ProviderError `json:"-"`
}

// Failure builds a failed Result with a {"message": ...} error payload.
func Failure(status int, message string) *Result {
	return &Result{
		Success: false,
		Status:  status,
		Error:   messagePayload(message),
		Err: &ProviderError{
			StatusCode: status,
			Message:    message,
			Transient:  isTransientHTTPStatus(status),
		},
	}
}

func messagePayload(message string) json.RawMessage {
	payload, err := json.Marshal(struct {
		Message string `json:"message"`
	}{Message: message})
	if err != nil {
		return json.RawMessage(`{"message":"unknown error"}`)
	}
	return payload
}
