package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Lookup limits used against the provider's submissions index.
const (
	DefaultLookupLimit = 100
	PurgeLookupLimit   = 1000
)

// SubmissionID is a provider-assigned identifier. The provider may encode it as
// a JSON number or a JSON string, and the id is written back in the same form.
type SubmissionID struct {
	value   string
	numeric bool
}

// NewSubmissionID returns an id that encodes as a JSON string.
func NewSubmissionID(value string) SubmissionID {
	return SubmissionID{value: value}
}

// NumericSubmissionID returns an id that encodes as a bare JSON number when
// value is a valid number literal.
func NumericSubmissionID(value string) SubmissionID {
	return SubmissionID{value: value, numeric: true}
}

func (id SubmissionID) String() string { return id.value }

func (id SubmissionID) IsZero() bool { return strings.TrimSpace(id.value) == "" }

// IsNumeric reports whether the id arrived as a JSON number.
func (id SubmissionID) IsNumeric() bool { return id.numeric }

func (id *SubmissionID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*id = SubmissionID{}
		return nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("invalid submission id: %w", err)
		}
		*id = NewSubmissionID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("invalid submission id %s: %w", string(trimmed), err)
	}
	*id = NumericSubmissionID(n.String())
	return nil
}

func (id SubmissionID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	if id.numeric && isNumberLiteral(id.value) {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

func isNumberLiteral(value string) bool {
	var n json.Number
	return json.Unmarshal([]byte(value), &n) == nil
}

// Submission is a provider-owned record. Only the id is interpreted; the rest
// of the document is carried through untouched.
type Submission struct {
	ID  SubmissionID
	raw json.RawMessage
}

func (s *Submission) UnmarshalJSON(data []byte) error {
	var head struct {
		ID SubmissionID `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	s.ID = head.ID
	s.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (s Submission) MarshalJSON() ([]byte, error) {
	if len(s.raw) > 0 {
		return s.raw, nil
	}
	return json.Marshal(struct {
		ID SubmissionID `json:"id"`
	}{ID: s.ID})
}

// SubmissionList is the provider's paginated listing envelope.
type SubmissionList struct {
	Data []Submission `json:"data"`
}

// ParseSubmissionList extracts the submissions from a listing payload. An
// absent or null data field yields an empty list.
func ParseSubmissionList(payload json.RawMessage) ([]Submission, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []Submission{}, nil
	}

	var list SubmissionList
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return []Submission{}, fmt.Errorf("invalid submissions listing: %w", err)
	}
	if list.Data == nil {
		return []Submission{}, nil
	}
	return list.Data, nil
}

// SubmissionQuery searches the provider for existing submissions. Key is a
// free-text match and is not guaranteed to be unique.
type SubmissionQuery struct {
	Key      string
	Archived *bool
	Limit    int
}

// Endpoint renders the query as a provider path relative to the API base.
func (q SubmissionQuery) Endpoint() string {
	values := url.Values{}
	if key := strings.TrimSpace(q.Key); key != "" {
		values.Set("q", key)
	}
	if q.Archived != nil {
		values.Set("archived", strconv.FormatBool(*q.Archived))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLookupLimit
	}
	values.Set("limit", strconv.Itoa(limit))

	return "/submissions?" + values.Encode()
}

func SubmissionEndpoint(id SubmissionID) string {
	return "/submissions/" + url.PathEscape(id.String())
}

func PermanentDeleteEndpoint(id SubmissionID) string {
	return SubmissionEndpoint(id) + "?permanently=true"
}

const CreateFromPDFEndpoint = "/submissions/pdf"

// Message is the email subject/body attached to a new submission.
type Message struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SubmissionRequest is the caller input for replacing every submission that
// matches ID with a newly created one.
type SubmissionRequest struct {
	ID                   SubmissionID    `json:"id"`
	Name                 string          `json:"name"`
	Documents            json.RawMessage `json:"documents"`
	Submitters           json.RawMessage `json:"submitters"`
	ExpireAt             *string         `json:"expire_at"`
	BCCCompleted         *string         `json:"bcc_completed"`
	ReplyTo              *string         `json:"reply_to"`
	CompletedRedirectURL *string         `json:"completed_redirect_url"`
	Message              *Message        `json:"message"`
	Archived             bool            `json:"archived"`
}

func (r *SubmissionRequest) Validate() error {
	if r.ID.IsZero() {
		return fmt.Errorf("%w: id is required", ErrValidation)
	}
	return nil
}

func BoolPtr(v bool) *bool { return &v }
