package client

import (
	"fmt"
	"strings"
	"time"
)

// localTimeLayout matches the service's timestamp format, which carries no
// zone designator.
const localTimeLayout = "2006-01-02T15:04:05"

// LocalTime is a timestamp as the service serializes it. It tolerates
// fractional seconds and an optional zone suffix.
type LocalTime struct {
	time.Time
}

func (t *LocalTime) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{localTimeLayout, localTimeLayout + ".999999999", time.RFC3339} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", raw)
}

func (t LocalTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Format(localTimeLayout) + `"`), nil
}

// LogEntry is a journal entry: a problem, its solution and the material
// collected around them.
type LogEntry struct {
	ID             string    `json:"id,omitempty"`
	Title          string    `json:"title"`
	Problem        string    `json:"problem"`
	Solution       string    `json:"solution"`
	ReferenceLinks []string  `json:"referenceLinks,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	CodeSnippet    string    `json:"codeSnippet,omitempty"`
	Attachments    []string  `json:"attachments,omitempty"`
	CreatedAt      LocalTime `json:"createdAt,omitempty"`
	UpdatedAt      LocalTime `json:"updatedAt,omitempty"`
	MatchedOn      []string  `json:"matchedOn,omitempty"`
	CreatedBy      string    `json:"createdBy,omitempty"`
}

// LogPage is one page of log entries, newest first by default.
type LogPage struct {
	Content       []LogEntry `json:"content"`
	TotalElements int64      `json:"totalElements"`
	TotalPages    int        `json:"totalPages"`
	Number        int        `json:"number"`
	Size          int        `json:"size"`
}

// Profile is the user's profile as served by the profile endpoint.
type Profile struct {
	Username         string `json:"username"`
	Name             string `json:"name,omitempty"`
	Email            string `json:"email,omitempty"`
	Role             string `json:"role,omitempty"`
	RemindersEnabled bool   `json:"remindersEnabled"`
}

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}
