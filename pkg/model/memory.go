package model

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type MemoryID string

// NewMemoryID generates a new unique MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// Topic assigned to every consolidated long-term record
const TopicConversationSummary = "conversation_summary"

// MemoryRecord represents one remembered fact or summary. Records are not
// mutated after creation except for embedding back-fill.
type MemoryRecord struct {
	ID         MemoryID  `json:"id,omitempty" firestore:"id"`
	Text       string    `json:"text" firestore:"text"`
	Embedding  []float32 `json:"embedding" firestore:"-"`
	Topics     []string  `json:"topics" firestore:"topics"`
	CreatedAt  time.Time `json:"createdAt" firestore:"created_at"`
	Importance *float64  `json:"importance,omitempty" firestore:"importance,omitempty"`
}

// UnmarshalJSON accepts createdAt as an RFC3339 string or as epoch
// milliseconds, which older snapshot files use.
func (r *MemoryRecord) UnmarshalJSON(data []byte) error {
	type plain MemoryRecord
	var raw struct {
		plain
		CreatedAt json.RawMessage `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	createdAt, err := parseCreatedAt(raw.CreatedAt)
	if err != nil {
		return err
	}
	*r = MemoryRecord(raw.plain)
	r.CreatedAt = createdAt
	return nil
}

func parseCreatedAt(data json.RawMessage) (time.Time, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return time.Time{}, nil
	}

	if data[0] == '"' {
		var t time.Time
		if err := json.Unmarshal(data, &t); err != nil {
			return time.Time{}, goerr.Wrap(err, "invalid createdAt", goerr.V("createdAt", string(data)))
		}
		return t, nil
	}

	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return time.Time{}, goerr.Wrap(err, "invalid createdAt", goerr.V("createdAt", string(data)))
	}
	return time.UnixMilli(int64(ms)), nil
}

// NewMemoryRecord creates a record with a fresh ID and the given creation time.
func NewMemoryRecord(text string, topics []string, now time.Time) *MemoryRecord {
	if topics == nil {
		topics = []string{}
	}
	return &MemoryRecord{
		ID:        NewMemoryID(),
		Text:      text,
		Topics:    topics,
		CreatedAt: now,
	}
}

// HasEmbedding reports whether the record has been embedded.
func (r *MemoryRecord) HasEmbedding() bool {
	return r != nil && len(r.Embedding) > 0
}

// LastRecords returns the last n records. A non-positive n returns nil.
func LastRecords(records []*MemoryRecord, n int) []*MemoryRecord {
	if n <= 0 {
		return nil
	}
	if len(records) <= n {
		return records
	}
	return records[len(records)-n:]
}
