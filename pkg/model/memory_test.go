package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/model"
)

func TestMemoryRecordCreatedAt(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  time.Time
		err   bool
	}{
		{
			name:  "epoch milliseconds",
			input: `{"text":"likes tea","createdAt":1734000000000}`,
			want:  time.UnixMilli(1734000000000),
		},
		{
			name:  "RFC3339 string",
			input: `{"text":"likes tea","createdAt":"2024-12-12T10:40:00Z"}`,
			want:  time.Date(2024, 12, 12, 10, 40, 0, 0, time.UTC),
		},
		{
			name:  "missing",
			input: `{"text":"likes tea"}`,
		},
		{
			name:  "null",
			input: `{"text":"likes tea","createdAt":null}`,
		},
		{
			name:  "invalid string",
			input: `{"text":"likes tea","createdAt":"yesterday"}`,
			err:   true,
		},
		{
			name:  "invalid type",
			input: `{"text":"likes tea","createdAt":true}`,
			err:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var r model.MemoryRecord
			err := json.Unmarshal([]byte(tc.input), &r)
			if tc.err {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.Equal(t, r.Text, "likes tea")
			gt.True(t, r.CreatedAt.Equal(tc.want))
		})
	}
}

func TestMemoryRecordRoundTrip(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC)
	r := model.NewMemoryRecord("works remotely", []string{"work"}, now)
	r.Embedding = []float32{0, 1}

	data, err := json.Marshal(r)
	gt.NoError(t, err)

	var got model.MemoryRecord
	gt.NoError(t, json.Unmarshal(data, &got))
	gt.Equal(t, got.ID, r.ID)
	gt.Equal(t, got.Text, r.Text)
	gt.A(t, got.Topics).Length(1)
	gt.A(t, got.Embedding).Length(2)
	gt.True(t, got.CreatedAt.Equal(now))
}
