package model

import "strings"

type UserID string

// Validate checks that the user ID can be used as a storage key
func (x UserID) Validate() error {
	if x == "" {
		return ErrInvalidUserID
	}
	if strings.ContainsAny(string(x), `/\`) || x == "." || x == ".." {
		return ErrInvalidUserID
	}
	return nil
}

// MemorySnapshot is the full persisted memory state for one user. All
// collections are ordered oldest first.
type MemorySnapshot struct {
	FlashMemory         []*MemoryRecord    `json:"flashMemory"`
	LongTermMemory      []*MemoryRecord    `json:"longTermMemory"`
	ConversationHistory []InteractionEvent `json:"conversationHistory"`
}

// NewSnapshot returns an empty snapshot with non-nil collections
func NewSnapshot() *MemorySnapshot {
	return &MemorySnapshot{
		FlashMemory:         []*MemoryRecord{},
		LongTermMemory:      []*MemoryRecord{},
		ConversationHistory: []InteractionEvent{},
	}
}

// Normalize replaces nil collections with empty ones and drops nil records.
func (s *MemorySnapshot) Normalize() *MemorySnapshot {
	if s == nil {
		return NewSnapshot()
	}
	s.FlashMemory = compactRecords(s.FlashMemory)
	s.LongTermMemory = compactRecords(s.LongTermMemory)
	if s.ConversationHistory == nil {
		s.ConversationHistory = []InteractionEvent{}
	}
	return s
}

// Clone copies the collections. Records are shared since they are immutable.
func (s *MemorySnapshot) Clone() *MemorySnapshot {
	if s == nil {
		return nil
	}
	return &MemorySnapshot{
		FlashMemory:         append([]*MemoryRecord{}, s.FlashMemory...),
		LongTermMemory:      append([]*MemoryRecord{}, s.LongTermMemory...),
		ConversationHistory: append([]InteractionEvent{}, s.ConversationHistory...),
	}
}

// Records returns flash memories followed by long-term memories.
func (s *MemorySnapshot) Records() []*MemoryRecord {
	if s == nil {
		return nil
	}
	records := make([]*MemoryRecord, 0, len(s.FlashMemory)+len(s.LongTermMemory))
	records = append(records, s.FlashMemory...)
	records = append(records, s.LongTermMemory...)
	return records
}

func compactRecords(records []*MemoryRecord) []*MemoryRecord {
	out := make([]*MemoryRecord, 0, len(records))
	for _, r := range records {
		if r != nil {
			if r.Topics == nil {
				r.Topics = []string{}
			}
			out = append(out, r)
		}
	}
	return out
}

// UpdaterRequest is the per-turn payload handed to the memory stages.
// MemorySnapshot is the state before this turn's new memories.
type UpdaterRequest struct {
	EventHistory   []InteractionEvent
	MemorySnapshot *MemorySnapshot
	ForceLongTerm  bool
}
