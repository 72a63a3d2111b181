package memory

import (
	"context"
	"reflect"

	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

// Merger folds new memories into a snapshot, dropping duplicates and keeping
// only the most recent entries of each collection
type Merger struct {
	cfg MergeConfig
}

func NewMerger(cfg MergeConfig) *Merger {
	return &Merger{cfg: cfg.WithDefaults()}
}

// Merge builds the next snapshot from stage results. For each kind the first
// result wins. The snapshot comes from the update result, then from a
// snapshot result; with neither, an empty snapshot is used and a warning is
// logged. History comes from the update result, or else the snapshot.
func (m *Merger) Merge(ctx context.Context, results ...StageResult) *model.MemorySnapshot {
	var (
		update   *Decision
		flash    *FlashResult
		longTerm *LongTermResult
		fallback *model.MemorySnapshot
	)

	for _, r := range results {
		if isNil(r) {
			continue
		}
		switch r.Kind() {
		case KindUpdate:
			if v, ok := r.(*Decision); ok && update == nil {
				update = v
			}
		case KindFlash:
			if v, ok := r.(*FlashResult); ok && flash == nil {
				flash = v
			}
		case KindLongTerm:
			if v, ok := r.(*LongTermResult); ok && longTerm == nil {
				longTerm = v
			}
		case KindSnapshot:
			if v, ok := r.(SnapshotResult); ok && fallback == nil {
				fallback = v.Snapshot
			}
		}
	}

	var snapshot *model.MemorySnapshot
	switch {
	case update != nil && update.Request.MemorySnapshot != nil:
		snapshot = update.Request.MemorySnapshot
	case fallback != nil:
		snapshot = fallback
	default:
		logging.From(ctx).Warn("no snapshot found in merge inputs, using empty snapshot")
		snapshot = model.NewSnapshot()
	}

	history := snapshot.ConversationHistory
	if update != nil {
		history = update.Request.EventHistory
	}

	var newFlash, newLongTerm []*model.MemoryRecord
	if flash != nil {
		newFlash = flash.Records
	}
	if longTerm != nil {
		newLongTerm = longTerm.Records
	}

	flashMemory := mergeRecords(snapshot.FlashMemory, newFlash, m.cfg.SimilarityThreshold)
	longTermMemory := mergeRecords(snapshot.LongTermMemory, newLongTerm, m.cfg.SimilarityThreshold)

	merged := &model.MemorySnapshot{
		FlashMemory:         append([]*model.MemoryRecord{}, model.LastRecords(flashMemory, m.cfg.MaxFlashMemories)...),
		LongTermMemory:      append([]*model.MemoryRecord{}, model.LastRecords(longTermMemory, m.cfg.MaxLongTermMemories)...),
		ConversationHistory: append([]model.InteractionEvent{}, model.LastEvents(history, m.cfg.MaxHistoryEvents)...),
	}

	logging.From(ctx).Debug("merged memories",
		"flash", len(merged.FlashMemory),
		"long_term", len(merged.LongTermMemory),
		"history", len(merged.ConversationHistory),
	)

	return merged
}

// mergeRecords appends each incoming record unless an existing or already
// accepted record reaches the threshold. Records without an embedding are
// never treated as duplicates.
func mergeRecords(existing, incoming []*model.MemoryRecord, threshold float64) []*model.MemoryRecord {
	merged := make([]*model.MemoryRecord, 0, len(existing)+len(incoming))
	merged = append(merged, existing...)

	for _, r := range incoming {
		if r == nil {
			continue
		}
		if r.HasEmbedding() && hasDuplicate(merged, r, threshold) {
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

func hasDuplicate(records []*model.MemoryRecord, r *model.MemoryRecord, threshold float64) bool {
	for _, x := range records {
		if x.HasEmbedding() && CosineSimilarity(x.Embedding, r.Embedding) >= threshold {
			return true
		}
	}
	return false
}

func isNil(r StageResult) bool {
	if r == nil {
		return true
	}
	v := reflect.ValueOf(r)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
