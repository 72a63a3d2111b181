package memory

import "github.com/m-mizutani/kioku/pkg/model"

// ResultKind identifies the stage that produced a StageResult
type ResultKind int

const (
	// KindUpdate carries updated history and the pre-turn snapshot
	KindUpdate ResultKind = iota + 1
	KindFlash
	KindLongTerm
	// KindSnapshot is a bare snapshot, used when no update result carries one
	KindSnapshot
)

func (x ResultKind) String() string {
	switch x {
	case KindUpdate:
		return "update"
	case KindFlash:
		return "flash"
	case KindLongTerm:
		return "long_term"
	case KindSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// StageResult is the output of one stage handed to the merge engine
type StageResult interface {
	Kind() ResultKind
}

func (x *Decision) Kind() ResultKind       { return KindUpdate }
func (x *FlashResult) Kind() ResultKind    { return KindFlash }
func (x *LongTermResult) Kind() ResultKind { return KindLongTerm }

// SnapshotResult wraps a snapshot that is not tied to a scheduler decision
type SnapshotResult struct {
	Snapshot *model.MemorySnapshot
}

func (x SnapshotResult) Kind() ResultKind { return KindSnapshot }
