package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/interfaces"
	"github.com/m-mizutani/kioku/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionSnapshots = "snapshots"
	collectionRecords   = "records"

	recordKindFlash    = "flash"
	recordKindLongTerm = "long_term"
)

// Firestore stores a snapshot document per user. Memory records live in a
// sub-collection so that embeddings do not count against the document size
// limit.
type Firestore struct {
	client *firestore.Client
}

var _ interfaces.SnapshotRepository = (*Firestore)(nil)

type snapshotDoc struct {
	ConversationHistory []model.InteractionEvent `firestore:"conversation_history"`
	UpdatedAt           time.Time                `firestore:"updated_at"`
}

type recordDoc struct {
	Kind       string             `firestore:"kind"`
	Seq        int                `firestore:"seq"`
	Text       string             `firestore:"text"`
	Embedding  firestore.Vector32 `firestore:"embedding,omitempty"`
	Topics     []string           `firestore:"topics"`
	CreatedAt  time.Time          `firestore:"created_at"`
	Importance *float64           `firestore:"importance"`
}

// NewFirestore creates a Firestore repository
func NewFirestore(ctx context.Context, projectID, databaseID string, opts ...option.ClientOption) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID),
		)
	}
	return &Firestore{client: client}, nil
}

func (r *Firestore) doc(userID model.UserID) *firestore.DocumentRef {
	return r.client.Collection(collectionSnapshots).Doc(string(userID))
}

func (r *Firestore) GetSnapshot(ctx context.Context, userID model.UserID) (*model.MemorySnapshot, error) {
	if err := userID.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid user ID", goerr.V("user_id", userID))
	}

	docSnap, err := r.doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "snapshot document does not exist", goerr.V("user_id", userID))
		}
		return nil, goerr.Wrap(err, "failed to get snapshot document", goerr.V("user_id", userID))
	}

	var doc snapshotDoc
	if err := docSnap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode snapshot document", goerr.V("user_id", userID))
	}

	snapshot := model.NewSnapshot()
	snapshot.ConversationHistory = doc.ConversationHistory

	iter := r.doc(userID).Collection(collectionRecords).OrderBy("seq", firestore.Asc).Documents(ctx)
	defer iter.Stop()
	for {
		recSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memory records", goerr.V("user_id", userID))
		}

		var rec recordDoc
		if err := recSnap.DataTo(&rec); err != nil {
			return nil, goerr.Wrap(err, "failed to decode memory record",
				goerr.V("user_id", userID),
				goerr.V("record_id", recSnap.Ref.ID),
			)
		}

		record := &model.MemoryRecord{
			ID:         model.MemoryID(recSnap.Ref.ID),
			Text:       rec.Text,
			Embedding:  []float32(rec.Embedding),
			Topics:     rec.Topics,
			CreatedAt:  rec.CreatedAt,
			Importance: rec.Importance,
		}
		switch rec.Kind {
		case recordKindFlash:
			snapshot.FlashMemory = append(snapshot.FlashMemory, record)
		case recordKindLongTerm:
			snapshot.LongTermMemory = append(snapshot.LongTermMemory, record)
		}
	}

	return snapshot.Normalize(), nil
}

// PutSnapshot writes all current records, removes records that were
// truncated away and then replaces the snapshot document.
func (r *Firestore) PutSnapshot(ctx context.Context, userID model.UserID, snapshot *model.MemorySnapshot) error {
	if err := userID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid user ID", goerr.V("user_id", userID))
	}
	snapshot = snapshot.Clone().Normalize()

	records := r.doc(userID).Collection(collectionRecords)
	stale, err := r.recordIDs(ctx, records)
	if err != nil {
		return err
	}

	bw := r.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob

	seq := 0
	write := func(kind string, list []*model.MemoryRecord) error {
		for _, rec := range list {
			id := rec.ID
			if id == "" {
				id = model.NewMemoryID()
			}
			delete(stale, string(id))

			job, err := bw.Set(records.Doc(string(id)), &recordDoc{
				Kind:       kind,
				Seq:        seq,
				Text:       rec.Text,
				Embedding:  firestore.Vector32(rec.Embedding),
				Topics:     rec.Topics,
				CreatedAt:  rec.CreatedAt,
				Importance: rec.Importance,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to queue memory record", goerr.V("record_id", id))
			}
			jobs = append(jobs, job)
			seq++
		}
		return nil
	}

	if err := write(recordKindFlash, snapshot.FlashMemory); err != nil {
		bw.End()
		return err
	}
	if err := write(recordKindLongTerm, snapshot.LongTermMemory); err != nil {
		bw.End()
		return err
	}
	for id := range stale {
		job, err := bw.Delete(records.Doc(id))
		if err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to queue record deletion", goerr.V("record_id", id))
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return goerr.Wrap(err, "failed to write memory records", goerr.V("user_id", userID))
		}
	}

	if _, err := r.doc(userID).Set(ctx, &snapshotDoc{
		ConversationHistory: snapshot.ConversationHistory,
		UpdatedAt:           time.Now(),
	}); err != nil {
		return goerr.Wrap(err, "failed to put snapshot document", goerr.V("user_id", userID))
	}

	return nil
}

func (r *Firestore) DeleteSnapshot(ctx context.Context, userID model.UserID) error {
	if err := userID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid user ID", goerr.V("user_id", userID))
	}

	records := r.doc(userID).Collection(collectionRecords)
	ids, err := r.recordIDs(ctx, records)
	if err != nil {
		return err
	}

	bw := r.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for id := range ids {
		job, err := bw.Delete(records.Doc(id))
		if err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to queue record deletion", goerr.V("record_id", id))
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return goerr.Wrap(err, "failed to delete memory records", goerr.V("user_id", userID))
		}
	}

	if _, err := r.doc(userID).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete snapshot document", goerr.V("user_id", userID))
	}
	return nil
}

func (r *Firestore) recordIDs(ctx context.Context, records *firestore.CollectionRef) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	iter := records.DocumentRefs(ctx)
	for {
		ref, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list memory records")
		}
		ids[ref.ID] = struct{}{}
	}
	return ids, nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}
