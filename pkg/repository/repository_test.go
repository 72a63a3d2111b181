package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/interfaces"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/repository"
)

func newTestSnapshot() *model.MemorySnapshot {
	now := time.Now().UTC().Truncate(time.Millisecond)
	importance := 0.8

	snapshot := model.NewSnapshot()
	snapshot.FlashMemory = []*model.MemoryRecord{
		{ID: model.NewMemoryID(), Text: "likes jazz", Embedding: []float32{1, 0}, Topics: []string{"music"}, CreatedAt: now},
		{ID: model.NewMemoryID(), Text: "works remotely", Embedding: []float32{0, 1}, Topics: []string{}, CreatedAt: now, Importance: &importance},
	}
	snapshot.LongTermMemory = []*model.MemoryRecord{
		{ID: model.NewMemoryID(), Text: "The user enjoys jazz and works from home.", Embedding: []float32{0.5, 0.5}, Topics: []string{model.TopicConversationSummary}, CreatedAt: now},
	}
	snapshot.ConversationHistory = []model.InteractionEvent{
		{Role: model.RoleUser, Content: "I like jazz", AgentName: "User"},
		{Role: model.RoleAssistant, Content: "Nice!", AgentName: "Assistant"},
	}
	return snapshot
}

// testRepository runs the common contract against a backend
func testRepository(t *testing.T, repo interfaces.SnapshotRepository) {
	ctx := context.Background()
	userID := model.UserID("user_" + string(model.NewMemoryID()))

	t.Run("get missing snapshot", func(t *testing.T) {
		_, err := repo.GetSnapshot(ctx, userID)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, repository.ErrNotFound))
	})

	t.Run("put and get", func(t *testing.T) {
		snapshot := newTestSnapshot()
		gt.NoError(t, repo.PutSnapshot(ctx, userID, snapshot))

		got, err := repo.GetSnapshot(ctx, userID)
		gt.NoError(t, err)
		gt.A(t, got.FlashMemory).Length(2)
		gt.A(t, got.LongTermMemory).Length(1)
		gt.A(t, got.ConversationHistory).Length(2)

		gt.Equal(t, got.FlashMemory[0].ID, snapshot.FlashMemory[0].ID)
		gt.Equal(t, got.FlashMemory[0].Text, "likes jazz")
		gt.Equal(t, got.FlashMemory[0].Embedding, []float32{1, 0})
		gt.Equal(t, got.FlashMemory[0].Topics, []string{"music"})
		gt.True(t, got.FlashMemory[0].CreatedAt.Equal(snapshot.FlashMemory[0].CreatedAt))
		gt.Equal(t, *got.FlashMemory[1].Importance, 0.8)
		gt.Equal(t, got.LongTermMemory[0].Text, "The user enjoys jazz and works from home.")
		gt.Equal(t, got.ConversationHistory[1], snapshot.ConversationHistory[1])
	})

	t.Run("put replaces previous snapshot", func(t *testing.T) {
		snapshot := newTestSnapshot()
		snapshot.FlashMemory = snapshot.FlashMemory[1:]
		gt.NoError(t, repo.PutSnapshot(ctx, userID, snapshot))

		got, err := repo.GetSnapshot(ctx, userID)
		gt.NoError(t, err)
		gt.A(t, got.FlashMemory).Length(1)
		gt.Equal(t, got.FlashMemory[0].Text, "works remotely")
	})

	t.Run("delete", func(t *testing.T) {
		gt.NoError(t, repo.DeleteSnapshot(ctx, userID))
		_, err := repo.GetSnapshot(ctx, userID)
		gt.True(t, errors.Is(err, repository.ErrNotFound))

		// deleting again is not an error
		gt.NoError(t, repo.DeleteSnapshot(ctx, userID))
	})
}

func TestMemory(t *testing.T) {
	testRepository(t, repository.NewMemory())
}

func TestMemoryIsolation(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	snapshot := newTestSnapshot()
	gt.NoError(t, repo.PutSnapshot(ctx, "alice", snapshot))
	snapshot.FlashMemory = nil

	got, err := repo.GetSnapshot(ctx, "alice")
	gt.NoError(t, err)
	gt.A(t, got.FlashMemory).Length(2)

	got.LongTermMemory = nil
	again, err := repo.GetSnapshot(ctx, "alice")
	gt.NoError(t, err)
	gt.A(t, again.LongTermMemory).Length(1)
}
