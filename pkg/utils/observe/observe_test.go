package observe_test

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/m-mizutani/kioku/pkg/utils/observe"
)

func TestObserverPrompt(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := observe.New(logging.New("debug", buf))

	obs.Prompt("flash", "flash prompt")
	obs.Prompt("long_term", "long-term prompt")

	gt.Equal(t, obs.LastPrompt(), "long-term prompt")
	p, ok := obs.StagePrompt("flash")
	gt.True(t, ok)
	gt.Equal(t, p, "flash prompt")
	_, ok = obs.StagePrompt("conversation")
	gt.False(t, ok)
	gt.S(t, buf.String()).Contains("flash prompt")
}

func TestObserverConcurrent(t *testing.T) {
	obs := observe.New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			obs.Prompt("flash", "p")
			_ = obs.LastPrompt()
		}()
	}
	wg.Wait()
	gt.Equal(t, obs.LastPrompt(), "p")
}

func TestNilObserver(t *testing.T) {
	ctx := context.Background()
	obs := observe.From(ctx)
	gt.V(t, obs).Nil()

	// nil observer is a no-op
	obs.Prompt("flash", "ignored")
	obs.Memories("flash", []*model.MemoryRecord{{Text: "x"}})
	gt.Equal(t, obs.LastPrompt(), "")
}

func TestWithAndFrom(t *testing.T) {
	obs := observe.New(nil)
	ctx := observe.With(context.Background(), obs)
	gt.Equal(t, observe.From(ctx), obs)
}

func TestPreviewEmbedding(t *testing.T) {
	gt.Equal(t, observe.PreviewEmbedding(nil), "[]")
	gt.Equal(t, observe.PreviewEmbedding([]float32{1, 0.5}), "[1.0000, 0.5000]")
	gt.Equal(t,
		observe.PreviewEmbedding([]float32{1, 2, 3, 4, 5, 6, 7}),
		"[1.0000, 2.0000, 3.0000, 4.0000, 5.0000, ... (2 more)]",
	)
}

func TestMemoriesLogging(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := observe.New(logging.New("debug", buf))
	obs.Memories("flash", []*model.MemoryRecord{
		{Text: "likes jazz", Topics: []string{"music"}, Embedding: []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}},
	})
	gt.S(t, buf.String()).Contains("likes jazz")
	gt.S(t, buf.String()).Contains("1 more")
}
