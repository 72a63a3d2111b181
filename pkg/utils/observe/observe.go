// Package observe carries per-session diagnostic state (rendered prompts and
// created memories) through context.Context instead of process-wide globals.
package observe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/m-mizutani/kioku/pkg/model"
)

// Number of leading embedding values shown when logging a memory
const embeddingPreview = 5

type contextKey struct{}

var observerKey = contextKey{}

// Observer records the last rendered prompt per stage and logs memory
// activity at debug level. It is safe for concurrent use.
type Observer struct {
	logger *slog.Logger

	mu      sync.RWMutex
	prompts map[string]string
	last    string
}

func New(logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Observer{
		logger:  logger,
		prompts: make(map[string]string),
	}
}

// Prompt records a rendered prompt for a stage
func (o *Observer) Prompt(stage, prompt string) {
	if o == nil {
		return
	}
	o.mu.Lock()
	o.prompts[stage] = prompt
	o.last = prompt
	o.mu.Unlock()

	o.logger.Debug("rendered prompt", "stage", stage, "prompt", prompt)
}

// LastPrompt returns the most recently recorded prompt of any stage
func (o *Observer) LastPrompt() string {
	if o == nil {
		return ""
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last
}

// StagePrompt returns the last prompt recorded for a stage
func (o *Observer) StagePrompt(stage string) (string, bool) {
	if o == nil {
		return "", false
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.prompts[stage]
	return p, ok
}

// Memories logs newly created records
func (o *Observer) Memories(stage string, records []*model.MemoryRecord) {
	if o == nil || len(records) == 0 {
		return
	}
	for i, r := range records {
		o.logger.Debug("created memory",
			"stage", stage,
			"index", i,
			"text", r.Text,
			"topics", r.Topics,
			"embedding", PreviewEmbedding(r.Embedding),
		)
	}
}

// PreviewEmbedding renders the first few values of a vector followed by the
// number of omitted values.
func PreviewEmbedding(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}

	n := min(len(v), embeddingPreview)
	parts := make([]string, 0, n)
	for _, x := range v[:n] {
		parts = append(parts, fmt.Sprintf("%.4f", x))
	}

	s := "[" + strings.Join(parts, ", ")
	if len(v) > n {
		s += fmt.Sprintf(", ... (%d more)", len(v)-n)
	}
	return s + "]"
}

// With returns a new context with the observer attached
func With(ctx context.Context, o *Observer) context.Context {
	return context.WithValue(ctx, observerKey, o)
}

// From retrieves the observer from the context. It returns nil if none is
// attached; all Observer methods accept a nil receiver.
func From(ctx context.Context) *Observer {
	if o, ok := ctx.Value(observerKey).(*Observer); ok {
		return o
	}
	return nil
}
