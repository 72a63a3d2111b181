package memory

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/interfaces"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/utils/observe"
)

const StageLongTerm = "long_term"

//go:embed prompt/longterm.md
var longTermPromptRaw string

var longTermPromptTmpl = template.Must(template.New("long_term").Parse(longTermPromptRaw))

// LongTermResult holds the summary produced in one turn. It has at most one
// record.
type LongTermResult struct {
	Records []*model.MemoryRecord
}

// LongTermConsolidator summarizes dialogue and prior long-term memory into a
// new long-term record
type LongTermConsolidator struct {
	generator interfaces.Generator
	embedder  interfaces.Embedder
	cfg       LongTermConfig
	now       func() time.Time
}

func NewLongTermConsolidator(generator interfaces.Generator, embedder interfaces.Embedder, cfg LongTermConfig) *LongTermConsolidator {
	return &LongTermConsolidator{
		generator: generator,
		embedder:  embedder,
		cfg:       cfg.WithDefaults(),
		now:       time.Now,
	}
}

func (x *LongTermConsolidator) BuildPrompt(ctx context.Context, req model.UpdaterRequest) (string, error) {
	events := model.LastEvents(req.EventHistory, x.cfg.MaxHistoryToProcess)
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = e.Line()
	}

	var previous []string
	if req.MemorySnapshot != nil {
		for _, r := range req.MemorySnapshot.LongTermMemory {
			previous = append(previous, r.Text)
		}
	}

	var buf bytes.Buffer
	if err := longTermPromptTmpl.Execute(&buf, map[string]any{
		"Topic":            model.TopicConversationSummary,
		"DialogueLines":    strings.Join(lines, "\n"),
		"PreviousLongTerm": strings.Join(previous, "\n\n"),
	}); err != nil {
		return "", goerr.Wrap(err, "failed to render long-term prompt")
	}

	prompt := buf.String()
	observe.From(ctx).Prompt(StageLongTerm, prompt)
	return prompt, nil
}

// Run always calls the generator; there is no no-op path.
func (x *LongTermConsolidator) Run(ctx context.Context, req model.UpdaterRequest) (*LongTermResult, error) {
	prompt, err := x.BuildPrompt(ctx, req)
	if err != nil {
		return nil, err
	}

	output, err := x.generator.Generate(ctx, prompt,
		interfaces.WithTemperature(memoryTemperature),
		interfaces.WithMaxOutputTokens(memoryMaxOutputTokens),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate long-term memory")
	}

	return x.Parse(ctx, output)
}

// Parse wraps the whole non-blank output as one record.
func (x *LongTermConsolidator) Parse(ctx context.Context, output string) (*LongTermResult, error) {
	text := strings.TrimSpace(output)
	if text == "" {
		return &LongTermResult{}, nil
	}

	embeddings, err := embedAll(ctx, x.embedder, []string{text})
	if err != nil {
		return nil, err
	}

	record := model.NewMemoryRecord(text, []string{model.TopicConversationSummary}, x.now())
	record.Embedding = embeddings[0]

	records := []*model.MemoryRecord{record}
	observe.From(ctx).Memories(StageLongTerm, records)
	return &LongTermResult{Records: records}, nil
}
