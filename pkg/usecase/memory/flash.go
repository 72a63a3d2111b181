package memory

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/interfaces"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/m-mizutani/kioku/pkg/utils/observe"
)

const (
	StageFlash = "flash"

	// Generation settings shared by memory stages
	memoryMaxOutputTokens = 800
	memoryTemperature     = 0.7
)

//go:embed prompt/flash.md
var flashPromptRaw string

var flashPromptTmpl = template.Must(template.New("flash").Parse(flashPromptRaw))

var flashSchema = func() *jsonschema.Schema {
	schema, err := jsonschema.For[[]flashItem](nil)
	if err != nil {
		panic(err)
	}
	return schema
}()

// FlashResult holds the facts extracted in one turn
type FlashResult struct {
	Records []*model.MemoryRecord
	Tier    ParseTier
}

// FlashExtractor extracts atomic facts from recent dialogue
type FlashExtractor struct {
	generator interfaces.Generator
	embedder  interfaces.Embedder
	cfg       FlashConfig
	now       func() time.Time
}

func NewFlashExtractor(generator interfaces.Generator, embedder interfaces.Embedder, cfg FlashConfig) *FlashExtractor {
	return &FlashExtractor{
		generator: generator,
		embedder:  embedder,
		cfg:       cfg.WithDefaults(),
		now:       time.Now,
	}
}

// BuildPrompt renders the last events of the request history. It returns
// NoOpPrompt when there is no history.
func (x *FlashExtractor) BuildPrompt(ctx context.Context, req model.UpdaterRequest) (string, error) {
	events := model.LastEvents(req.EventHistory, x.cfg.MaxHistoryToProcess)
	if len(events) == 0 {
		return NoOpPrompt, nil
	}

	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = e.Line()
	}

	var buf bytes.Buffer
	if err := flashPromptTmpl.Execute(&buf, map[string]any{
		"DialogueHistory": strings.Join(lines, "\n"),
	}); err != nil {
		return "", goerr.Wrap(err, "failed to render flash prompt")
	}

	prompt := buf.String()
	observe.From(ctx).Prompt(StageFlash, prompt)
	return prompt, nil
}

// Run builds the prompt, generates and parses the output. Generation is
// skipped for the no-op prompt.
func (x *FlashExtractor) Run(ctx context.Context, req model.UpdaterRequest) (*FlashResult, error) {
	prompt, err := x.BuildPrompt(ctx, req)
	if err != nil {
		return nil, err
	}
	if prompt == NoOpPrompt {
		return &FlashResult{Tier: TierNone}, nil
	}

	output, err := x.generator.Generate(ctx, prompt,
		interfaces.WithResponseSchema(flashSchema),
		interfaces.WithTemperature(memoryTemperature),
		interfaces.WithMaxOutputTokens(memoryMaxOutputTokens),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate flash memories")
	}

	return x.Parse(ctx, output)
}

// Parse converts generated text into embedded records. When a later record
// in the batch is similar enough to an earlier one, the earlier is dropped.
func (x *FlashExtractor) Parse(ctx context.Context, output string) (*FlashResult, error) {
	parsed := ParseFlashOutput(output, x.cfg.MaxFlashMemory)
	if parsed.Tier == TierPattern {
		logging.From(ctx).Debug("flash output was not JSON, used pattern parse",
			"facts", len(parsed.Candidates))
	}
	if len(parsed.Candidates) == 0 {
		return &FlashResult{Tier: parsed.Tier}, nil
	}

	texts := make([]string, len(parsed.Candidates))
	for i, c := range parsed.Candidates {
		texts[i] = c.Text
	}

	embeddings, err := embedAll(ctx, x.embedder, texts)
	if err != nil {
		return nil, err
	}

	now := x.now()
	records := make([]*model.MemoryRecord, len(parsed.Candidates))
	for i, c := range parsed.Candidates {
		records[i] = model.NewMemoryRecord(c.Text, c.Topics, now)
		records[i].Embedding = embeddings[i]
	}

	records = dedupWithinBatch(records, x.cfg.SimilarityThreshold)
	observe.From(ctx).Memories(StageFlash, records)

	return &FlashResult{Records: records, Tier: parsed.Tier}, nil
}

// dedupWithinBatch keeps a record only if no later record in the batch
// reaches the threshold.
func dedupWithinBatch(records []*model.MemoryRecord, threshold float64) []*model.MemoryRecord {
	kept := make([]*model.MemoryRecord, 0, len(records))
	for i := range records {
		duplicated := false
		for j := i + 1; j < len(records); j++ {
			if CosineSimilarity(records[i].Embedding, records[j].Embedding) >= threshold {
				duplicated = true
				break
			}
		}
		if !duplicated {
			kept = append(kept, records[i])
		}
	}
	return kept
}

func embedAll(ctx context.Context, embedder interfaces.Embedder, texts []string) ([][]float32, error) {
	embeddings, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed memories", goerr.V("count", len(texts)))
	}
	if len(embeddings) != len(texts) {
		return nil, goerr.Wrap(ErrEmbeddingMismatch, "embedder returned unexpected number of vectors",
			goerr.V("expected", len(texts)),
			goerr.V("actual", len(embeddings)),
		)
	}
	return embeddings, nil
}

// SetClockForTest replaces the clock used for CreatedAt
func (x *FlashExtractor) SetClockForTest(now func() time.Time) {
	x.now = now
}
