package conversation

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/interfaces"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/policy"
	"github.com/m-mizutani/kioku/pkg/repository"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/m-mizutani/kioku/pkg/utils/observe"
	"golang.org/x/sync/errgroup"
)

// StageConversation is the observer stage name of the reply prompt
const StageConversation = "conversation"

// DefaultMaxHistoryToProcess is the number of history events rendered into
// the reply prompt
const DefaultMaxHistoryToProcess = 20

//go:embed prompt/system.md
var systemPromptRaw string

var systemPromptTmpl = template.Must(template.New("system").Parse(systemPromptRaw))

// Session runs conversation turns against a user's memory
type Session struct {
	store     *repository.Store
	replier   interfaces.Generator
	retriever *memory.Retriever
	scheduler *memory.Scheduler
	flash     *memory.FlashExtractor
	longTerm  *memory.LongTermConsolidator
	merger    *memory.Merger
	admission *policy.Admission

	maxHistoryToProcess int
}

// NewInput contains parameters for creating a new session
type NewInput struct {
	Store *repository.Store
	// Replier generates assistant replies
	Replier interfaces.Generator
	// Memorizer generates memories. Replier is used if nil.
	Memorizer interfaces.Generator
	Embedder  interfaces.Embedder
	Config    memory.Config
	// Admission is optional
	Admission *policy.Admission

	MaxHistoryToProcess int
}

func New(input NewInput) (*Session, error) {
	if input.Store == nil {
		return nil, goerr.New("store is required")
	}
	if input.Replier == nil {
		return nil, goerr.New("reply generator is required")
	}
	if input.Embedder == nil {
		return nil, goerr.New("embedder is required")
	}

	memorizer := input.Memorizer
	if memorizer == nil {
		memorizer = input.Replier
	}

	maxHistory := input.MaxHistoryToProcess
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistoryToProcess
	}

	cfg := input.Config.WithDefaults()
	return &Session{
		store:               input.Store,
		replier:             input.Replier,
		retriever:           memory.NewRetriever(input.Embedder, cfg.Retriever),
		scheduler:           memory.NewScheduler(cfg.Scheduler),
		flash:               memory.NewFlashExtractor(memorizer, input.Embedder, cfg.Flash),
		longTerm:            memory.NewLongTermConsolidator(memorizer, input.Embedder, cfg.LongTerm),
		merger:              memory.NewMerger(cfg.Merge),
		admission:           input.Admission,
		maxHistoryToProcess: maxHistory,
	}, nil
}

// TurnResult is the outcome of one conversation turn
type TurnResult struct {
	Reply            string
	RelevantMemories []string
	Decision         *memory.Decision
	// Snapshot is the merged state that was saved
	Snapshot *model.MemorySnapshot
}

// Send runs one turn: it answers the query with relevant memories in the
// prompt, runs the scheduled memory stages and saves the merged snapshot.
// If any step fails the stored snapshot is left as it was.
func (s *Session) Send(ctx context.Context, userID model.UserID, query string) (*TurnResult, error) {
	ctx = logging.With(ctx, logging.From(ctx).With("turn_id", uuid.NewString()))
	snapshot := s.store.Load(ctx, userID)

	relevant, err := s.retriever.Retrieve(ctx, query, snapshot)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to retrieve memories", goerr.V("user_id", userID))
	}

	systemPrompt, err := s.buildSystemPrompt(snapshot.ConversationHistory, relevant)
	if err != nil {
		return nil, err
	}
	observe.From(ctx).Prompt(StageConversation, systemPrompt)

	reply, err := s.replier.Generate(ctx, query, interfaces.WithSystem(systemPrompt))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate reply", goerr.V("user_id", userID))
	}

	decision, err := s.scheduler.Schedule(ctx, memory.TurnInput{
		Query:      query,
		Snapshot:   snapshot,
		History:    snapshot.ConversationHistory,
		Candidates: []memory.ResponseCandidate{memory.TextResponse(reply)},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to schedule memory stages")
	}

	results, err := s.runStages(ctx, decision)
	if err != nil {
		return nil, err
	}

	merged := s.merger.Merge(ctx, results...)
	s.store.Save(ctx, userID, merged)

	logging.From(ctx).Debug("turn completed",
		"user_id", userID,
		"turn", decision.TurnCount,
		"flash", decision.RunFlash,
		"long_term", decision.RunLongTerm,
		"relevant", len(relevant),
	)

	return &TurnResult{
		Reply:            decision.Response,
		RelevantMemories: relevant,
		Decision:         decision,
		Snapshot:         merged,
	}, nil
}

// runStages runs flash and long-term stages concurrently as scheduled and
// applies the admission policy to their records.
func (s *Session) runStages(ctx context.Context, decision *memory.Decision) ([]memory.StageResult, error) {
	var (
		flashResult    *memory.FlashResult
		longTermResult *memory.LongTermResult
	)

	eg, egCtx := errgroup.WithContext(ctx)
	if decision.RunFlash {
		eg.Go(func() error {
			result, err := s.flash.Run(egCtx, decision.Request)
			if err != nil {
				return goerr.Wrap(err, "failed to run flash extraction")
			}
			flashResult = result
			return nil
		})
	}
	if decision.RunLongTerm {
		eg.Go(func() error {
			result, err := s.longTerm.Run(egCtx, decision.Request)
			if err != nil {
				return goerr.Wrap(err, "failed to run long-term consolidation")
			}
			longTermResult = result
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	results := []memory.StageResult{decision}
	if flashResult != nil {
		records, err := s.admission.Filter(ctx, policy.KindFlash, flashResult.Records)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to apply admission policy to flash memories")
		}
		flashResult.Records = records
		results = append(results, flashResult)
	}
	if longTermResult != nil {
		records, err := s.admission.Filter(ctx, policy.KindLongTerm, longTermResult.Records)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to apply admission policy to long-term memories")
		}
		longTermResult.Records = records
		results = append(results, longTermResult)
	}

	return results, nil
}

func (s *Session) buildSystemPrompt(history []model.InteractionEvent, relevant []string) (string, error) {
	lines := make([]string, 0, s.maxHistoryToProcess)
	for _, e := range model.LastEvents(history, s.maxHistoryToProcess) {
		lines = append(lines, e.Line())
	}

	var memoryContext string
	if len(relevant) > 0 {
		memoryContext = "Relevant memories:\n- " + strings.Join(relevant, "\n- ")
	}

	var buf bytes.Buffer
	if err := systemPromptTmpl.Execute(&buf, map[string]any{
		"ConversationHistory": strings.Join(lines, "\n"),
		"MemoryContext":       memoryContext,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to render system prompt")
	}
	return buf.String(), nil
}

// Recall returns memories relevant to the query from the user's snapshot
// without running a turn.
func (s *Session) Recall(ctx context.Context, userID model.UserID, query string, limit int) ([]memory.ScoredMemory, error) {
	snapshot := s.store.Load(ctx, userID)
	scored, err := s.retriever.RetrieveScored(ctx, query, snapshot, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to recall memories", goerr.V("user_id", userID))
	}
	return scored, nil
}

// Snapshot returns the user's current snapshot
func (s *Session) Snapshot(ctx context.Context, userID model.UserID) *model.MemorySnapshot {
	return s.store.Load(ctx, userID)
}

// Forget deletes all memory of the user
func (s *Session) Forget(ctx context.Context, userID model.UserID) error {
	return s.store.Delete(ctx, userID)
}
