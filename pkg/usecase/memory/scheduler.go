package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

const (
	userAgentName      = "User"
	assistantAgentName = "Assistant"
)

// TurnInput is everything the scheduler needs to close one turn
type TurnInput struct {
	Query    string
	Snapshot *model.MemorySnapshot
	// History before this turn
	History    []model.InteractionEvent
	Candidates []ResponseCandidate
}

// Decision is the scheduler's output for one turn
type Decision struct {
	Request     model.UpdaterRequest
	Response    string
	RunFlash    bool
	RunLongTerm bool
	TurnCount   int
}

// Scheduler appends the turn to history and decides which memory stages run
type Scheduler struct {
	cfg SchedulerConfig
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	return &Scheduler{cfg: cfg.WithDefaults()}
}

// Schedule records the user query and the reply (if any) and counts user
// turns. Flash and long-term stages run when the count is a positive
// multiple of their interval.
func (s *Scheduler) Schedule(ctx context.Context, in TurnInput) (*Decision, error) {
	if in.Snapshot == nil {
		return nil, goerr.Wrap(ErrMissingSnapshot, "failed to schedule turn")
	}

	history := make([]model.InteractionEvent, 0, len(in.History)+2)
	history = append(history, in.History...)
	history = append(history, model.InteractionEvent{
		Role:      model.RoleUser,
		Content:   in.Query,
		AgentName: userAgentName,
	})

	response := extractResponse(in.Candidates)
	if response != "" {
		history = append(history, model.InteractionEvent{
			Role:      model.RoleAssistant,
			Content:   response,
			AgentName: assistantAgentName,
		})
	}

	turnCount := model.CountRole(history, model.RoleUser)
	runFlash := turnCount > 0 && turnCount%s.cfg.FlashInterval == 0
	runLongTerm := turnCount > 0 && turnCount%s.cfg.LongTermInterval == 0

	logging.From(ctx).Debug("scheduled turn",
		"turn", turnCount,
		"run_flash", runFlash,
		"run_long_term", runLongTerm,
	)

	return &Decision{
		Request: model.UpdaterRequest{
			EventHistory:   history,
			MemorySnapshot: in.Snapshot,
			ForceLongTerm:  runLongTerm,
		},
		Response:    response,
		RunFlash:    runFlash,
		RunLongTerm: runLongTerm,
		TurnCount:   turnCount,
	}, nil
}
