package model

import "encoding/json"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// InteractionEvent is one dialogue utterance. Events are immutable once
// appended to a history.
type InteractionEvent struct {
	Role      Role   `json:"role" firestore:"role"`
	Content   string `json:"content" firestore:"content"`
	AgentName string `json:"agentName,omitempty" firestore:"agent_name,omitempty"`
}

// UnmarshalJSON accepts the legacy "utterance" field when "content" is absent.
func (e *InteractionEvent) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role      Role   `json:"role"`
		Content   string `json:"content"`
		Utterance string `json:"utterance"`
		AgentName string `json:"agentName"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.Role = raw.Role
	e.Content = raw.Content
	if e.Content == "" {
		e.Content = raw.Utterance
	}
	e.AgentName = raw.AgentName
	return nil
}

// Line renders the event as "role: content".
func (e InteractionEvent) Line() string {
	return string(e.Role) + ": " + e.Content
}

// CountRole returns the number of events with the given role.
func CountRole(events []InteractionEvent, role Role) int {
	n := 0
	for _, e := range events {
		if e.Role == role {
			n++
		}
	}
	return n
}

// LastEvents returns the last n events. A non-positive n returns nil.
func LastEvents(events []InteractionEvent, n int) []InteractionEvent {
	if n <= 0 {
		return nil
	}
	if len(events) <= n {
		return events
	}
	return events[len(events)-n:]
}
