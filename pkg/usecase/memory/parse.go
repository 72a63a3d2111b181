package memory

import (
	"encoding/json"
	"regexp"
	"strings"
)

// NoOpPrompt is emitted instead of a flash prompt when there is no dialogue
// to process. Generation is skipped and parsing it yields no candidates.
const NoOpPrompt = "NO_OP_SKIP_TURN"

// ParseTier tells which parse strategy produced the candidates
type ParseTier int

const (
	TierNone ParseTier = iota
	TierStructured
	TierPattern
)

func (x ParseTier) String() string {
	switch x {
	case TierStructured:
		return "structured"
	case TierPattern:
		return "pattern"
	default:
		return "none"
	}
}

// FactCandidate is a fact parsed from generated text, not yet embedded
type FactCandidate struct {
	Text   string
	Topics []string
}

// ParseResult is the output of ParseFlashOutput
type ParseResult struct {
	Candidates []FactCandidate
	Tier       ParseTier
}

type flashItem struct {
	Important bool   `json:"important" jsonschema:"Whether the fact is worth remembering"`
	Memory    string `json:"memory" jsonschema:"The fact as a short standalone sentence"`
	Topic     string `json:"topic" jsonschema:"One or two word topic label, or n/a"`
}

var (
	codeFence     = regexp.MustCompile("```(?:json)?")
	whitespaces   = regexp.MustCompile(`\s+`)
	factSeparator = regexp.MustCompile(`(?i)\s-\sfact:`)
	factPattern   = regexp.MustCompile(`(?i)fact:\s*(.*?)\s*\.?\s*topic:\s*(.*)`)
)

// ParseFlashOutput parses generated flash extraction output. It first tries
// JSON (a list of items or a single item, optionally inside a code fence)
// and falls back to "Fact: <text>. Topic: <label>" segments, taking at most
// maxFallback of them. Blank text and the no-op marker yield TierNone.
func ParseFlashOutput(text string, maxFallback int) ParseResult {
	if strings.TrimSpace(text) == "" || strings.Contains(text, NoOpPrompt) {
		return ParseResult{Tier: TierNone}
	}

	if candidates, ok := parseStructured(text); ok {
		return ParseResult{Candidates: candidates, Tier: TierStructured}
	}

	candidates := parsePattern(text, maxFallback)
	if len(candidates) == 0 {
		return ParseResult{Tier: TierNone}
	}
	return ParseResult{Candidates: candidates, Tier: TierPattern}
}

func parseStructured(text string) ([]FactCandidate, bool) {
	cleaned := strings.TrimSpace(codeFence.ReplaceAllString(text, ""))

	var raw any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, false
	}

	items, ok := raw.([]any)
	if !ok {
		items = []any{raw}
	}

	var candidates []FactCandidate
	for _, v := range items {
		item, ok := v.(map[string]any)
		if !ok || !truthy(item["important"]) {
			continue
		}
		memory, _ := item["memory"].(string)
		memory = strings.TrimSpace(memory)
		if memory == "" {
			continue
		}
		topic, _ := item["topic"].(string)
		candidates = append(candidates, FactCandidate{
			Text:   memory,
			Topics: topicList(topic),
		})
	}
	return candidates, true
}

func parsePattern(text string, limit int) []FactCandidate {
	if limit <= 0 {
		limit = DefaultMaxFlashMemory
	}
	normalized := strings.TrimSpace(whitespaces.ReplaceAllString(text, " "))

	// Cut before each " - Fact:" so a topic never runs into the next fact
	var segments []string
	start := 0
	for _, loc := range factSeparator.FindAllStringIndex(normalized, -1) {
		segments = append(segments, normalized[start:loc[0]])
		start = loc[1] - len("fact:")
	}
	segments = append(segments, normalized[start:])

	var candidates []FactCandidate
	for _, seg := range segments {
		if len(candidates) >= limit {
			break
		}
		m := factPattern.FindStringSubmatch(seg)
		if m == nil {
			continue
		}
		fact := strings.TrimSpace(m[1])
		if fact == "" {
			continue
		}
		topic := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(m[2]), "."))
		candidates = append(candidates, FactCandidate{
			Text:   fact,
			Topics: topicList(topic),
		})
	}
	return candidates
}

func topicList(topic string) []string {
	topic = strings.TrimSpace(topic)
	if topic == "" || strings.EqualFold(topic, "n/a") {
		return []string{}
	}
	return []string{topic}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	default:
		return false
	}
}
