package memory_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
)

func TestParseFlashOutputPattern(t *testing.T) {
	result := memory.ParseFlashOutput("Fact: likes jazz. Topic: music - Fact: works remotely. Topic: career", 4)
	gt.Equal(t, result.Tier, memory.TierPattern)
	gt.Equal(t, result.Candidates, []memory.FactCandidate{
		{Text: "likes jazz", Topics: []string{"music"}},
		{Text: "works remotely", Topics: []string{"career"}},
	})
}

func TestParseFlashOutputPatternVariants(t *testing.T) {
	t.Run("case-insensitive and multiline", func(t *testing.T) {
		result := memory.ParseFlashOutput("fact: has a dog named Rex\nTOPIC: pets\n - Fact: lives in Tokyo topic: location.", 4)
		gt.Equal(t, result.Tier, memory.TierPattern)
		gt.Equal(t, result.Candidates, []memory.FactCandidate{
			{Text: "has a dog named Rex", Topics: []string{"pets"}},
			{Text: "lives in Tokyo", Topics: []string{"location"}},
		})
	})

	t.Run("capped", func(t *testing.T) {
		text := "Fact: a. Topic: x - Fact: b. Topic: x - Fact: c. Topic: x"
		result := memory.ParseFlashOutput(text, 2)
		gt.A(t, result.Candidates).Length(2)
		gt.Equal(t, result.Candidates[1].Text, "b")
	})

	t.Run("no facts", func(t *testing.T) {
		result := memory.ParseFlashOutput("Nothing worth remembering here.", 4)
		gt.Equal(t, result.Tier, memory.TierNone)
		gt.A(t, result.Candidates).Length(0)
	})
}

func TestParseFlashOutputStructured(t *testing.T) {
	t.Run("list in code fence", func(t *testing.T) {
		text := "```json\n" + `[
			{"important": true, "memory": "likes jazz", "topic": "music"},
			{"important": false, "memory": "said hello", "topic": "greeting"},
			{"important": true, "memory": "", "topic": "empty"},
			{"important": true, "memory": "is vegetarian", "topic": "n/a"}
		]` + "\n```"
		result := memory.ParseFlashOutput(text, 4)
		gt.Equal(t, result.Tier, memory.TierStructured)
		gt.Equal(t, result.Candidates, []memory.FactCandidate{
			{Text: "likes jazz", Topics: []string{"music"}},
			{Text: "is vegetarian", Topics: []string{}},
		})
	})

	t.Run("single object", func(t *testing.T) {
		result := memory.ParseFlashOutput(`{"important": true, "memory": "works remotely", "topic": "career"}`, 4)
		gt.Equal(t, result.Tier, memory.TierStructured)
		gt.A(t, result.Candidates).Length(1)
		gt.Equal(t, result.Candidates[0].Topics, []string{"career"})
	})

	t.Run("structured tier is not capped", func(t *testing.T) {
		text := `[{"important":true,"memory":"a","topic":"x"},{"important":true,"memory":"b","topic":"x"},{"important":true,"memory":"c","topic":"x"}]`
		result := memory.ParseFlashOutput(text, 1)
		gt.A(t, result.Candidates).Length(3)
	})

	t.Run("empty list", func(t *testing.T) {
		result := memory.ParseFlashOutput("[]", 4)
		gt.Equal(t, result.Tier, memory.TierStructured)
		gt.A(t, result.Candidates).Length(0)
	})
}

func TestParseFlashOutputNoOp(t *testing.T) {
	gt.Equal(t, memory.ParseFlashOutput("", 4).Tier, memory.TierNone)
	gt.Equal(t, memory.ParseFlashOutput("  \n ", 4).Tier, memory.TierNone)
	gt.Equal(t, memory.ParseFlashOutput(memory.NoOpPrompt, 4).Tier, memory.TierNone)
	gt.Equal(t, memory.ParseFlashOutput("Fact: x. Topic: y "+memory.NoOpPrompt, 4).Tier, memory.TierNone)
}
