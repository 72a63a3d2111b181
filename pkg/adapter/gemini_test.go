package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/interfaces"
)

func newTestGemini(t *testing.T) *adapter.GeminiClient {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT is not set")
	}

	client, err := adapter.NewGemini(context.Background(), projectID, "us-central1",
		adapter.WithEmbeddingBatchSize(1),
	)
	gt.NoError(t, err)
	return client
}

func TestGeminiGenerate(t *testing.T) {
	client := newTestGemini(t)
	ctx := context.Background()

	resp, err := client.Generate(ctx, "Hello, what is the capital of France?")
	gt.NoError(t, err)
	gt.S(t, resp).Contains("Paris")
	t.Log("response:", resp)
}

func TestGeminiGenerateWithSchema(t *testing.T) {
	client := newTestGemini(t)
	ctx := context.Background()

	type answer struct {
		City string `json:"city"`
	}
	schema, err := jsonschema.For[answer](nil)
	gt.NoError(t, err)

	resp, err := client.Generate(ctx, "What is the capital of France?",
		interfaces.WithResponseSchema(schema),
		interfaces.WithSystem("Answer in JSON."),
	)
	gt.NoError(t, err)
	gt.S(t, resp).Contains(`"city"`)
}

func TestGeminiEmbedBatch(t *testing.T) {
	client := newTestGemini(t)
	ctx := context.Background()

	vectors, err := client.EmbedBatch(ctx, []string{"likes tea", "likes coffee", "works remotely"})
	gt.NoError(t, err)
	gt.A(t, vectors).Length(3)
	for _, v := range vectors {
		gt.A(t, v).Longer(0)
	}
}
