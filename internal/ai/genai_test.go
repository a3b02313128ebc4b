package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/soaringjerry/adi/internal/services"
)

type fakeModels struct {
	model    string
	prompt   string
	maxOut   int32
	deadline bool
	text     string
	err      error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.prompt = contents[0].Parts[0].Text
	f.maxOut = cfg.MaxOutputTokens
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
	}}}, nil
}

func TestGenerateText(t *testing.T) {
	fake := &fakeModels{text: " Adoption is rising. "}
	g := newGenerator(fake, "", time.Second)

	out, err := g.GenerateText(context.Background(), services.TextRequest{Prompt: "summarize", MaxTokens: 256})
	require.NoError(t, err)
	assert.Equal(t, "Adoption is rising.", out)
	assert.Equal(t, DefaultModel, fake.model)
	assert.Equal(t, "summarize", fake.prompt)
	assert.Equal(t, int32(256), fake.maxOut)
	assert.True(t, fake.deadline, "timeout must bound the call")

	_, err = g.GenerateText(context.Background(), services.TextRequest{Prompt: "x", Model: "gemini-pro"})
	require.NoError(t, err)
	assert.Equal(t, "gemini-pro", fake.model)
}

func TestGenerateTextFailures(t *testing.T) {
	fake := &fakeModels{err: errors.New("429")}
	g := newGenerator(fake, "m", 0)
	_, err := g.GenerateText(context.Background(), services.TextRequest{Prompt: "x"})
	assert.ErrorIs(t, err, fake.err)

	fake.err = nil
	fake.text = "   "
	_, err = g.GenerateText(context.Background(), services.TextRequest{Prompt: "x"})
	assert.Error(t, err)
}

func TestNewGeminiGeneratorRequiresKey(t *testing.T) {
	_, err := NewGeminiGenerator(context.Background(), "", "", 0)
	assert.Error(t, err)
}
