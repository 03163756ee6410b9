package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/model"
)

const geminiPrompt = `You are a bug bounty triage expert. Analyze the scanner output below.
Reply with a single JSON object and nothing else:
{"verdict": "<one line summary, then details>", "priority_score": <integer 0-10>, "bounty_estimate": <USD number or null>}

Scanner output:
%s`

// generateFunc sends one prompt and returns the reply text.
type generateFunc func(ctx context.Context, prompt string) (string, error)

// Gemini classifies through a Google Gemini model.
type Gemini struct {
	client   *genai.Client
	generate generateFunc
	logger   logging.Logger
}

func NewGemini(ctx context.Context, apiKey, modelName string, logger logging.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultConfig().Model
	}
	gm := client.GenerativeModel(modelName)
	gm.SetTemperature(0)
	gm.ResponseMIMEType = "application/json"

	g := &Gemini{
		client: client,
		logger: logger.With(logging.Field{Key: "component", Value: "classifier"}),
	}
	g.generate = func(ctx context.Context, prompt string) (string, error) {
		resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", err
		}
		return replyText(resp)
	}
	return g, nil
}

func replyText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response candidates")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

func (g *Gemini) Classify(ctx context.Context, text string) (model.Classification, error) {
	reply, err := g.generate(ctx, fmt.Sprintf(geminiPrompt, text))
	if err != nil {
		return model.Classification{}, fmt.Errorf("gemini classify: %w", err)
	}
	c, err := ParseAnswer(reply)
	if err != nil {
		return model.Classification{}, fmt.Errorf("gemini classify: %w", err)
	}
	g.logger.Debug("classified",
		logging.Field{Key: "priority", Value: c.PriorityScore},
		logging.Field{Key: "reply_bytes", Value: len(reply)})
	return c, nil
}

func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
