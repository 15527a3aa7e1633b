package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"hemisphere-atlas/internal/logger"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GenerationRequest is one structured-output call: an instruction, the JSON
// shape the answer must follow and a sampling temperature.
type GenerationRequest struct {
	Prompt      string
	Schema      *genai.Schema
	Temperature float32
}

// ContentGenerator returns the raw text payload for a request.
type ContentGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

type GeminiGenerator struct {
	apiKey    string
	modelName string
	log       logger.ILogger

	mu     sync.Mutex
	client *genai.Client

	rateChan chan struct{} // Token bucket
}

// NewGeminiGenerator does not dial. The client is created on first use so a
// missing API key shows up as a ServiceError on the first request.
func NewGeminiGenerator(apiKey, modelName string, concurrentReqs int, log logger.ILogger) *GeminiGenerator {
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	if concurrentReqs < 1 {
		concurrentReqs = 1
	}

	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiGenerator{
		apiKey:    apiKey,
		modelName: modelName,
		log:       log,
		rateChan:  rateChan,
	}
}

func (g *GeminiGenerator) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		g.client.Close()
		g.client = nil
	}
}

func (g *GeminiGenerator) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}
	if g.apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.client = client
	return client, nil
}

// acquireRate blocks until a rate slot is available
func (g *GeminiGenerator) acquireRate(ctx context.Context) error {
	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (g *GeminiGenerator) releaseRate() {
	g.rateChan <- struct{}{}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return "", &ServiceError{Op: "gemini.connect", Err: err}
	}

	if err := g.acquireRate(ctx); err != nil {
		return "", &ServiceError{Op: "gemini.rate", Err: err}
	}
	defer g.releaseRate()

	model := client.GenerativeModel(g.modelName)
	model.SetTemperature(req.Temperature)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = req.Schema

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", &ServiceError{Op: "gemini.generate", Err: err}
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			g.log.Warn("gemini", "candidate did not finish normally", map[string]interface{}{
				"candidate":     i,
				"finish_reason": cand.FinishReason.String(),
				"token_count":   cand.TokenCount,
			})
		}
	}

	return extractText(resp), nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
