package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/zhouzirui/scatty/backend/internal/config"
	"github.com/zhouzirui/scatty/backend/internal/model/chat"
)

const providerGemini = "gemini"

// GeminiGenerator calls the Gemini API with inline image parts and a JSON response type.
type GeminiGenerator struct {
	models       geminiModels
	model        string
	systemPrompt string
	temperature  *float32
	topP         *float32
	maxTokens    int32
	logger       zerolog.Logger
}

// geminiModels is the subset of genai.Models used here.
type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGeminiGenerator creates the Gemini client from configuration.
func NewGeminiGenerator(ctx context.Context, cfg config.AIConfig, systemPrompt string, logger zerolog.Logger) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	g := &GeminiGenerator{
		models:       client.Models,
		model:        cfg.GeminiModel,
		systemPrompt: systemPrompt,
		logger:       logger.With().Str("component", "ai").Str("provider", providerGemini).Logger(),
	}
	if cfg.Temperature != nil {
		g.temperature = genai.Ptr(float32(*cfg.Temperature))
	}
	if cfg.TopP != nil {
		g.topP = genai.Ptr(float32(*cfg.TopP))
	}
	if cfg.MaxTokens != nil {
		g.maxTokens = int32(*cfg.MaxTokens)
	}
	return g, nil
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (Reply, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Reply{}, Fail(providerGemini, ErrEmptyText, false)
	}

	resp, err := g.models.GenerateContent(ctx, g.model, geminiContents(req), g.contentConfig())
	if err != nil {
		return Reply{}, Fail(providerGemini, err, geminiRetryable(err))
	}

	raw := resp.Text()
	if strings.TrimSpace(raw) == "" {
		// usually a safety block; asking again gives the same answer
		return Reply{}, Fail(providerGemini, errors.New("empty response from model"), false)
	}

	reply := ParseReply(raw)
	g.logger.Debug().
		Str("session", req.SessionID).
		Int("history", len(req.History)).
		Bool("image", req.Image != nil).
		Str("emotion", string(reply.Emotion.Emotion)).
		Int("length", len(reply.Text)).
		Msg("generated reply")
	return reply, nil
}

func (g *GeminiGenerator) contentConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(g.systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       g.temperature,
		TopP:              g.topP,
		MaxOutputTokens:   g.maxTokens,
	}
}

func geminiContents(req Request) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, msg := range req.History {
		role := genai.Role(genai.RoleUser)
		if msg.Role == chat.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Text)}
	if req.Image != nil && len(req.Image.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType))
	}
	return append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
}

func geminiRetryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return retryableStatus(apiErrPtr.Code)
	}
	// transport errors
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
