package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/scatty/backend/internal/model/chat"
)

const providerArk = "ark"

// ArkGenerator runs a prompt template + chat model chain over a Volcengine Ark model
type ArkGenerator struct {
	systemPrompt string
	chain        compose.Runnable[map[string]any, *schema.Message]
	logger       zerolog.Logger
}

// NewArkGenerator compiles the chain around an existing chat model
func NewArkGenerator(ctx context.Context, chatModel model.BaseChatModel, systemPrompt string, logger zerolog.Logger) (*ArkGenerator, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.MessagesPlaceholder("query", false),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ArkGenerator{
		systemPrompt: systemPrompt,
		chain:        runnable,
		logger:       logger.With().Str("component", "ai").Str("provider", providerArk).Logger(),
	}, nil
}

// Generate implements Generator
func (g *ArkGenerator) Generate(ctx context.Context, req Request) (Reply, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Reply{}, Fail(providerArk, ErrEmptyText, false)
	}

	input := map[string]any{
		"system":  g.systemPrompt,
		"history": arkHistory(req.History),
		"query":   []*schema.Message{arkQuery(req)},
	}

	response, err := g.chain.Invoke(ctx, input)
	if err != nil {
		return Reply{}, Fail(providerArk, err, true)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return Reply{}, Fail(providerArk, errors.New("empty response from model"), false)
	}

	reply := ParseReply(response.Content)
	g.logger.Debug().
		Str("session", req.SessionID).
		Int("history", len(req.History)).
		Bool("image", req.Image != nil).
		Str("emotion", string(reply.Emotion.Emotion)).
		Int("length", len(reply.Text)).
		Msg("generated reply")
	return reply, nil
}

func arkHistory(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}

func arkQuery(req Request) *schema.Message {
	if req.Image == nil || len(req.Image.Data) == 0 {
		return schema.UserMessage(req.Text)
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", req.Image.MIMEType, base64.StdEncoding.EncodeToString(req.Image.Data))
	return &schema.Message{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: req.Text},
			{Type: schema.ChatMessagePartTypeImageURL, ImageURL: &schema.ChatMessageImageURL{URL: dataURL}},
		},
	}
}
