package provider

import (
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"chatgate/internal/apperr"
	"chatgate/internal/openai"
)

// QnA targets a backend with a single question / answer contract: the
// outbound payload carries only the most recent user message, and replies
// arrive as {"data": {"text": ...}}.
type QnA struct {
	logger *zap.Logger
}

func NewQnA(logger *zap.Logger) *QnA {
	return &QnA{logger: logger.Named("qna")}
}

func (p *QnA) Name() string { return "qna" }

func (p *QnA) TransformRequest(req *openai.ChatRequest) []byte {
	question := req.LastUserContent()

	// Earlier turns are assembled but deliberately withheld: the backend
	// contract is question-only for now, pending a richer context channel.
	history := buildContext(req.Messages)
	p.logger.Debug("conversation context withheld from backend",
		zap.Int("messages", len(history)),
	)

	payload, err := sjson.SetBytes([]byte(`{}`), "question", question)
	if err != nil {
		p.logger.Error("failed to build backend payload, sending empty payload", zap.Error(err))
		return []byte("{}")
	}
	return payload
}

// buildContext projects the full conversation into role/content pairs. Not
// forwarded; kept so the withheld-context contract stays explicit.
func buildContext(messages []openai.Message) []openai.Message {
	history := make([]openai.Message, 0, len(messages))
	for _, m := range messages {
		history = append(history, openai.Message{Role: m.Role, Content: m.Content})
	}
	return history
}

func (p *QnA) TransformResponse(payload []byte, model string) (*openai.ChatResponse, error) {
	text := gjson.GetBytes(payload, "data.text")
	if text.Type != gjson.String {
		return nil, apperr.Transform("missing data.text in backend payload: "+snippet(payload), nil)
	}
	answer := text.String()

	var usage openai.Usage
	if u := gjson.GetBytes(payload, "usage"); u.Exists() {
		usage = openai.Usage{
			PromptTokens:     int(u.Get("prompt_tokens").Int()),
			CompletionTokens: int(u.Get("completion_tokens").Int()),
			TotalTokens:      int(u.Get("total_tokens").Int()),
		}
	} else {
		// Rough estimate when the backend does not report usage: four
		// characters per token, nothing counted for the prompt.
		completion := (len(answer) + 3) / 4
		usage = openai.Usage{
			PromptTokens:     0,
			CompletionTokens: completion,
			TotalTokens:      completion,
		}
	}

	return &openai.ChatResponse{
		ID:      openai.NewCompletionID(),
		Object:  openai.ObjectChatCompletion,
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []openai.Choice{
			{
				Index: 0,
				Message: openai.Message{
					Role:    openai.RoleAssistant,
					Content: answer,
				},
				FinishReason: openai.FinishReasonStop,
			},
		},
		Usage: usage,
	}, nil
}

func (p *QnA) ExtractStreamingText(payload []byte) (string, error) {
	text := gjson.GetBytes(payload, "data.text")
	if text.Type != gjson.String {
		return "", apperr.Transform("missing data.text in backend payload: "+snippet(payload), nil)
	}
	return text.String(), nil
}
