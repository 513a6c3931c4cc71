package provider

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"chatgate/internal/apperr"
	"chatgate/internal/openai"
)

// Passthrough assumes the backend natively speaks the chat-completion wire
// schema: requests go out as-is and replies come back already in shape.
type Passthrough struct {
	logger *zap.Logger
}

func NewPassthrough(logger *zap.Logger) *Passthrough {
	return &Passthrough{logger: logger.Named("passthrough")}
}

func (p *Passthrough) Name() string { return "passthrough" }

func (p *Passthrough) TransformRequest(req *openai.ChatRequest) []byte {
	body, err := json.Marshal(req)
	if err != nil {
		p.logger.Error("failed to serialize request, sending empty payload", zap.Error(err))
		return []byte("{}")
	}
	return body
}

func (p *Passthrough) TransformResponse(payload []byte, _ string) (*openai.ChatResponse, error) {
	var resp openai.ChatResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, apperr.Transform("backend payload is not a chat completion: "+snippet(payload), err)
	}
	// Lenient decoding accepts unrelated JSON objects as an all-zero
	// response; an id and at least one choice are required before the
	// payload counts as a chat completion.
	if resp.ID == "" || len(resp.Choices) == 0 {
		return nil, apperr.Transform("backend payload lacks chat completion fields: "+snippet(payload), nil)
	}
	return &resp, nil
}

func (p *Passthrough) ExtractStreamingText(payload []byte) (string, error) {
	content := gjson.GetBytes(payload, "choices.0.message.content")
	if content.Type != gjson.String {
		return "", apperr.Transform("missing choices[0].message.content in backend payload: "+snippet(payload), nil)
	}
	return content.String(), nil
}
