// Package openai defines the chat-completion wire shapes the gateway
// exchanges with its callers.
package openai

import "github.com/google/uuid"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	ObjectChatCompletion = "chat.completion"
	ObjectChunk          = "chat.completion.chunk"
	ObjectModel          = "model"
	ObjectList           = "list"

	FinishReasonStop = "stop"
)

// Message is one conversation turn. Role is deliberately an open string:
// callers may introduce roles this gateway has never seen.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Delta carries the incremental payload of a streamed chunk: a role marker,
// a content fragment, or neither (terminal chunk).
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type ChunkChoice struct {
	Index        int    `json:"index"`
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason,omitempty"`
}

type Chunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type ModelsResponse struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// NewCompletionID returns a response identifier that is unique across
// concurrent requests. Wall-clock-derived ids collide under sub-millisecond
// concurrency, so this uses a random UUID.
func NewCompletionID() string {
	return "chatcmpl-" + uuid.NewString()
}
