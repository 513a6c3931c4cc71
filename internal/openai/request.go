package openai

import "encoding/json"

// ChatRequest is the inbound chat-completion request. Every sampling
// parameter is optional; pointers distinguish "absent" from a zero value so
// pass-through serialization does not invent fields the caller never sent.
//
// Unrecognized top-level fields survive decoding in Extra so providers can
// consult or ignore them; they are not automatically forwarded.
type ChatRequest struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Temperature      *float64  `json:"temperature,omitempty"`
	TopP             *float64  `json:"top_p,omitempty"`
	N                *int      `json:"n,omitempty"`
	Stream           bool      `json:"stream,omitempty"`
	Stop             []string  `json:"stop,omitempty"`
	MaxTokens        *int      `json:"max_tokens,omitempty"`
	PresencePenalty  *float64  `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64  `json:"frequency_penalty,omitempty"`
	User             string    `json:"user,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// knownRequestFields are the top-level keys handled by the struct tags
// above; everything else lands in Extra.
var knownRequestFields = map[string]struct{}{
	"model":             {},
	"messages":          {},
	"temperature":       {},
	"top_p":             {},
	"n":                 {},
	"stream":            {},
	"stop":              {},
	"max_tokens":        {},
	"presence_penalty":  {},
	"frequency_penalty": {},
	"user":              {},
}

type chatRequestAlias ChatRequest

func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	var alias chatRequestAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if _, known := knownRequestFields[key]; known {
			delete(raw, key)
		}
	}
	if len(raw) > 0 {
		alias.Extra = raw
	}

	*r = ChatRequest(alias)
	return nil
}

func (r ChatRequest) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(chatRequestAlias(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, value := range r.Extra {
		if _, known := knownRequestFields[key]; known {
			continue
		}
		merged[key] = value
	}
	return json.Marshal(merged)
}

// LastUserContent returns the content of the most recent message whose role
// is "user", or "" if the conversation has none.
func (r *ChatRequest) LastUserContent() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}
