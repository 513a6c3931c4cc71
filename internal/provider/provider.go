// Package provider maps between the gateway's wire schema and a concrete
// backend's schema. Each variant supplies three transformation hooks; the
// call/status-check/decode orchestration is implemented once and shared.
package provider

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"chatgate/internal/apperr"
	"chatgate/internal/backend"
	"chatgate/internal/config"
	"chatgate/internal/openai"
)

// Caller is the slice of the authenticated client the orchestration needs;
// tests substitute a stub so no network stack is required.
type Caller interface {
	Post(ctx context.Context, payload []byte) (*backend.Response, error)
}

type Provider interface {
	Name() string

	// TransformRequest builds the outbound backend payload. It never
	// fails: serialization trouble degrades to an empty payload plus a
	// logged diagnostic, and the backend still gets its attempt.
	TransformRequest(req *openai.ChatRequest) []byte

	// TransformResponse converts a backend payload into a ChatResponse,
	// failing when the payload lacks the fields this variant requires.
	TransformResponse(payload []byte, model string) (*openai.ChatResponse, error)

	// ExtractStreamingText pulls the complete reply text out of a backend
	// payload for the simulated-streaming path.
	ExtractStreamingText(payload []byte) (string, error)
}

// RequestHandler lets a variant replace the shared orchestration. None of
// the built-in variants do.
type RequestHandler interface {
	HandleRequest(ctx context.Context, client Caller, req *openai.ChatRequest) (*openai.ChatResponse, error)
}

// HandleRequest is the shared non-streaming orchestration: transform the
// request, make exactly one backend call, check the status, and hand the
// body to the variant.
func HandleRequest(ctx context.Context, client Caller, p Provider, req *openai.ChatRequest) (*openai.ChatResponse, error) {
	if h, ok := p.(RequestHandler); ok {
		return h.HandleRequest(ctx, client, req)
	}

	resp, err := callBackend(ctx, client, p, req)
	if err != nil {
		return nil, err
	}
	return p.TransformResponse(resp.Body, req.Model)
}

// FetchStreamingText runs the same orchestration but only extracts the
// reply text; the streaming engine reconstructs chunks from it.
func FetchStreamingText(ctx context.Context, client Caller, p Provider, req *openai.ChatRequest) (string, error) {
	resp, err := callBackend(ctx, client, p, req)
	if err != nil {
		return "", err
	}
	return p.ExtractStreamingText(resp.Body)
}

func callBackend(ctx context.Context, client Caller, p Provider, req *openai.ChatRequest) (*backend.Response, error) {
	payload := p.TransformRequest(req)

	resp, err := client.Post(ctx, payload)
	if err != nil {
		return nil, err
	}

	if resp.Status < 200 || resp.Status >= 300 {
		return nil, apperr.BackendStatus(resp.Status, snippet(resp.Body))
	}
	if !gjson.ValidBytes(resp.Body) {
		return nil, apperr.Backend("backend returned malformed JSON: "+snippet(resp.Body), nil)
	}
	return resp, nil
}

// New builds the provider variant selected in configuration.
func New(name string, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch name {
	case config.ProviderPassthrough:
		return NewPassthrough(logger), nil
	case config.ProviderQnA:
		return NewQnA(logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (valid: %s, %s)",
			name, config.ProviderPassthrough, config.ProviderQnA)
	}
}

// snippet bounds payload excerpts destined for logs.
func snippet(b []byte) string {
	const maxLen = 512
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
