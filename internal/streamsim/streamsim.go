// Package streamsim turns one complete backend reply into a paced sequence
// of chat-completion chunks, emulating incremental delivery. The backend is
// never actually streamed from; chunking happens entirely in-process.
package streamsim

import (
	"context"
	"strings"
	"time"

	"chatgate/internal/openai"
)

// DefaultDelay paces interior and terminal chunks so the emission feels
// incremental rather than instantaneous.
const DefaultDelay = 20 * time.Millisecond

type Simulator struct {
	delay time.Duration
}

func New(delay time.Duration) *Simulator {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Simulator{delay: delay}
}

// Run emits the chunk sequence for text on the returned channel: a role
// chunk first, word chunks next, and a terminal chunk carrying the finish
// reason. All chunks share one id and creation timestamp fixed here. The
// channel closes after the terminal chunk, or early if ctx is cancelled;
// cancellation also stops the pacing timers.
func (s *Simulator) Run(ctx context.Context, model, text string) <-chan openai.Chunk {
	id := openai.NewCompletionID()
	created := time.Now().Unix()

	words := splitWords(text)
	total := len(words)

	out := make(chan openai.Chunk, 16)

	go func() {
		defer close(out)

		timer := time.NewTimer(s.delay)
		if !timer.Stop() {
			<-timer.C
		}
		defer timer.Stop()

		for step := 0; step <= total; step++ {
			if step > 0 {
				timer.Reset(s.delay)
				select {
				case <-ctx.Done():
					return
				case <-timer.C:
				}
			}

			chunk := openai.Chunk{
				ID:      id,
				Object:  openai.ObjectChunk,
				Created: created,
				Model:   model,
			}
			switch {
			case step == 0:
				chunk.Choices = []openai.ChunkChoice{{
					Index: 0,
					Delta: openai.Delta{Role: openai.RoleAssistant},
				}}
			case step < total:
				chunk.Choices = []openai.ChunkChoice{{
					Index: 0,
					Delta: openai.Delta{Content: words[step]},
				}}
			default:
				chunk.Choices = []openai.ChunkChoice{{
					Index:        0,
					Delta:        openai.Delta{},
					FinishReason: openai.FinishReasonStop,
				}}
			}

			select {
			case <-ctx.Done():
				return
			case out <- chunk:
			}
		}
	}()

	return out
}

// splitWords breaks text into whitespace-delimited words, each carrying a
// trailing space as its separator.
func splitWords(text string) []string {
	fields := strings.Fields(text)
	words := make([]string, len(fields))
	for i, f := range fields {
		words[i] = f + " "
	}
	return words
}
