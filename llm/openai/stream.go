package openai

import (
	"errors"
	"io"
	"sync"

	"github.com/parley-ai/parley/llm"
	openai "github.com/sashabaranov/go-openai"
)

// chatStream implements the llm.Stream interface over an OpenAI
// chat-completion stream. Events are pulled lazily, one vendor chunk per
// Next call; closing the consumer closes the underlying network stream.
type chatStream struct {
	stream  *openai.ChatCompletionStream
	mu      sync.Mutex
	event   *llm.StreamEvent
	err     error
	started bool
	done    bool
	closed  bool
}

func newChatStream(stream *openai.ChatCompletionStream) *chatStream {
	return &chatStream{stream: stream}
}

// Next advances to the next event in the stream.
func (s *chatStream) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil || s.done || s.closed {
		return false
	}

	if !s.started {
		s.started = true
		s.event = &llm.StreamEvent{Type: llm.StreamEventTypeStart}
		return true
	}

	for {
		response, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.done = true
				s.event = &llm.StreamEvent{Type: llm.StreamEventTypeStop, Done: true}
				return true
			}
			s.err = convertError(err)
			return false
		}

		if len(response.Choices) == 0 {
			continue
		}
		choice := response.Choices[0]

		if choice.Delta.Content != "" {
			s.event = &llm.StreamEvent{
				Type: llm.StreamEventTypeContentDelta,
				Delta: &llm.StreamDelta{
					Type: llm.StreamDeltaTypeText,
					Text: choice.Delta.Content,
				},
			}
			return true
		}

		if choice.FinishReason != "" {
			var usage *llm.Usage
			if response.Usage != nil {
				usage = &llm.Usage{
					InputTokens:  int64(response.Usage.PromptTokens),
					OutputTokens: int64(response.Usage.CompletionTokens),
				}
			}
			s.done = true
			s.event = &llm.StreamEvent{
				Type:  llm.StreamEventTypeStop,
				Usage: usage,
				Done:  true,
			}
			return true
		}
	}
}

// Event returns the current event.
func (s *chatStream) Event() *llm.StreamEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.event
}

// Err returns any error that occurred during streaming.
func (s *chatStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close closes the stream and releases the network resource.
func (s *chatStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stream.Close()
}

var _ llm.Stream = (*chatStream)(nil)
