package ollama

import (
	"context"
	"sync"

	"github.com/ollama/ollama/api"
	"github.com/parley-ai/parley/llm"
)

// chatStream implements the llm.Stream interface over Ollama's
// callback-based chat API. The callback runs in a producer goroutine
// that appends events; consumers block on the condition variable until
// one is available.
type chatStream struct {
	ctx    context.Context
	client *api.Client
	req    *api.ChatRequest

	mu      sync.Mutex
	cond    *sync.Cond
	events  []*llm.StreamEvent
	current int
	err     error
	done    bool
	started bool
}

func newChatStream(ctx context.Context, client *api.Client, req *api.ChatRequest) *chatStream {
	s := &chatStream{
		ctx:     ctx,
		client:  client,
		req:     req,
		current: -1,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Next advances to the next event in the stream.
func (s *chatStream) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.started = true
		s.events = append(s.events, &llm.StreamEvent{Type: llm.StreamEventTypeStart})
		go s.run()
	}

	s.current++
	for s.current >= len(s.events) && !s.done && s.err == nil {
		s.cond.Wait()
	}

	// Buffered events drain before a producer error surfaces.
	return s.current < len(s.events)
}

// Event returns the current event.
func (s *chatStream) Event() *llm.StreamEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current < 0 || s.current >= len(s.events) {
		return nil
	}
	return s.events[s.current]
}

// Err returns any error that occurred during streaming.
func (s *chatStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close marks the stream done. The producer goroutine drains on its
// own once the daemon finishes or the context is cancelled.
func (s *chatStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.cond.Broadcast()
	return nil
}

// run drives the chat request and translates daemon responses into
// stream events.
func (s *chatStream) run() {
	err := s.client.Chat(s.ctx, s.req, func(resp api.ChatResponse) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.done {
			return context.Canceled
		}
		if resp.Message.Content != "" {
			s.events = append(s.events, &llm.StreamEvent{
				Type: llm.StreamEventTypeContentDelta,
				Delta: &llm.StreamDelta{
					Type: llm.StreamDeltaTypeText,
					Text: resp.Message.Content,
				},
			})
		}
		if resp.Done {
			var usage *llm.Usage
			if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
				usage = &llm.Usage{
					InputTokens:  int64(resp.PromptEvalCount),
					OutputTokens: int64(resp.EvalCount),
				}
			}
			s.events = append(s.events, &llm.StreamEvent{
				Type:  llm.StreamEventTypeStop,
				Usage: usage,
				Done:  true,
			})
		}
		s.cond.Broadcast()
		return nil
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil && !s.done {
		s.err = convertError(err)
	}
	s.done = true
	s.cond.Broadcast()
}

var _ llm.Stream = (*chatStream)(nil)
