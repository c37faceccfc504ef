package google

import (
	"iter"
	"sync"

	"github.com/parley-ai/parley/llm"
	"google.golang.org/genai"
)

// geminiStream implements the llm.Stream interface over the Gemini SDK's
// response iterator. Chunks are pulled lazily; Close stops the iterator
// and releases the underlying connection.
type geminiStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()

	mu      sync.Mutex
	event   *llm.StreamEvent
	err     error
	started bool
	done    bool
	closed  bool
}

func newGeminiStream(seq iter.Seq2[*genai.GenerateContentResponse, error]) *geminiStream {
	next, stop := iter.Pull2(seq)
	return &geminiStream{next: next, stop: stop}
}

// Next advances to the next event in the stream.
func (s *geminiStream) Next() bool {
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
		resp, err, ok := s.next()
		if !ok {
			s.done = true
			s.event = &llm.StreamEvent{Type: llm.StreamEventTypeStop, Done: true}
			return true
		}
		if err != nil {
			s.err = convertError(err)
			return false
		}

		text := resp.Text()
		if text == "" {
			continue
		}
		s.event = &llm.StreamEvent{
			Type: llm.StreamEventTypeContentDelta,
			Delta: &llm.StreamDelta{
				Type: llm.StreamDeltaTypeText,
				Text: text,
			},
		}
		return true
	}
}

// Event returns the current event.
func (s *geminiStream) Event() *llm.StreamEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.event
}

// Err returns any error that occurred during streaming.
func (s *geminiStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops fragment production and releases the iterator.
func (s *geminiStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stop()
	return nil
}

var _ llm.Stream = (*geminiStream)(nil)
