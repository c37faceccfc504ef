package ollama

import (
	"errors"
	"sync"
	"testing"

	"github.com/parley-ai/parley/llm"
)

func TestChatStream_DrainsBufferBeforeError(t *testing.T) {
	// A daemon failure mid-stream must not swallow deltas the producer
	// already appended; the error surfaces only after the buffer is
	// drained.
	s := &chatStream{current: -1, started: true}
	s.cond = sync.NewCond(&s.mu)
	s.events = []*llm.StreamEvent{
		{Type: llm.StreamEventTypeStart},
		{Type: llm.StreamEventTypeContentDelta, Delta: &llm.StreamDelta{Type: llm.StreamDeltaTypeText, Text: "partial"}},
	}
	s.err = errors.New("daemon dropped the connection")
	s.done = true

	var texts []string
	for s.Next() {
		if event := s.Event(); event != nil && event.Delta != nil {
			texts = append(texts, event.Delta.Text)
		}
	}

	if len(texts) != 1 || texts[0] != "partial" {
		t.Errorf("texts = %v, want the buffered delta", texts)
	}
	if s.Err() == nil {
		t.Error("error should surface once the buffer is drained")
	}
}
