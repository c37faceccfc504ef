package groq

import "testing"

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New("", "", "llama-3.3-70b-versatile"); err == nil {
		t.Error("expected error for missing api key")
	}
}

func TestNew_DefaultEndpoint(t *testing.T) {
	client, err := New("gsk-test", "", "llama-3.3-70b-versatile")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if client.Client == nil {
		t.Fatal("inner client not constructed")
	}

	if _, err := New("gsk-test", "https://groq.internal/v1", "llama-3.3-70b-versatile"); err != nil {
		t.Errorf("explicit base url: %v", err)
	}
}
