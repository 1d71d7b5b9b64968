package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerate(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" || req.Stream {
			t.Errorf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "a summary"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	got, err := c.Generate(context.Background(), "test-model", "summarize this", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "a summary" {
		t.Fatalf("got %q", got)
	}
}

func TestGenerate_UpstreamError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.Generate(context.Background(), "m", "p", nil); err == nil {
		t.Fatalf("expected error on upstream 500")
	}
}

func TestFilterThinking(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"plain answer", "plain answer"},
		{"<think>step by step...</think>\nthe answer", "the answer"},
		{"<think>unterminated", "<think>unterminated"},
	}
	for _, tt := range tests {
		if got := filterThinking(tt.in); got != tt.want {
			t.Fatalf("filterThinking(%q)=%q, want %q", tt.in, got, tt.want)
		}
	}
}
