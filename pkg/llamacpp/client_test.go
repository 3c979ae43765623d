package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestQuery(t *testing.T) {
	var got ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(ChatCompletionResponse{
			Choices: []Choice{{Message: Message{Role: "assistant", Content: `{"primary":{"label":"cat"}}`}}},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/", 0)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	answer, err := c.Query(context.Background(), "llava", "where?", "aW1n")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if answer != `{"primary":{"label":"cat"}}` {
		t.Errorf("Unexpected answer %q", answer)
	}

	parts, ok := got.Messages[0].Content.([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("Expected text and image parts, got %#v", got.Messages[0].Content)
	}
	image := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	if !strings.HasPrefix(image, "data:image/jpeg;base64,aW1n") {
		t.Errorf("Unexpected image URL %q", image)
	}
}

func TestQueryContentParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":[{"type":"text","text":"hello"}]}}]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, 0)
	answer, err := c.Query(context.Background(), "m", "p", "")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if answer != "hello" {
		t.Errorf("Expected hello, got %q", answer)
	}
}

func TestQueryErrors(t *testing.T) {
	tests := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		},
		"no choices": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		},
		"empty": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[{"message":{"content":""}}]}`))
		},
	}
	for name, h := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			c, _ := NewClient(srv.URL, 0)
			if _, err := c.Query(context.Background(), "m", "p", ""); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, 0)
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
	if _, err := NewClient("localhost:8080", 0); err == nil {
		t.Error("Expected error for URL without scheme")
	}
}
