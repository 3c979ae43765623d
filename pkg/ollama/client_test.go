package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestQuery(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Content string   `json:"content"`
			Images  []string `json:"images"`
		} `json:"messages"`
		Options map[string]any `json:"options"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"minicpm-v","message":{"role":"assistant","content":"{\"primary\":{}}"},"done":true}` + "\n"))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/api/chat", time.Second)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	img := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	answer, err := c.Query(context.Background(), "minicpm-v", "where?", img)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if answer != `{"primary":{}}` {
		t.Errorf("Unexpected answer %q", answer)
	}
	if got.Model != "minicpm-v" || len(got.Messages) != 1 || got.Messages[0].Content != "where?" {
		t.Errorf("Unexpected request %+v", got)
	}
	if len(got.Messages[0].Images) != 1 || got.Messages[0].Images[0] != img {
		t.Errorf("Expected the image to be forwarded, got %v", got.Messages[0].Images)
	}
	if got.Options["num_ctx"] != float64(4096) {
		t.Errorf("Expected minicpm options, got %v", got.Options)
	}
}

func TestQueryErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 0)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, err := c.Query(context.Background(), "missing", "p", base64.StdEncoding.EncodeToString([]byte("x"))); err == nil {
		t.Error("Expected error for missing model")
	}
	if _, err := c.Query(context.Background(), "m", "p", "%%%"); err == nil {
		t.Error("Expected error for bad base64")
	}
	if _, err := NewClient("not a url", 0); err == nil {
		t.Error("Expected error for URL without scheme")
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 0)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
