package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"assessment-backend/internal/llm"
)

func TestIsReasoningModel(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gpt5", model: "gpt-5", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "o3 uppercase", model: " O3-mini ", want: true},
		{name: "gpt4", model: "gpt-4o", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := isReasoningModel(tt.model); got != tt.want {
				t.Fatalf("isReasoningModel(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestNewClientRequiresConfig(t *testing.T) {
	if _, err := NewClient("key", ""); err == nil {
		t.Fatalf("expected model error")
	}
	if _, err := NewClient("", "gpt-4o"); err == nil {
		t.Fatalf("expected key error")
	}
}

func TestAnalyzeWrapsMarkdown(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"## Overview\nAll good."},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
	}))
	defer srv.Close()

	client, err := NewClientWithBaseURL("key", "gpt-4o", srv.URL+"/v1")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	raw, err := client.Analyze(context.Background(), llm.Request{
		Documents:  []llm.Document{{Filename: "a.txt", Content: "reading fluency notes"}},
		ModuleType: "k12",
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var resp llm.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "completed" || !strings.Contains(resp.MarkdownReport, "All good.") {
		t.Fatalf("unexpected response %+v", resp)
	}
	if !strings.Contains(gotBody, "reading fluency notes") {
		t.Fatalf("expected document text in request body")
	}
}

func TestAnalyzeSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
	}))
	defer srv.Close()

	client, err := NewClientWithBaseURL("key", "gpt-4o", srv.URL+"/v1")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Analyze(context.Background(), llm.Request{ModuleType: "k12"})
	if err == nil || !strings.Contains(err.Error(), "http status 502") {
		t.Fatalf("expected http status error, got %v", err)
	}
}
