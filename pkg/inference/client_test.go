package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Unexpected auth header: %s", got)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "test-model",
			"choices": []map[string]interface{}{{
				"message":       map[string]string{"content": "Hello there"},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8},
		})
	}))
	defer server.Close()

	client, err := NewClient(
		WithBaseURL(server.URL),
		WithAPIKey("test-key"),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	resp, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{NewUserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.Message.Content != "Hello there" {
		t.Errorf("Unexpected content: %s", resp.Message.Content)
	}
	if resp.Usage.TotalTokens != 8 {
		t.Errorf("Unexpected usage: %d", resp.Usage.TotalTokens)
	}
}

func TestClientVisionPartOrder(t *testing.T) {
	var gotContent []map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Messages []struct {
				Content []map[string]interface{} `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		if len(payload.Messages) == 1 {
			gotContent = payload.Messages[0].Content
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{
				"message": map[string]string{"content": "A scene"},
			}},
		})
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))
	defer client.Close()

	resp, err := client.Vision(context.Background(), &VisionRequest{
		Parts: []Part{
			{Text: "This is Alice:"},
			{Image: []byte{0xff, 0xd8}},
			{Text: "Describe the scene."},
			{Image: []byte{0xff, 0xd9}},
		},
	})
	if err != nil {
		t.Fatalf("Vision failed: %v", err)
	}
	if resp.Content != "A scene" {
		t.Errorf("Unexpected content: %s", resp.Content)
	}

	wantTypes := []string{"text", "image_url", "text", "image_url"}
	if len(gotContent) != len(wantTypes) {
		t.Fatalf("Expected %d content parts, got %d", len(wantTypes), len(gotContent))
	}
	for i, want := range wantTypes {
		if gotContent[i]["type"] != want {
			t.Errorf("Part %d: got type %v, want %s", i, gotContent[i]["type"], want)
		}
	}
}

func TestClientEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float64{0.1, 0.2, 0.3}},
			},
			"usage": map[string]int{"prompt_tokens": 2, "total_tokens": 2},
		})
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))
	defer client.Close()

	resp, err := client.Embed(context.Background(), &EmbedRequest{Input: []string{"a near chair"}})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(resp.Embeddings) != 1 || len(resp.Embeddings[0]) != 3 {
		t.Errorf("Unexpected embeddings shape: %v", resp.Embeddings)
	}
}

func TestClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "invalid api key"},
		})
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))
	defer client.Close()

	_, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{NewUserMessage("hi")},
	})
	if err == nil {
		t.Fatal("Expected error")
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Unexpected status: %d", apiErr.StatusCode)
	}
	if apiErr.IsRetryable() {
		t.Error("401 should not be retryable")
	}
}
