package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lumenlabs/go-lumen/internal/httpc"
)

const providerGemini = "gemini"

// Gemini implements the Provider interface for Google's Gemini API.
// Gemini uses a different wire format than OpenAI, so it is implemented
// directly against the generativelanguage REST endpoint.
type Gemini struct {
	apiKey string
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini provider.
func NewGemini(opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	cfg.Model = "gemini-2.0-flash"
	cfg.VisionModel = "gemini-2.0-flash"
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}

	return &Gemini{
		apiKey: cfg.APIKey,
		config: cfg,
		http:   httpc.NewClient(cfg.Timeout),
		logger: cfg.Logger.With("component", "inference.gemini"),
	}, nil
}

// Chat generates a chat completion using Gemini.
func (g *Gemini) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.config.Model
	}

	contents := make([]map[string]interface{}, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, map[string]interface{}{
			"role": role,
			"parts": []map[string]interface{}{
				{"text": msg.Content},
			},
		})
	}

	text, err := g.generate(ctx, model, contents, req.MaxTokens, req.Temperature)
	if err != nil {
		return nil, err
	}

	return &ChatResponse{
		Message:   NewAssistantMessage(text),
		Model:     model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Vision analyzes an ordered sequence of text and image parts.
// Part order is preserved on the wire, so labeled reference images
// arrive exactly as the caller interleaved them.
func (g *Gemini) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.config.VisionModel
	}

	parts := make([]map[string]interface{}, 0, len(req.Parts))
	for _, part := range req.Parts {
		if part.Image != nil {
			parts = append(parts, map[string]interface{}{
				"inline_data": map[string]string{
					"mime_type": "image/jpeg",
					"data":      base64.StdEncoding.EncodeToString(part.Image),
				},
			})
			continue
		}
		parts = append(parts, map[string]interface{}{"text": part.Text})
	}

	contents := []map[string]interface{}{
		{"role": "user", "parts": parts},
	}

	text, err := g.generate(ctx, model, contents, req.MaxTokens, req.Temperature)
	if err != nil {
		return nil, err
	}

	return &VisionResponse{
		Content:   text,
		Model:     model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Embed is not supported by this provider; pair Gemini with an
// OpenAI-compatible client in a Chain for embeddings.
func (g *Gemini) Embed(ctx context.Context, req *EmbedRequest) (*EmbedResponse, error) {
	return nil, WrapError(providerGemini, ErrEmbeddingsNotSupported)
}

// Capabilities returns what Gemini supports.
func (g *Gemini) Capabilities() Capabilities {
	return Capabilities{
		Chat:   true,
		Vision: true,
	}
}

// Health checks API connectivity with a minimal generation request.
func (g *Gemini) Health(ctx context.Context) error {
	_, err := g.Chat(ctx, &ChatRequest{
		Messages:  []Message{NewUserMessage("ping")},
		MaxTokens: 1,
	})
	return err
}

// Close releases resources.
func (g *Gemini) Close() error {
	g.http.CloseIdleConnections()
	return nil
}

// generate performs a generateContent call and returns the first
// candidate's text.
func (g *Gemini) generate(ctx context.Context, model string, contents []map[string]interface{}, maxTokens int, temperature float64) (string, error) {
	if maxTokens == 0 {
		maxTokens = g.config.MaxTokens
	}
	if temperature == 0 {
		temperature = g.config.Temperature
	}

	payload := map[string]interface{}{
		"contents": contents,
		"generationConfig": map[string]interface{}{
			"temperature":     temperature,
			"maxOutputTokens": maxTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", WrapError(providerGemini, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.config.BaseURL, model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", WrapError(providerGemini, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return "", WrapError(providerGemini, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", g.parseError(resp)
	}

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", WrapError(providerGemini, fmt.Errorf("decode response: %w", err))
	}

	if result.Error.Message != "" {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    result.Error.Message,
			Provider:   providerGemini,
		}
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", WrapError(providerGemini, fmt.Errorf("no response content"))
	}

	return result.Candidates[0].Content.Parts[0].Text, nil
}

// parseError extracts an API error from a failed response.
func (g *Gemini) parseError(resp *http.Response) error {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(body, &apiErr)

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    apiErr.Error.Message,
		Provider:   providerGemini,
	}
}

// geminiResponse is the response structure from the Gemini API.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Verify Gemini implements Provider at compile time.
var _ Provider = (*Gemini)(nil)
