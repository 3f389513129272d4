// Package openaicompat implements the generation provider interfaces
// against any API speaking the OpenAI REST dialect: OpenAI itself,
// Azure OpenAI deployments, or local gateways. The base URL is
// configurable; everything rides plain JSON over HTTP.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/prenwyn/deckgen/internal/config"
	"github.com/prenwyn/deckgen/internal/generation"
)

// Error definitions for the openaicompat package.
var (
	// ErrEmptyPrompt is returned when a request carries no prompt.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrNotConfigured is returned when a call is made without an API key.
	ErrNotConfigured = errors.New("provider is not configured")

	// ErrEmptyResponse is returned when the API yields no usable choice
	// or image.
	ErrEmptyResponse = errors.New("empty response from API")
)

// Provider implements generation.TextGenerator and
// generation.ImageGenerator over the OpenAI-compatible REST surface.
type Provider struct {
	apiKey     string
	baseURL    string
	textModel  string
	imageModel string
	client     *http.Client
	logger     *slog.Logger
}

// Options tune the provider beyond its configuration snapshot.
type Options struct {
	// HTTPClient overrides the default client, mainly for tests.
	// Per-call deadlines come from the caller's context, so the
	// default client carries no timeout of its own.
	HTTPClient *http.Client
}

// New creates a Provider from the configuration snapshot. A missing
// API key yields a provider that reports itself unavailable.
func New(logger *slog.Logger, cfg config.OpenAIConfig, opts Options) (*Provider, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &Provider{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    baseURL,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		client:     client,
		logger:     logger,
	}, nil
}

// IsAvailable reports whether an API key is configured. No network probe.
func (p *Provider) IsAvailable() bool {
	return p.apiKey != ""
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateText produces text through POST /chat/completions.
func (p *Provider) GenerateText(ctx context.Context, req generation.TextRequest) (string, error) {
	op := "openai.generate_text"

	if p.apiKey == "" {
		return "", generation.PermanentError(op, ErrNotConfigured)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", generation.PermanentError(op, ErrEmptyPrompt)
	}

	payload := chatRequest{
		Model: p.textModel,
		Messages: []chatMessage{
			{Role: "user", Content: req.Prompt},
		},
	}

	var out chatResponse
	if err := p.postJSON(ctx, op, "/chat/completions", payload, &out); err != nil {
		return "", err
	}

	if len(out.Choices) == 0 {
		return "", generation.PermanentError(op, ErrEmptyResponse)
	}

	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", generation.PermanentError(op, ErrEmptyResponse)
	}

	return text, nil
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// GenerateImage produces an image through POST /images/generations.
// Reference images have no slot in the generations endpoint; when any
// are present the call is routed through the edits endpoint instead,
// which accepts source images.
func (p *Provider) GenerateImage(ctx context.Context, req generation.ImageRequest) ([]byte, error) {
	op := "openai.generate_image"

	if p.apiKey == "" {
		return nil, generation.PermanentError(op, ErrNotConfigured)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, generation.PermanentError(op, ErrEmptyPrompt)
	}

	if len(req.ReferenceImages) > 0 {
		return p.editImages(ctx, op, req.ReferenceImages, req.Prompt, req.AspectRatio, req.Resolution)
	}

	payload := imageRequest{
		Model:          p.imageModel,
		Prompt:         req.Prompt,
		Size:           imageSize(req.AspectRatio, req.Resolution),
		ResponseFormat: "b64_json",
	}

	var out imageResponse
	if err := p.postJSON(ctx, op, "/images/generations", payload, &out); err != nil {
		return nil, err
	}

	return decodeImage(op, out)
}

// EditImage applies the prompt to the source images through
// POST /images/edits.
func (p *Provider) EditImage(ctx context.Context, req generation.EditRequest) ([]byte, error) {
	op := "openai.edit_image"

	if p.apiKey == "" {
		return nil, generation.PermanentError(op, ErrNotConfigured)
	}
	if len(req.Images) == 0 {
		return nil, generation.PermanentError(op, errors.New("edit requires at least one source image"))
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, generation.PermanentError(op, ErrEmptyPrompt)
	}

	return p.editImages(ctx, op, req.Images, req.Prompt, req.AspectRatio, req.Resolution)
}

// editImages issues a multipart POST /images/edits call.
func (p *Provider) editImages(ctx context.Context, op string, images [][]byte, prompt, aspectRatio, resolution string) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for i, img := range images {
		part, err := writer.CreateFormFile("image[]", fmt.Sprintf("image-%d.png", i))
		if err != nil {
			return nil, generation.PermanentError(op, err)
		}
		if _, err := part.Write(img); err != nil {
			return nil, generation.PermanentError(op, err)
		}
	}

	fields := map[string]string{
		"model":  p.imageModel,
		"prompt": prompt,
	}
	if size := imageSize(aspectRatio, resolution); size != "" {
		fields["size"] = size
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, generation.PermanentError(op, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, generation.PermanentError(op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/images/edits", &body)
	if err != nil {
		return nil, generation.PermanentError(op, err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	var out imageResponse
	if err := p.do(op, httpReq, &out); err != nil {
		return nil, err
	}

	return decodeImage(op, out)
}

// postJSON issues one JSON POST against the configured base URL and
// decodes the response into out.
func (p *Provider) postJSON(ctx context.Context, op, path string, payload, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return generation.PermanentError(op, fmt.Errorf("encode request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, &buf)
	if err != nil {
		return generation.PermanentError(op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	return p.do(op, httpReq, out)
}

// do executes the request and classifies failures: connection errors
// and timeouts are transient, HTTP 408/429/5xx are transient, other
// non-2xx statuses are permanent.
func (p *Provider) do(op string, httpReq *http.Request, out any) error {
	p.logger.DebugContext(httpReq.Context(), "calling OpenAI-compatible API",
		"url", httpReq.URL.String())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return generation.TransientError(op, err)
		}
		return generation.TransientError(op, fmt.Errorf("http request: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		if resp.StatusCode == http.StatusRequestTimeout ||
			resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode >= 500 {
			return generation.TransientError(op, err)
		}
		return generation.PermanentError(op, err)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return generation.PermanentError(op, fmt.Errorf("decode response: %w", err))
	}

	return nil
}

// decodeImage extracts and decodes the first b64_json image payload.
func decodeImage(op string, out imageResponse) ([]byte, error) {
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return nil, generation.PermanentError(op, ErrEmptyResponse)
	}

	data, err := base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
	if err != nil {
		return nil, generation.PermanentError(op, fmt.Errorf("decode image data: %w", err))
	}

	return data, nil
}

// imageSize maps an aspect ratio to the nearest size the image API
// accepts; an explicit WxH resolution wins when provided.
func imageSize(aspectRatio, resolution string) string {
	if resolution != "" && strings.Contains(resolution, "x") {
		return resolution
	}
	switch aspectRatio {
	case "16:9":
		return "1536x1024"
	case "9:16":
		return "1024x1536"
	case "1:1":
		return "1024x1024"
	default:
		return ""
	}
}

var (
	_ generation.TextGenerator  = (*Provider)(nil)
	_ generation.ImageGenerator = (*Provider)(nil)
)
