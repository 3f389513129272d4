// Package gemini implements the generation provider interfaces on
// Google's genai SDK. The same adapter serves both the Gemini API
// backend (API-key auth) and the Vertex AI backend (project/location
// auth), since the SDK switches backends through its client config.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/prenwyn/deckgen/internal/config"
	"github.com/prenwyn/deckgen/internal/generation"
)

// Error definitions for the gemini package.
var (
	// ErrEmptyPrompt is returned when a request carries no prompt.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrNotConfigured is returned when a call is made against a
	// provider that is missing its credentials.
	ErrNotConfigured = errors.New("provider is not configured")

	// ErrContentBlocked is returned when the model blocks the request
	// or response through its safety filters.
	ErrContentBlocked = errors.New("content blocked by safety filters")

	// ErrEmptyResponse is returned when the model returns no usable
	// candidate.
	ErrEmptyResponse = errors.New("empty response from model")

	// ErrNoImageData is returned when an image call yields no inline
	// image bytes.
	ErrNoImageData = errors.New("no image data in model response")
)

// Provider implements generation.TextGenerator and
// generation.ImageGenerator against the genai SDK.
type Provider struct {
	client     *genai.Client
	name       string
	textModel  string
	imageModel string
	logger     *slog.Logger
}

// New creates a Provider on the Gemini API backend. A missing API key
// yields a provider that reports itself unavailable rather than an
// error, so the registry can probe availability without special cases.
func New(ctx context.Context, logger *slog.Logger, cfg config.GeminiConfig) (*Provider, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	p := &Provider{
		name:       "gemini",
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		logger:     logger,
	}

	if cfg.APIKey == "" {
		return p, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	p.client = client
	return p, nil
}

// NewVertex creates a Provider on the Vertex AI backend. Project and
// location are both required for availability; credentials come from
// the ambient Google application-default chain.
func NewVertex(ctx context.Context, logger *slog.Logger, cfg config.VertexConfig) (*Provider, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	p := &Provider{
		name:       "vertex",
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		logger:     logger,
	}

	if cfg.Project == "" || cfg.Location == "" {
		return p, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex client: %w", err)
	}

	p.client = client
	return p, nil
}

// IsAvailable reports whether the provider holds the configuration it
// needs to attempt a call. It never touches the network.
func (p *Provider) IsAvailable() bool {
	return p.client != nil && (p.textModel != "" || p.imageModel != "")
}

// GenerateText produces text for the given request.
func (p *Provider) GenerateText(ctx context.Context, req generation.TextRequest) (string, error) {
	op := p.name + ".generate_text"

	if p.client == nil {
		return "", generation.PermanentError(op, ErrNotConfigured)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", generation.PermanentError(op, ErrEmptyPrompt)
	}

	var genCfg *genai.GenerateContentConfig
	if req.ThinkingBudget > 0 {
		genCfg = &genai.GenerateContentConfig{
			ThinkingConfig: &genai.ThinkingConfig{
				ThinkingBudget: genai.Ptr(req.ThinkingBudget),
			},
		}
	}

	p.logger.DebugContext(ctx, "calling text model",
		"provider", p.name,
		"model", p.textModel,
		"prompt_length", len(req.Prompt))

	resp, err := p.client.Models.GenerateContent(ctx, p.textModel, genai.Text(req.Prompt), genCfg)
	if err != nil {
		return "", p.classifyCallError(op, err)
	}

	text, err := textFromResponse(resp)
	if err != nil {
		return "", generation.PermanentError(op, err)
	}

	return text, nil
}

// GenerateImage produces a new image for the given request. Aspect
// ratio and resolution travel as prompt instructions, which the
// image-capable Gemini models honor.
func (p *Provider) GenerateImage(ctx context.Context, req generation.ImageRequest) ([]byte, error) {
	op := p.name + ".generate_image"

	if p.client == nil {
		return nil, generation.PermanentError(op, ErrNotConfigured)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, generation.PermanentError(op, ErrEmptyPrompt)
	}

	parts := []*genai.Part{genai.NewPartFromText(imagePrompt(req.Prompt, req.AspectRatio, req.Resolution))}
	for _, ref := range req.ReferenceImages {
		parts = append(parts, genai.NewPartFromBytes(ref, "image/png"))
	}

	return p.callImageModel(ctx, op, parts)
}

// EditImage applies the prompt to the given source images.
func (p *Provider) EditImage(ctx context.Context, req generation.EditRequest) ([]byte, error) {
	op := p.name + ".edit_image"

	if p.client == nil {
		return nil, generation.PermanentError(op, ErrNotConfigured)
	}
	if len(req.Images) == 0 {
		return nil, generation.PermanentError(op, errors.New("edit requires at least one source image"))
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, generation.PermanentError(op, ErrEmptyPrompt)
	}

	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img, "image/png"))
	}
	parts = append(parts, genai.NewPartFromText(imagePrompt(req.Prompt, req.AspectRatio, req.Resolution)))

	return p.callImageModel(ctx, op, parts)
}

// callImageModel runs one image-capable GenerateContent call and
// extracts the inline image bytes from the response.
func (p *Provider) callImageModel(ctx context.Context, op string, parts []*genai.Part) ([]byte, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	genCfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	p.logger.DebugContext(ctx, "calling image model",
		"provider", p.name,
		"model", p.imageModel,
		"part_count", len(parts))

	resp, err := p.client.Models.GenerateContent(ctx, p.imageModel, contents, genCfg)
	if err != nil {
		return nil, p.classifyCallError(op, err)
	}

	data, err := imageFromResponse(resp)
	if err != nil {
		return nil, generation.PermanentError(op, err)
	}

	return data, nil
}

// classifyCallError maps an SDK call error into the provider error
// taxonomy. HTTP 408/429/5xx are transient, other API errors are
// permanent, everything else (network failures, cancelled contexts)
// stays unknown or transient per the shared classification rules.
func (p *Provider) classifyCallError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return generation.TransientError(op, err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 408 || apiErr.Code == 429 || apiErr.Code >= 500:
			return generation.TransientError(op, err)
		case apiErr.Code >= 400:
			return generation.PermanentError(op, err)
		}
	}

	return generation.UnknownError(op, err)
}

// textFromResponse validates a text response and concatenates its text
// parts. Safety blocks and empty candidates are permanent conditions.
func textFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", ErrContentBlocked
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}

	return text, nil
}

// imageFromResponse extracts the first inline image blob from a
// response.
func imageFromResponse(resp *genai.GenerateContentResponse) ([]byte, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, ErrContentBlocked
	}
	if candidate.Content == nil {
		return nil, ErrEmptyResponse
	}

	for _, part := range candidate.Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, nil
		}
	}

	return nil, ErrNoImageData
}

// imagePrompt appends the aspect-ratio and resolution constraints as
// prompt instructions.
func imagePrompt(prompt, aspectRatio, resolution string) string {
	var sb strings.Builder
	sb.WriteString(prompt)
	if aspectRatio != "" {
		sb.WriteString("\n\nThe image must use a ")
		sb.WriteString(aspectRatio)
		sb.WriteString(" aspect ratio.")
	}
	if resolution != "" {
		sb.WriteString("\nTarget resolution: ")
		sb.WriteString(resolution)
		sb.WriteString(".")
	}
	return sb.String()
}

var (
	_ generation.TextGenerator  = (*Provider)(nil)
	_ generation.ImageGenerator = (*Provider)(nil)
)
