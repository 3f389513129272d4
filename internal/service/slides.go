// Package service assembles validated generation requests into job
// submissions: it builds the work items and prompts for each job kind,
// resolves the provider through the registry at submission time, and
// exposes the polling read surface.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prenwyn/deckgen/internal/config"
	"github.com/prenwyn/deckgen/internal/domain"
	"github.com/prenwyn/deckgen/internal/generation"
	"github.com/prenwyn/deckgen/internal/jobs"
)

// Common errors returned by the slide service
var (
	ErrNilRunner     = errors.New("runner cannot be nil")
	ErrNilRegistry   = errors.New("registry cannot be nil")
	ErrNilSettings   = errors.New("settings cannot be nil")
	ErrNilImageSink  = errors.New("image sink cannot be nil")
	ErrNoPages       = errors.New("request must contain at least one page")
	ErrEmptySource   = errors.New("source text cannot be empty")
	ErrNoInstruction = errors.New("edit instruction cannot be empty")
)

// ProvidersSource supplies the provider configuration snapshot read at
// submission time. Settings may change between two submissions (they
// are hot-swappable without restart); a single batch always sees one
// consistent snapshot.
type ProvidersSource interface {
	ProvidersSnapshot() config.ProvidersConfig
}

// StaticProviders is a ProvidersSource that always returns the same
// snapshot, for processes whose settings only change on restart.
type StaticProviders config.ProvidersConfig

// ProvidersSnapshot returns the wrapped snapshot.
func (s StaticProviders) ProvidersSnapshot() config.ProvidersConfig {
	return config.ProvidersConfig(s)
}

// ImageSink stores generated image bytes and returns the path the
// business artifact records. File storage itself is an external
// collaborator; the job engine only sees this contract.
type ImageSink interface {
	SavePNG(ctx context.Context, identity string, data []byte) (string, error)
}

// PageOutline describes one page for description generation.
type PageOutline struct {
	PageID string
	Title  string
	Points []string
}

// DescriptionBatchRequest generates a content description for every page.
type DescriptionBatchRequest struct {
	Pages          []PageOutline
	OutlineText    string
	OriginalInput  string
	Language       string
	ThinkingBudget int32
}

// PageImageSpec describes one page for image generation.
type PageImageSpec struct {
	PageID      string
	Description string
	Section     string
	// Index is the 1-based page number; the cover page gets dedicated
	// design instructions.
	Index int
}

// ImageBatchRequest renders a slide image for every page.
type ImageBatchRequest struct {
	Pages             []PageImageSpec
	OutlineText       string
	TemplateImage     []byte
	MaterialImages    [][]byte
	ExtraRequirements string
	Language          string
	AspectRatio       string
	Resolution        string
}

// ImageEditRequest applies an instruction to an existing slide image.
type ImageEditRequest struct {
	PageID              string
	Images              [][]byte
	Instruction         string
	OriginalDescription string
	AspectRatio         string
	Resolution          string
}

// MaterialRequest condenses source text into presentation material.
type MaterialRequest struct {
	MaterialID string
	SourceText string
	Language   string
}

// ExportPage is one page of an export manifest.
type ExportPage struct {
	PageID      string `json:"page_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImagePath   string `json:"image_path"`
}

// ExportRequest packages the finished pages for download.
type ExportRequest struct {
	Pages []ExportPage
}

// SlideService is the submission surface for all generation job kinds
// and the polling read surface for their status.
type SlideService struct {
	runner   *jobs.Runner
	registry *generation.Registry
	settings ProvidersSource
	images   ImageSink
	// artifacts is the default writer used when a submission does not
	// bring its own.
	artifacts jobs.ArtifactWriter
	logger    *slog.Logger
}

// NewSlideService creates a new slide service.
func NewSlideService(
	runner *jobs.Runner,
	registry *generation.Registry,
	settings ProvidersSource,
	images ImageSink,
	artifacts jobs.ArtifactWriter,
	logger *slog.Logger,
) (*SlideService, error) {
	if runner == nil {
		return nil, ErrNilRunner
	}
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if settings == nil {
		return nil, ErrNilSettings
	}
	if images == nil {
		return nil, ErrNilImageSink
	}
	if artifacts == nil {
		return nil, jobs.ErrNilArtifactWriter
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &SlideService{
		runner:    runner,
		registry:  registry,
		settings:  settings,
		images:    images,
		artifacts: artifacts,
		logger:    logger,
	}, nil
}

// artifactsOr returns the submission's writer, falling back to the
// service default.
func (s *SlideService) artifactsOr(artifacts jobs.ArtifactWriter) jobs.ArtifactWriter {
	if artifacts == nil {
		return s.artifacts
	}
	return artifacts
}

// submit hands the spec to the runner and logs accepted submissions.
func (s *SlideService) submit(ctx context.Context, spec jobs.SubmitSpec) (uuid.UUID, error) {
	id, err := s.runner.Submit(ctx, spec)
	if err != nil {
		return id, err
	}

	s.logger.InfoContext(ctx, "job submitted",
		"job_id", id,
		"job_kind", spec.Kind,
		"items", len(spec.Items))
	return id, nil
}

// GeneratePageDescriptions submits a batch job producing one content
// description per page. Each page's description is written to its own
// artifact; a failed page never blocks its siblings.
func (s *SlideService) GeneratePageDescriptions(
	ctx context.Context,
	req DescriptionBatchRequest,
	artifacts jobs.ArtifactWriter,
) (uuid.UUID, error) {
	if len(req.Pages) == 0 {
		return uuid.Nil, ErrNoPages
	}

	items := make([]domain.WorkItem, 0, len(req.Pages))
	for i, page := range req.Pages {
		item, err := domain.NewWorkItem(page.PageID, domain.ItemPayload{
			Prompt:         buildDescriptionPrompt(req, page, i+1),
			Language:       req.Language,
			ThinkingBudget: req.ThinkingBudget,
		})
		if err != nil {
			return uuid.Nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		items = append(items, item)
	}

	return s.submit(ctx, jobs.SubmitSpec{
		Kind:      domain.JobKindBatchDescriptionGeneration,
		Items:     items,
		Artifacts: s.artifactsOr(artifacts),
		Prepare:   s.prepareText(),
	})
}

// GenerateMaterial submits a single-item job condensing source text
// into reference material.
func (s *SlideService) GenerateMaterial(
	ctx context.Context,
	req MaterialRequest,
	artifacts jobs.ArtifactWriter,
) (uuid.UUID, error) {
	if req.SourceText == "" {
		return uuid.Nil, ErrEmptySource
	}

	item, err := domain.NewWorkItem(req.MaterialID, domain.ItemPayload{
		Prompt:   buildMaterialPrompt(req),
		Language: req.Language,
	})
	if err != nil {
		return uuid.Nil, err
	}

	return s.submit(ctx, jobs.SubmitSpec{
		Kind:      domain.JobKindMaterialGeneration,
		Items:     []domain.WorkItem{item},
		Artifacts: s.artifactsOr(artifacts),
		Prepare:   s.prepareText(),
	})
}

// GeneratePageImages submits a batch job rendering one slide image per
// page. The template image rides first in each item's reference list so
// providers treat it as the style anchor.
func (s *SlideService) GeneratePageImages(
	ctx context.Context,
	req ImageBatchRequest,
	artifacts jobs.ArtifactWriter,
) (uuid.UUID, error) {
	if len(req.Pages) == 0 {
		return uuid.Nil, ErrNoPages
	}

	refs := make([][]byte, 0, len(req.MaterialImages)+1)
	if len(req.TemplateImage) > 0 {
		refs = append(refs, req.TemplateImage)
	}
	refs = append(refs, req.MaterialImages...)

	items := make([]domain.WorkItem, 0, len(req.Pages))
	for i, page := range req.Pages {
		item, err := domain.NewWorkItem(page.PageID, domain.ItemPayload{
			Prompt:          buildImagePrompt(req, page),
			ReferenceImages: refs,
			Language:        req.Language,
			AspectRatio:     req.AspectRatio,
			Resolution:      req.Resolution,
		})
		if err != nil {
			return uuid.Nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		items = append(items, item)
	}

	return s.submit(ctx, jobs.SubmitSpec{
		Kind:      domain.JobKindBatchImageGeneration,
		Items:     items,
		Artifacts: s.artifactsOr(artifacts),
		Prepare:   s.prepareImage(),
	})
}

// GenerateSingleImage submits a one-page image generation job, used
// for regenerating an individual slide.
func (s *SlideService) GenerateSingleImage(
	ctx context.Context,
	req ImageBatchRequest,
	artifacts jobs.ArtifactWriter,
) (uuid.UUID, error) {
	if len(req.Pages) != 1 {
		return uuid.Nil, fmt.Errorf("%w: single image generation takes exactly one page", ErrNoPages)
	}

	refs := make([][]byte, 0, len(req.MaterialImages)+1)
	if len(req.TemplateImage) > 0 {
		refs = append(refs, req.TemplateImage)
	}
	refs = append(refs, req.MaterialImages...)

	item, err := domain.NewWorkItem(req.Pages[0].PageID, domain.ItemPayload{
		Prompt:          buildImagePrompt(req, req.Pages[0]),
		ReferenceImages: refs,
		Language:        req.Language,
		AspectRatio:     req.AspectRatio,
		Resolution:      req.Resolution,
	})
	if err != nil {
		return uuid.Nil, err
	}

	return s.submit(ctx, jobs.SubmitSpec{
		Kind:      domain.JobKindSingleImageGeneration,
		Items:     []domain.WorkItem{item},
		Artifacts: s.artifactsOr(artifacts),
		Prepare:   s.prepareImage(),
	})
}

// EditImage submits a single-item job applying an edit instruction to
// an existing slide image.
func (s *SlideService) EditImage(
	ctx context.Context,
	req ImageEditRequest,
	artifacts jobs.ArtifactWriter,
) (uuid.UUID, error) {
	if req.Instruction == "" {
		return uuid.Nil, ErrNoInstruction
	}

	item, err := domain.NewWorkItem(req.PageID, domain.ItemPayload{
		Prompt:          buildEditPrompt(req.Instruction, req.OriginalDescription),
		ReferenceImages: req.Images,
		AspectRatio:     req.AspectRatio,
		Resolution:      req.Resolution,
	})
	if err != nil {
		return uuid.Nil, err
	}

	snapshot := s.settings.ProvidersSnapshot()
	return s.submit(ctx, jobs.SubmitSpec{
		Kind:      domain.JobKindImageEdit,
		Items:     []domain.WorkItem{item},
		Artifacts: s.artifactsOr(artifacts),
		Prepare: func(ctx context.Context) (jobs.Operation, error) {
			provider, err := s.registry.ResolveImage(ctx, snapshot)
			if err != nil {
				return nil, err
			}
			return func(ctx context.Context, item domain.WorkItem) (string, error) {
				data, err := provider.EditImage(ctx, generation.EditRequest{
					Images:      item.Payload.ReferenceImages,
					Prompt:      item.Payload.Prompt,
					AspectRatio: item.Payload.AspectRatio,
					Resolution:  item.Payload.Resolution,
				})
				if err != nil {
					return "", err
				}
				return s.images.SavePNG(ctx, item.Identity, data)
			}, nil
		},
	})
}

// Export submits a packaging job that renders one manifest entry per
// page. No provider is involved; the job machinery still gives callers
// the same polling contract as generation kinds.
func (s *SlideService) Export(
	ctx context.Context,
	req ExportRequest,
	artifacts jobs.ArtifactWriter,
) (uuid.UUID, error) {
	if len(req.Pages) == 0 {
		return uuid.Nil, ErrNoPages
	}

	pagesByID := make(map[string]ExportPage, len(req.Pages))
	items := make([]domain.WorkItem, 0, len(req.Pages))
	for i, page := range req.Pages {
		item, err := domain.NewWorkItem(page.PageID, domain.ItemPayload{})
		if err != nil {
			return uuid.Nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		items = append(items, item)
		pagesByID[page.PageID] = page
	}

	return s.submit(ctx, jobs.SubmitSpec{
		Kind:      domain.JobKindExport,
		Items:     items,
		Artifacts: s.artifactsOr(artifacts),
		Prepare: func(ctx context.Context) (jobs.Operation, error) {
			return func(ctx context.Context, item domain.WorkItem) (string, error) {
				page, ok := pagesByID[item.Identity]
				if !ok {
					return "", fmt.Errorf("no export page for identity %q", item.Identity)
				}
				manifest, err := json.Marshal(page)
				if err != nil {
					return "", fmt.Errorf("failed to marshal export manifest: %w", err)
				}
				return string(manifest), nil
			}, nil
		},
	})
}

// GetJob returns the latest committed job state for polling clients.
// Status transitions are visible as soon as they are committed; a 1-2s
// poll interval is plenty.
func (s *SlideService) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return s.runner.Store().Get(ctx, id)
}

// prepareText returns a Prepare hook that resolves the active text
// provider from the current settings snapshot.
func (s *SlideService) prepareText() func(ctx context.Context) (jobs.Operation, error) {
	snapshot := s.settings.ProvidersSnapshot()
	return func(ctx context.Context) (jobs.Operation, error) {
		provider, err := s.registry.ResolveText(ctx, snapshot)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, item domain.WorkItem) (string, error) {
			return provider.GenerateText(ctx, generation.TextRequest{
				Prompt:         item.Payload.Prompt,
				ThinkingBudget: item.Payload.ThinkingBudget,
			})
		}, nil
	}
}

// prepareImage returns a Prepare hook that resolves the active image
// provider and routes results through the image sink, recording the
// stored path as the artifact payload.
func (s *SlideService) prepareImage() func(ctx context.Context) (jobs.Operation, error) {
	snapshot := s.settings.ProvidersSnapshot()
	return func(ctx context.Context) (jobs.Operation, error) {
		provider, err := s.registry.ResolveImage(ctx, snapshot)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, item domain.WorkItem) (string, error) {
			data, err := provider.GenerateImage(ctx, generation.ImageRequest{
				Prompt:          item.Payload.Prompt,
				ReferenceImages: item.Payload.ReferenceImages,
				AspectRatio:     item.Payload.AspectRatio,
				Resolution:      item.Payload.Resolution,
			})
			if err != nil {
				return "", err
			}
			return s.images.SavePNG(ctx, item.Identity, data)
		}, nil
	}
}
