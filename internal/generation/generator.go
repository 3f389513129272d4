package generation

import (
	"context"
)

// TextRequest carries the parameters for a text generation call.
type TextRequest struct {
	// Prompt is the full prompt text.
	Prompt string

	// ThinkingBudget caps the model's reasoning tokens. Zero leaves
	// the provider default in place.
	ThinkingBudget int32
}

// ImageRequest carries the parameters for an image generation call.
type ImageRequest struct {
	// Prompt describes the image to generate.
	Prompt string

	// ReferenceImages are raw image bytes supplied as style or content
	// references, in the order they should be presented to the model.
	ReferenceImages [][]byte

	// AspectRatio is the requested aspect ratio (e.g. "16:9").
	AspectRatio string

	// Resolution is the requested resolution (e.g. "1920x1080").
	Resolution string
}

// EditRequest carries the parameters for an image edit call.
type EditRequest struct {
	// Images are the source images to edit, first image is primary.
	Images [][]byte

	// Prompt describes the edit to apply.
	Prompt string

	// AspectRatio is the requested aspect ratio of the result.
	AspectRatio string

	// Resolution is the requested resolution of the result.
	Resolution string
}

// Availability is the cheap, side-effect-free configuration probe every
// provider exposes. It must not perform network I/O; reporting true
// only means the provider has the configuration it needs to attempt a
// call (e.g. a credential is present).
type Availability interface {
	IsAvailable() bool
}

// TextGenerator is the capability interface for text generation.
// This interface serves as a boundary between the application core and
// external AI services, following the hexagonal architecture pattern.
type TextGenerator interface {
	Availability

	// GenerateText produces text for the given request. Failures are
	// reported as *ProviderError values classified as transient,
	// permanent, or unknown (see errors.go).
	GenerateText(ctx context.Context, req TextRequest) (string, error)
}

// ImageGenerator is the capability interface for image generation and
// editing. Results are raw encoded image bytes (PNG unless the
// provider documents otherwise).
type ImageGenerator interface {
	Availability

	// GenerateImage produces a new image for the given request.
	GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error)

	// EditImage applies the prompt to the given source images and
	// returns the edited result.
	EditImage(ctx context.Context, req EditRequest) ([]byte, error)
}
