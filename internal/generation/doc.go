// Package generation defines the provider abstraction the job engine
// calls into: capability interfaces for text and image generation, the
// typed error taxonomy retry decisions key on, and the registry that
// resolves the active provider from configuration at submission time.
package generation
