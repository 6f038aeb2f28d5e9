// Package ai holds the provider-neutral contract for text generation.
package ai

import "context"

// Generator produces a model reply to message under the given system instruction.
type Generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}
