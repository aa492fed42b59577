package repository

import (
	"context"

	"maildigest-service/internal/domain/entity"
)

// SummarizerRepository defines the interface for the external text-generation
// service. Implementations retry transient failures internally and return a
// *entity.GenerationError when the call ultimately fails.
type SummarizerRepository interface {
	Summarize(ctx context.Context, request *entity.GenerationRequest) (*entity.GenerationResult, error)
}
