package genlog

import (
	"context"
)

// Repository defines persistence for generation events
type Repository interface {
	Save(ctx context.Context, e *GenerationEvent) error
	ListBySample(ctx context.Context, participant string, sampleID string, limit int) ([]*GenerationEvent, error)
}
