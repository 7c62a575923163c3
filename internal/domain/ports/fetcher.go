package ports

import (
	"context"

	"bjjanalyzer/internal/domain"
)

// PageFetcher retrieves a product page body. Standard HTTP semantics:
// non-2xx statuses are errors.
type PageFetcher interface {
	Get(ctx context.Context, url string) (string, error)
}

// ProgressPublisher receives a stage-transition event after every state
// change; consumed by the API layer's broadcast hub.
type ProgressPublisher interface {
	Publish(ev domain.ProgressEvent)
}
