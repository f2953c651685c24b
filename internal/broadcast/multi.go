package broadcast

import (
	"context"
	"errors"

	"github.com/geoscraper/tile-service/internal/tasks"
	"github.com/geoscraper/tile-service/internal/types"
)

// Multi publishes to every publisher and joins their errors
type Multi []tasks.Publisher

// Publish sends t to all publishers
func (m Multi) Publish(ctx context.Context, t *types.Task) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
