package port

import (
	"context"

	"tickerhub/internal/domain/model"
)

// FeedPort is implemented by upstream price sources.
type FeedPort interface {
	// Stream starts the feed and returns its output channel. The channel
	// closes only after the feed has fully stopped.
	Stream(ctx context.Context) <-chan model.PriceRecord
	State() model.FeedState
	Name() string
}
