package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// timelineRepository — in-memory реализация TimelineRepository.
type timelineRepository struct {
	state *state
}

func (r *timelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	if event.OrderID == "" {
		return domain.ErrOrderIDRequired
	}
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}
	r.state.timeline[event.OrderID] = append(r.state.timeline[event.OrderID], event)
	return nil
}

func (r *timelineRepository) List(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	events := r.state.timeline[orderID]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
