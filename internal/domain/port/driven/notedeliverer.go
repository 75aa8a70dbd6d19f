package driven

import (
	"context"

	"github.com/pj-lytezen/obsidian-api-webhook/internal/domain/model"
)

// NoteDeliverer defines the driven port for forwarding one note to the
// downstream note API. Implementations classify every attempt as a
// DeliveryOutcome and never retry internally; retry is an explicit act
// (flush) owned by the caller so the number of attempts stays predictable.
type NoteDeliverer interface {
	Deliver(ctx context.Context, apiKey string, period model.Period, note string) model.DeliveryOutcome
}
