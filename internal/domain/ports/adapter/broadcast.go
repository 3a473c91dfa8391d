package adapter

import (
	"context"

	"mediview-ai-service/internal/domain/model"
)

// ProgressBroadcaster is the best-effort pub/sub channel for job progress.
// Publish must never block the pipeline and must never return an error that
// fails a job; implementations swallow transport failures.
type ProgressBroadcaster interface {
	// Publish sends the event on the channel for its job id. Fire-and-forget.
	Publish(ctx context.Context, event model.ProgressEvent)

	// Subscribe returns a channel of events for the given job id and a cancel
	// function that releases the subscription. The channel is closed when the
	// subscription ends. There is no replay: events published before
	// Subscribe are not delivered.
	Subscribe(ctx context.Context, jobID string) (<-chan model.ProgressEvent, func(), error)
}
