package redis

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"mediview-ai-service/internal/domain/model"
	"mediview-ai-service/internal/domain/ports/adapter"
	"mediview-ai-service/internal/infra/metrics"
)

var _ adapter.ProgressBroadcaster = (*ProgressBroadcaster)(nil)

// ProgressBroadcaster publishes job progress on Redis pub/sub channels named
// jobs:<jobID>. Publication is fire-and-forget: a publish failure is logged
// and counted, never surfaced to the pipeline.
type ProgressBroadcaster struct {
	cli *redis.Client
	log *zerolog.Logger
}

func NewProgressBroadcaster(cli *redis.Client, log *zerolog.Logger) *ProgressBroadcaster {
	return &ProgressBroadcaster{cli: cli, log: log}
}

func channelFor(jobID string) string { return "jobs:" + jobID }

func (b *ProgressBroadcaster) Publish(ctx context.Context, event model.ProgressEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		metrics.IncBroadcastPublish("dropped")
		b.log.Warn().Err(err).Str("job_id", event.JobID).Msg("progress event marshal failed")
		return
	}
	if err := b.cli.Publish(ctx, channelFor(event.JobID), payload).Err(); err != nil {
		metrics.IncBroadcastPublish("dropped")
		b.log.Warn().Err(err).Str("job_id", event.JobID).Msg("progress publish failed")
		return
	}
	metrics.IncBroadcastPublish("ok")
}

// Subscribe opens a pub/sub subscription for one job. The returned cancel
// function closes the subscription and the event channel; the forwarding
// goroutine also exits when ctx is done.
func (b *ProgressBroadcaster) Subscribe(ctx context.Context, jobID string) (<-chan model.ProgressEvent, func(), error) {
	sub := b.cli.Subscribe(ctx, channelFor(jobID))
	// Force the subscription to be established before we hand the channel out.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan model.ProgressEvent, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var ev model.ProgressEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn().Err(err).Str("job_id", jobID).Msg("progress event decode failed")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}
