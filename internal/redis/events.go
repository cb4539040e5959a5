// ABOUTME: Publishes scan completion events to a capped Redis stream
// ABOUTME: Downstream consumers read them with XREADGROUP

package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

// DefaultEventStream is the stream name used when none is configured.
const DefaultEventStream = "scan-events"

// EventPublisher appends one entry per completed scan.
type EventPublisher struct {
	client    *Client
	streamKey string
	maxLen    int64
}

// NewEventPublisher creates a publisher. maxLen caps the stream approximately;
// zero means 10000.
func NewEventPublisher(client *Client, stream string, maxLen int64) *EventPublisher {
	if stream == "" {
		stream = DefaultEventStream
	}
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &EventPublisher{
		client:    client,
		streamKey: client.PrefixedKey(stream),
		maxLen:    maxLen,
	}
}

// StreamKey returns the prefixed stream key.
func (p *EventPublisher) StreamKey() string {
	return p.streamKey
}

// PublishScan records a report summary. The records payload is the persisted
// JSON array.
func (p *EventPublisher) PublishScan(ctx context.Context, report *types.ScanReport, persisted bool) (string, error) {
	payload, err := report.PersistedPayload()
	if err != nil {
		return "", fmt.Errorf("encoding records: %w", err)
	}

	id, err := p.client.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.streamKey,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"file_id":             report.FileID,
			"matched":             strconv.Itoa(report.MatchedCount()),
			"signatures":          strconv.Itoa(len(report.Records)),
			"persisted":           strconv.FormatBool(persisted),
			"catalog_fingerprint": report.CatalogFingerprint,
			"records":             string(payload),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("publishing scan event: %w", err)
	}
	return id, nil
}
