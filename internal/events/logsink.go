package events

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogSink records deletion events to the structured log. Used when no
// Kafka brokers are configured.
type LogSink struct{}

// NewLogSink creates a logging-only sink
func NewLogSink() *LogSink {
	return &LogSink{}
}

// PublishDeletion logs the deletion event
func (s *LogSink) PublishDeletion(ctx context.Context, event DeletionEvent) error {
	log.Info().
		Str("videoID", event.VideoID).
		Str("campaignID", event.CampaignID).
		Str("url", event.URL).
		Time("deletedAt", event.DeletedAt).
		Msg("Media deletion requested")
	return nil
}

// Close is a no-op
func (s *LogSink) Close() error {
	return nil
}
