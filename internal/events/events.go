package events

import (
	"context"
	"time"
)

// DeletionEvent signals the external media-storage service that the
// underlying file for a purged fingerprint must be deleted.
type DeletionEvent struct {
	VideoID    string    `json:"video_id"`
	CampaignID string    `json:"campaign_id"`
	URL        string    `json:"url"`
	DeletedAt  time.Time `json:"deleted_at"`
}

// Sink publishes media-deletion events. PublishDeletion must only return
// nil once the event is durably handed off; the sweeper will not delete
// a fingerprint record until its event is confirmed.
type Sink interface {
	PublishDeletion(ctx context.Context, event DeletionEvent) error
	Close() error
}
