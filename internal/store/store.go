package store

import (
	"context"
	"errors"
	"time"

	"github.com/user/video-dedup-go/internal/model"
)

// ErrDuplicateURL is returned by SaveFingerprint when another fingerprint
// already references the same source URL.
var ErrDuplicateURL = errors.New("a fingerprint for this url already exists")

// Store defines the persistence boundary for fingerprints and retention
// records. The core never assumes a specific storage engine behind it.
type Store interface {
	// Fingerprint operations
	SaveFingerprint(ctx context.Context, feature *model.VideoFeature) error
	GetFingerprint(ctx context.Context, videoID string) (*model.VideoFeature, error)
	GetFingerprints(ctx context.Context, videoIDs []string) ([]*model.VideoFeature, error)
	FindByCampaign(ctx context.Context, campaignID string) ([]*model.VideoFeature, error)
	ListFingerprints(ctx context.Context) ([]*model.VideoFeature, error)
	DeleteFingerprint(ctx context.Context, videoID string) error
	CountFingerprints(ctx context.Context) (int64, error)

	// Retention operations
	UpsertRetention(ctx context.Context, record *model.CampaignRetention) error
	GetRetention(ctx context.Context, campaignID string) (*model.CampaignRetention, error)
	FindExpiredRetentions(ctx context.Context, now time.Time) ([]*model.CampaignRetention, error)
	DeleteRetention(ctx context.Context, campaignID string) error

	// Health check
	Ping(ctx context.Context) error
	Close() error
}
