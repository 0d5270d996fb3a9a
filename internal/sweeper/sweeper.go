package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/video-dedup-go/internal/config"
	"github.com/user/video-dedup-go/internal/events"
	"github.com/user/video-dedup-go/internal/store"
)

// ErrMediaDeletion indicates that one or more media-deletion events could
// not be published. The affected fingerprint records stay live and are
// retried on the next sweep.
var ErrMediaDeletion = errors.New("media deletion not confirmed")

// CandidateEvictor removes swept fingerprints from the candidate index.
type CandidateEvictor interface {
	Remove(videoID string)
}

// Stats summarizes a single sweep pass.
type Stats struct {
	ExpiredCampaigns int `json:"expired_campaigns"`
	Deleted          int `json:"deleted"`
	Failed           int `json:"failed"`
}

// Sweeper enforces campaign retention windows. For every campaign whose
// end date has passed it publishes a media-deletion event per owned
// fingerprint, deletes the confirmed records from storage and evicts
// them from the candidate index. At most one sweep runs at a time;
// sweeping is idempotent and driven entirely by the injected clock.
type Sweeper struct {
	store   store.Store
	index   CandidateEvictor
	sink    events.Sink
	config  *config.SweeperConfig
	running atomic.Bool
	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewSweeper creates a new sweeper instance
func NewSweeper(st store.Store, index CandidateEvictor, sink events.Sink, cfg *config.SweeperConfig) *Sweeper {
	return &Sweeper{
		store:  st,
		index:  index,
		sink:   sink,
		config: cfg,
		stopCh: make(chan struct{}),
	}
}

// Start begins periodic sweeping with an initial delay.
func (s *Sweeper) Start(ctx context.Context) {
	if !s.config.Enabled {
		log.Info().Msg("Sweeper is disabled")
		return
	}

	s.wg.Add(1)
	go s.run(ctx)
}

// run is the main sweep loop
func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	initialDelay := 5 * time.Second
	log.Info().Dur("delay", initialDelay).Msg("Sweeper starting with initial delay")

	select {
	case <-time.After(initialDelay):
		s.executeSweep(ctx)
	case <-s.stopCh:
		log.Info().Msg("Sweeper stopped during initial delay")
		return
	case <-ctx.Done():
		log.Info().Msg("Sweeper context cancelled during initial delay")
		return
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.config.Interval).Msg("Sweeper started periodic execution")

	for {
		select {
		case <-ticker.C:
			s.executeSweep(ctx)
		case <-s.stopCh:
			log.Info().Msg("Sweeper stopped")
			return
		case <-ctx.Done():
			log.Info().Msg("Sweeper context cancelled")
			return
		}
	}
}

// executeSweep runs a single sweep with mutex protection so overlapping
// triggers are skipped rather than queued.
func (s *Sweeper) executeSweep(ctx context.Context) {
	if !s.mu.TryLock() {
		log.Warn().Msg("Sweep already running, skipping this trigger")
		return
	}
	defer s.mu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	startTime := time.Now()
	stats, err := s.SweepOnce(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("Scheduled sweep failed")
	}

	log.Info().
		Dur("duration", time.Since(startTime)).
		Int("expiredCampaigns", stats.ExpiredCampaigns).
		Int("deleted", stats.Deleted).
		Int("failed", stats.Failed).
		Msg("Scheduled sweep completed")
}

// SweepOnce deletes every fingerprint owned by a campaign whose
// retention window elapsed before now. A fingerprint record is only
// deleted after its media-deletion event is confirmed; failures leave
// the record live for the next pass. The retention row itself is removed
// once the campaign holds no more fingerprints.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) (Stats, error) {
	var stats Stats

	expired, err := s.store.FindExpiredRetentions(ctx, now)
	if err != nil {
		return stats, fmt.Errorf("failed to find expired campaigns: %w", err)
	}
	stats.ExpiredCampaigns = len(expired)

	for _, record := range expired {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		features, err := s.store.FindByCampaign(ctx, record.CampaignID)
		if err != nil {
			return stats, fmt.Errorf("failed to fetch fingerprints for campaign %s: %w", record.CampaignID, err)
		}

		failed := 0
		for _, feature := range features {
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			event := events.DeletionEvent{
				VideoID:    feature.VideoID,
				CampaignID: feature.CampaignID,
				URL:        feature.URL,
				DeletedAt:  now,
			}
			if err := s.sink.PublishDeletion(ctx, event); err != nil {
				log.Error().
					Err(err).
					Str("videoID", feature.VideoID).
					Str("campaignID", feature.CampaignID).
					Msg("Media deletion unconfirmed, keeping fingerprint for retry")
				failed++
				continue
			}

			if err := s.store.DeleteFingerprint(ctx, feature.VideoID); err != nil {
				log.Error().Err(err).Str("videoID", feature.VideoID).Msg("Failed to delete fingerprint record")
				failed++
				continue
			}

			s.index.Remove(feature.VideoID)
			stats.Deleted++
		}

		if failed > 0 {
			stats.Failed += failed
			continue
		}

		// All owned fingerprints are gone, the retention row can follow.
		if err := s.store.DeleteRetention(ctx, record.CampaignID); err != nil {
			log.Error().Err(err).Str("campaignID", record.CampaignID).Msg("Failed to delete retention record")
			stats.Failed++
			continue
		}

		log.Info().
			Str("campaignID", record.CampaignID).
			Int("fingerprints", len(features)).
			Msg("Campaign retention enforced")
	}

	if stats.Failed > 0 {
		return stats, fmt.Errorf("%w: %d items pending retry", ErrMediaDeletion, stats.Failed)
	}
	return stats, nil
}

// Stop gracefully stops the sweeper
func (s *Sweeper) Stop() {
	log.Info().Msg("Stopping sweeper...")
	close(s.stopCh)
	s.wg.Wait()
	log.Info().Msg("Sweeper stopped")
}

// IsRunning returns true if a sweep is currently in flight
func (s *Sweeper) IsRunning() bool {
	return s.running.Load()
}

// TryRun attempts to run a sweep immediately.
// Returns false if a sweep is already running.
func (s *Sweeper) TryRun(ctx context.Context, now time.Time) (Stats, bool) {
	if !s.mu.TryLock() {
		return Stats{}, false
	}
	defer s.mu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	startTime := time.Now()
	stats, err := s.SweepOnce(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("Manual sweep failed")
	}

	log.Info().
		Dur("duration", time.Since(startTime)).
		Int("deleted", stats.Deleted).
		Msg("Manual sweep completed")

	return stats, true
}
