package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/video-dedup-go/internal/fingerprint"
	"github.com/user/video-dedup-go/internal/matcher"
	"github.com/user/video-dedup-go/internal/store"
)

// CandidateInserter adds accepted fingerprints to the candidate index.
type CandidateInserter interface {
	Insert(videoID string, globalHash uint64)
}

// Service evaluates incoming fingerprints against the corpus and
// persists the distinct ones. The index is only updated after a
// successful save, so a concurrent match query never observes an
// indexed id without a durable row behind it.
type Service struct {
	store   store.Store
	index   CandidateInserter
	matcher *matcher.Matcher
}

// NewService creates a new ingestion service
func NewService(st store.Store, index CandidateInserter, m *matcher.Matcher) *Service {
	return &Service{
		store:   st,
		index:   index,
		matcher: m,
	}
}

// Evaluate scores a fingerprint against the corpus without persisting
// anything.
func (s *Service) Evaluate(ctx context.Context, fp *fingerprint.Fingerprint, scope matcher.Scope) (*matcher.Result, error) {
	return s.matcher.Match(ctx, fp, scope)
}

// Ingest evaluates a fingerprint and, when distinct, persists it and
// updates the candidate index. Duplicates are returned without side
// effects; a rejected save (duplicate URL, storage failure) leaves the
// index untouched.
func (s *Service) Ingest(ctx context.Context, fp *fingerprint.Fingerprint, scope matcher.Scope) (*matcher.Result, error) {
	result, err := s.matcher.Match(ctx, fp, scope)
	if err != nil {
		return nil, err
	}

	if result.Duplicate {
		log.Info().
			Str("videoID", fp.VideoID).
			Str("matchedVideoID", result.VideoID).
			Float64("similarity", result.Similarity).
			Msg("Duplicate fingerprint rejected")
		return result, nil
	}

	if fp.CreatedAt.IsZero() {
		fp.CreatedAt = time.Now()
	}

	if err := s.store.SaveFingerprint(ctx, fp.ToModel()); err != nil {
		if errors.Is(err, store.ErrDuplicateURL) {
			return nil, fmt.Errorf("ingestion of %s aborted: %w", fp.VideoID, err)
		}
		return nil, fmt.Errorf("failed to persist fingerprint %s: %w", fp.VideoID, err)
	}

	s.index.Insert(fp.VideoID, fp.GlobalHash)

	log.Info().
		Str("videoID", fp.VideoID).
		Str("campaignID", fp.CampaignID).
		Int("rows", fp.Rows()).
		Msg("Fingerprint ingested")
	return result, nil
}
