package matcher

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/user/video-dedup-go/internal/config"
	"github.com/user/video-dedup-go/internal/fingerprint"
	"github.com/user/video-dedup-go/internal/model"
)

// Scope controls which corpus a query is matched against.
type Scope string

const (
	// ScopeGlobal matches across all campaigns (the default).
	ScopeGlobal Scope = "GLOBAL"
	// ScopeCampaign restricts matching to the query's own campaign.
	ScopeCampaign Scope = "CAMPAIGN"
)

// CandidateIndex shortlists video ids that may be near the query hash.
type CandidateIndex interface {
	Candidates(globalHash uint64) []string
}

// CandidateSource resolves shortlisted ids to their stored fingerprints.
type CandidateSource interface {
	GetFingerprints(ctx context.Context, videoIDs []string) ([]*model.VideoFeature, error)
}

// Result is the verdict for a single query fingerprint. When Duplicate
// is true, VideoID and URL identify the best-scoring stored match.
type Result struct {
	Duplicate       bool    `json:"duplicate"`
	VideoID         string  `json:"video_id,omitempty"`
	URL             string  `json:"url,omitempty"`
	Similarity      float64 `json:"similarity,omitempty"`
	HammingDistance int     `json:"hamming_distance,omitempty"`
}

// Matcher scores query fingerprints against the indexed corpus. Pure:
// it never mutates the index or the store.
type Matcher struct {
	index  CandidateIndex
	source CandidateSource
	cfg    *config.MatcherConfig
}

// NewMatcher creates a new matcher instance
func NewMatcher(index CandidateIndex, source CandidateSource, cfg *config.MatcherConfig) *Matcher {
	return &Matcher{
		index:  index,
		source: source,
		cfg:    cfg,
	}
}

// Match decides whether the query duplicates a stored fingerprint.
// A candidate matches when its exact Hamming distance on the global hash
// is within MaxHamming AND its alignment similarity reaches the
// configured threshold. The highest similarity wins; ties go to the
// earliest created candidate. An empty corpus is a distinct verdict,
// not an error.
func (m *Matcher) Match(ctx context.Context, query *fingerprint.Fingerprint, scope Scope) (*Result, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query fingerprint: %w", err)
	}

	ids := m.index.Candidates(query.GlobalHash)
	if len(ids) == 0 {
		return &Result{Duplicate: false}, nil
	}

	rows, err := m.source.GetFingerprints(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	log.Debug().
		Str("videoID", query.VideoID).
		Int("candidates", len(rows)).
		Str("scope", string(scope)).
		Msg("Scoring shortlisted candidates")

	var best *Result
	var bestCand *fingerprint.Fingerprint
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if row.VideoID == query.VideoID {
			continue
		}
		if scope == ScopeCampaign && row.CampaignID != query.CampaignID {
			continue
		}

		cand, err := fingerprint.FromModel(row)
		if err != nil {
			log.Warn().Err(err).Str("videoID", row.VideoID).Msg("Skipping undecodable candidate")
			continue
		}

		dist := fingerprint.Hamming(query.GlobalHash, cand.GlobalHash)
		if dist > m.cfg.MaxHamming {
			continue
		}

		sim := AlignSimilarity(query.Signature, cand.Signature, m.cfg.GapCost, m.cfg.MaxSignatureRows)
		if sim < m.cfg.SimilarityThreshold {
			continue
		}

		if best == nil || sim > best.Similarity ||
			(sim == best.Similarity && cand.CreatedAt.Before(bestCand.CreatedAt)) {
			best = &Result{
				Duplicate:       true,
				VideoID:         cand.VideoID,
				URL:             cand.URL,
				Similarity:      sim,
				HammingDistance: dist,
			}
			bestCand = cand
		}
	}

	if best == nil {
		return &Result{Duplicate: false}, nil
	}
	return best, nil
}
