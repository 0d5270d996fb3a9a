package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/video-dedup-go/internal/fingerprint"
	"github.com/user/video-dedup-go/internal/matcher"
	"github.com/user/video-dedup-go/internal/model"
	"github.com/user/video-dedup-go/internal/store"
)

// EvaluateRequest carries one fingerprint to match against the corpus.
// GlobalHash is 16 hex characters; SequenceSignature is the base64 of
// rows*8 bytes, big-endian, in playback order.
type EvaluateRequest struct {
	VideoID           string  `json:"video_id"`
	CampaignID        string  `json:"campaign_id"`
	URL               string  `json:"url"`
	GlobalHash        string  `json:"global_hash"`
	SequenceSignature string  `json:"sequence_signature"`
	Rows              int     `json:"rows"`
	DurationSeconds   float64 `json:"duration_seconds"`
	Scope             string  `json:"scope,omitempty"`
	DryRun            bool    `json:"dry_run,omitempty"`
}

// EvaluateResponse is the verdict returned to the caller
type EvaluateResponse struct {
	Duplicated      bool    `json:"duplicated"`
	MatchedVideoID  string  `json:"matched_video_id,omitempty"`
	MatchedURL      string  `json:"matched_url,omitempty"`
	Similarity      float64 `json:"similarity,omitempty"`
	HammingDistance int     `json:"hamming_distance,omitempty"`
	Persisted       bool    `json:"persisted"`
}

// RetentionRequest upserts a campaign's retention window
type RetentionRequest struct {
	CampaignID string `json:"campaign_id"`
	EndDate    string `json:"end_date"` // YYYY-MM-DD
}

// FeaturesResponse reports the stored shape of a fingerprint without
// the raw bit arrays
type FeaturesResponse struct {
	VideoID         string    `json:"video_id"`
	CampaignID      string    `json:"campaign_id"`
	URL             string    `json:"url"`
	Rows            int       `json:"rows"`
	Columns         int       `json:"columns"`
	DurationSeconds float64   `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

func (req *EvaluateRequest) fingerprint() (*fingerprint.Fingerprint, error) {
	hash, err := strconv.ParseUint(req.GlobalHash, 16, 64)
	if err != nil {
		return nil, errors.New("global_hash must be a 64-bit hex value")
	}
	packed, err := base64.StdEncoding.DecodeString(req.SequenceSignature)
	if err != nil {
		return nil, errors.New("sequence_signature must be base64")
	}
	sig, err := fingerprint.UnpackSignature(packed, req.Rows)
	if err != nil {
		return nil, err
	}
	return &fingerprint.Fingerprint{
		VideoID:         req.VideoID,
		CampaignID:      req.CampaignID,
		URL:             req.URL,
		GlobalHash:      hash,
		Signature:       sig,
		DurationSeconds: req.DurationSeconds,
	}, nil
}

func (req *EvaluateRequest) scope() matcher.Scope {
	if req.Scope == string(matcher.ScopeCampaign) {
		return matcher.ScopeCampaign
	}
	return matcher.ScopeGlobal
}

// handleEvaluate evaluates a fingerprint and, unless dry_run is set,
// ingests it when distinct
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !s.limiter.Allow() {
		RecordError("rate_limited")
		writeError(w, http.StatusTooManyRequests, "evaluate rate limit exceeded")
		return
	}

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.VideoID == "" || req.CampaignID == "" || req.URL == "" {
		writeError(w, http.StatusBadRequest, "video_id, campaign_id and url are required")
		return
	}

	fp, err := req.fingerprint()
	if err != nil {
		RecordError("invalid_fingerprint")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := fp.Validate(); err != nil {
		RecordError("invalid_fingerprint")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	startTime := time.Now()
	var result *matcher.Result
	if req.DryRun {
		result, err = s.ingest.Evaluate(r.Context(), fp, req.scope())
	} else {
		result, err = s.ingest.Ingest(r.Context(), fp, req.scope())
	}
	if err != nil {
		if errors.Is(err, store.ErrDuplicateURL) {
			RecordError("duplicate_url")
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		RecordError("evaluate")
		log.Error().Err(err).Str("videoID", req.VideoID).Msg("Evaluate failed")
		writeError(w, http.StatusInternalServerError, "evaluation failed")
		return
	}

	verdict := "distinct"
	if result.Duplicate {
		verdict = "duplicate"
	}
	RecordEvaluation(verdict, time.Since(startTime))

	writeJSON(w, http.StatusOK, EvaluateResponse{
		Duplicated:      result.Duplicate,
		MatchedVideoID:  result.VideoID,
		MatchedURL:      result.URL,
		Similarity:      result.Similarity,
		HammingDistance: result.HammingDistance,
		Persisted:       !req.DryRun && !result.Duplicate,
	})
}

// handleSweep triggers a retention sweep immediately
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, started := s.sweeper.TryRun(r.Context(), time.Now())
	if !started {
		writeError(w, http.StatusConflict, "a sweep is already running")
		return
	}

	RecordSweepDeletions(stats.Deleted)
	writeJSON(w, http.StatusOK, stats)
}

// handleRetention upserts a campaign retention record
func (s *Server) handleRetention(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req RetentionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CampaignID == "" {
		writeError(w, http.StatusBadRequest, "campaign_id is required")
		return
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return
	}

	record := &model.CampaignRetention{
		CampaignID: req.CampaignID,
		EndDate:    endDate,
	}
	if err := s.store.UpsertRetention(r.Context(), record); err != nil {
		RecordError("retention_upsert")
		log.Error().Err(err).Str("campaignID", req.CampaignID).Msg("Failed to upsert retention")
		writeError(w, http.StatusInternalServerError, "failed to upsert retention record")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"campaign_id": req.CampaignID,
		"end_date":    req.EndDate,
	})
}

// handleFeatures reports the stored shape of a fingerprint, for QA
func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	videoID := r.URL.Query().Get("video_id")
	if videoID == "" {
		writeError(w, http.StatusBadRequest, "video_id is required")
		return
	}

	feature, err := s.store.GetFingerprint(r.Context(), videoID)
	if err != nil {
		RecordError("features")
		writeError(w, http.StatusInternalServerError, "failed to fetch fingerprint")
		return
	}
	if feature == nil {
		writeError(w, http.StatusNotFound, "no fingerprint for that video_id")
		return
	}

	writeJSON(w, http.StatusOK, FeaturesResponse{
		VideoID:         feature.VideoID,
		CampaignID:      feature.CampaignID,
		URL:             feature.URL,
		Rows:            feature.SeqRows,
		Columns:         feature.SeqCols,
		DurationSeconds: feature.DurationSeconds,
		CreatedAt:       feature.CreatedAt,
	})
}
