package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/user/video-dedup-go/internal/fingerprint"
	"github.com/user/video-dedup-go/internal/model"
)

// Source provides the rows needed to rebuild the index at startup.
type Source interface {
	ListFingerprints(ctx context.Context) ([]*model.VideoFeature, error)
}

// bandCounts are the usable band splits of a 64-bit hash, coarsest first.
// Band width is 64/bands, at most 8 bits so a bucket key fits in a byte.
var bandCounts = []int{8, 16, 32, 64}

// Index buckets fingerprint ids under fixed-width bands of the global
// hash. Two hashes within Hamming distance d share at least one band
// whenever bands > d, so Candidates never misses a true match within the
// configured bound. False positives are expected and filtered by the
// matcher. The index is a rebuildable cache, never a source of truth.
type Index struct {
	bands int
	width uint

	shards []*shard

	mu     sync.RWMutex
	hashes map[string]uint64
}

// shard holds the buckets of a single band behind its own lock, so
// concurrent match queries only contend per band.
type shard struct {
	mu      sync.RWMutex
	buckets map[byte]map[string]struct{}
}

// New creates an index whose banding guarantees no false negatives for
// queries within maxHamming bits (0..63).
func New(maxHamming int) (*Index, error) {
	if maxHamming < 0 || maxHamming > 63 {
		return nil, fmt.Errorf("max hamming distance must be in [0,63], got %d", maxHamming)
	}
	bands := bandCounts[len(bandCounts)-1]
	for _, b := range bandCounts {
		if b > maxHamming {
			bands = b
			break
		}
	}
	idx := &Index{
		bands:  bands,
		width:  uint(64 / bands),
		shards: make([]*shard, bands),
		hashes: make(map[string]uint64),
	}
	for i := range idx.shards {
		idx.shards[i] = &shard{buckets: make(map[byte]map[string]struct{})}
	}
	return idx, nil
}

// Bands returns the number of hash bands in use.
func (idx *Index) Bands() int {
	return idx.bands
}

// bandValue extracts band b of the hash, counting from the high bits.
func (idx *Index) bandValue(hash uint64, b int) byte {
	shift := 64 - uint(b+1)*idx.width
	mask := uint64(1)<<idx.width - 1
	return byte(hash >> shift & mask)
}

// Insert registers a video id under every band of its global hash.
// Re-inserting the same id is idempotent; an id re-inserted with a
// different hash is moved to the new buckets.
func (idx *Index) Insert(videoID string, globalHash uint64) {
	idx.mu.Lock()
	prev, exists := idx.hashes[videoID]
	if exists && prev == globalHash {
		idx.mu.Unlock()
		return
	}
	idx.hashes[videoID] = globalHash
	idx.mu.Unlock()

	if exists {
		idx.evict(videoID, prev)
	}
	for b, s := range idx.shards {
		v := idx.bandValue(globalHash, b)
		s.mu.Lock()
		bucket, ok := s.buckets[v]
		if !ok {
			bucket = make(map[string]struct{})
			s.buckets[v] = bucket
		}
		bucket[videoID] = struct{}{}
		s.mu.Unlock()
	}
}

// Candidates returns every video id sharing at least one band with the
// query hash. The result is a superset of all stored hashes within the
// configured Hamming bound.
func (idx *Index) Candidates(globalHash uint64) []string {
	seen := make(map[string]struct{})
	for b, s := range idx.shards {
		v := idx.bandValue(globalHash, b)
		s.mu.RLock()
		for id := range s.buckets[v] {
			seen[id] = struct{}{}
		}
		s.mu.RUnlock()
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

// Remove evicts a video id from all bands. No-op if absent.
func (idx *Index) Remove(videoID string) {
	idx.mu.Lock()
	hash, ok := idx.hashes[videoID]
	if ok {
		delete(idx.hashes, videoID)
	}
	idx.mu.Unlock()
	if !ok {
		return
	}
	idx.evict(videoID, hash)
}

func (idx *Index) evict(videoID string, hash uint64) {
	for b, s := range idx.shards {
		v := idx.bandValue(hash, b)
		s.mu.Lock()
		if bucket, ok := s.buckets[v]; ok {
			delete(bucket, videoID)
			if len(bucket) == 0 {
				delete(s.buckets, v)
			}
		}
		s.mu.Unlock()
	}
}

// Len returns the number of indexed fingerprints.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.hashes)
}

// Rebuild repopulates the index from durable storage. Loss of the index
// is a latency regression, not a correctness failure.
func (idx *Index) Rebuild(ctx context.Context, src Source) error {
	rows, err := src.ListFingerprints(ctx)
	if err != nil {
		return fmt.Errorf("failed to list fingerprints for rebuild: %w", err)
	}
	for _, row := range rows {
		hash, err := fingerprint.UnpackHash(row.GlobalHash)
		if err != nil {
			log.Warn().Err(err).Str("videoID", row.VideoID).Msg("Skipping row with bad hash during rebuild")
			continue
		}
		idx.Insert(row.VideoID, hash)
	}
	log.Info().Int("count", len(rows)).Int("bands", idx.bands).Msg("Candidate index rebuilt")
	return nil
}
