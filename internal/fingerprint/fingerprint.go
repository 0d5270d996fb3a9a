package fingerprint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"time"

	"github.com/user/video-dedup-go/internal/model"
)

// Columns is the fixed width of every sequence signature row.
const Columns = 64

var (
	// ErrEmptySignature indicates a sequence signature with zero rows
	ErrEmptySignature = errors.New("sequence signature has zero rows")
	// ErrInvalidDuration indicates a non-positive video duration
	ErrInvalidDuration = errors.New("duration must be positive")
	// ErrBadSignatureShape indicates a packed signature whose byte length
	// does not match the declared row count
	ErrBadSignatureShape = errors.New("packed signature length does not match row count")
	// ErrBadColumnCount indicates a stored row width other than 64
	ErrBadColumnCount = errors.New("sequence signature must have 64 columns")
)

// Fingerprint is the immutable in-memory form of an ingested video's
// perceptual features. Signature holds one 64-bit hash per sampled time
// window, in playback order.
type Fingerprint struct {
	VideoID         string
	CampaignID      string
	URL             string
	GlobalHash      uint64
	Signature       []uint64
	DurationSeconds float64
	CreatedAt       time.Time
}

// Validate checks signature shape and duration. Invalid fingerprints are
// rejected at ingestion and never persisted.
func (f *Fingerprint) Validate() error {
	if len(f.Signature) == 0 {
		return ErrEmptySignature
	}
	if f.DurationSeconds <= 0 {
		return ErrInvalidDuration
	}
	return nil
}

// Rows returns the number of temporal samples in the signature.
func (f *Fingerprint) Rows() int {
	return len(f.Signature)
}

// Hamming returns the number of differing bits between two 64-bit hashes.
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// PackHash packs a 64-bit hash into 8 bytes, big-endian, so that bit 63
// lands in the first byte. Matches the packing of the stored column.
func PackHash(h uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, h)
	return buf
}

// UnpackHash decodes an 8-byte packed hash.
func UnpackHash(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("packed hash must be 8 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// PackSignature packs signature rows into a row-major big-endian buffer
// of rows*8 bytes.
func PackSignature(sig []uint64) []byte {
	buf := make([]byte, len(sig)*8)
	for i, row := range sig {
		binary.BigEndian.PutUint64(buf[i*8:], row)
	}
	return buf
}

// UnpackSignature decodes a packed signature buffer into rows 64-bit rows.
func UnpackSignature(b []byte, rows int) ([]uint64, error) {
	if rows <= 0 {
		return nil, ErrEmptySignature
	}
	if len(b) != rows*8 {
		return nil, ErrBadSignatureShape
	}
	sig := make([]uint64, rows)
	for i := range sig {
		sig[i] = binary.BigEndian.Uint64(b[i*8:])
	}
	return sig, nil
}

// ToModel converts a fingerprint to its persisted row shape.
func (f *Fingerprint) ToModel() *model.VideoFeature {
	return &model.VideoFeature{
		VideoID:         f.VideoID,
		CampaignID:      f.CampaignID,
		URL:             f.URL,
		GlobalHash:      PackHash(f.GlobalHash),
		SeqSig:          PackSignature(f.Signature),
		SeqRows:         len(f.Signature),
		SeqCols:         Columns,
		DurationSeconds: f.DurationSeconds,
		CreatedAt:       f.CreatedAt,
	}
}

// FromModel decodes a persisted row back into a fingerprint.
func FromModel(m *model.VideoFeature) (*Fingerprint, error) {
	if m.SeqCols != Columns {
		return nil, ErrBadColumnCount
	}
	hash, err := UnpackHash(m.GlobalHash)
	if err != nil {
		return nil, fmt.Errorf("failed to decode global hash for %s: %w", m.VideoID, err)
	}
	sig, err := UnpackSignature(m.SeqSig, m.SeqRows)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature for %s: %w", m.VideoID, err)
	}
	return &Fingerprint{
		VideoID:         m.VideoID,
		CampaignID:      m.CampaignID,
		URL:             m.URL,
		GlobalHash:      hash,
		Signature:       sig,
		DurationSeconds: m.DurationSeconds,
		CreatedAt:       m.CreatedAt,
	}, nil
}
