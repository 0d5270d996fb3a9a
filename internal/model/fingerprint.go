package model

import (
	"time"
)

// VideoFeature is the persisted fingerprint row for an ingested video.
// GlobalHash is the packed 64-bit perceptual hash (8 bytes, big-endian).
// SeqSig packs SeqRows rows of 64 bits each, row-major, big-endian.
type VideoFeature struct {
	VideoID         string    `gorm:"primaryKey;size:64"`
	CampaignID      string    `gorm:"index;size:64;not null"`
	URL             string    `gorm:"uniqueIndex;size:500;not null"`
	GlobalHash      []byte    `gorm:"type:binary(8);not null"`
	SeqSig          []byte    `gorm:"type:blob;not null"`
	SeqRows         int       `gorm:"not null"`
	SeqCols         int       `gorm:"not null;default:64"`
	DurationSeconds float64   `gorm:"not null"`
	CreatedAt       time.Time `gorm:"index"`
}

// TableName returns the table name for VideoFeature
func (VideoFeature) TableName() string {
	return "video_features"
}
