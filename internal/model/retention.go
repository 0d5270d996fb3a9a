package model

import (
	"time"
)

// CampaignRetention defines how long fingerprints owned by a campaign are
// kept. Fingerprints whose campaign's EndDate has passed become eligible
// for deletion by the sweeper. A campaign with no retention row never
// expires.
type CampaignRetention struct {
	CampaignID string    `gorm:"primaryKey;size:64"`
	EndDate    time.Time `gorm:"type:date;not null;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName returns the table name for CampaignRetention
func (CampaignRetention) TableName() string {
	return "campaign_retention"
}
