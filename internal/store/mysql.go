package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/video-dedup-go/internal/config"
	"github.com/user/video-dedup-go/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// MySQLStore implements Store interface using MySQL database
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore creates a new MySQL store instance
func NewMySQLStore(cfg *config.DBConfig) (*MySQLStore, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Auto migrate tables
	if err := db.AutoMigrate(&model.VideoFeature{}, &model.CampaignRetention{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

// SaveFingerprint inserts a fingerprint row.
// Returns ErrDuplicateURL if another row already holds the same URL.
func (s *MySQLStore) SaveFingerprint(ctx context.Context, feature *model.VideoFeature) error {
	result := s.db.WithContext(ctx).Create(feature)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateURL
		}
		return fmt.Errorf("failed to save fingerprint: %w", result.Error)
	}
	return nil
}

// GetFingerprint retrieves a fingerprint by video id. Returns nil, nil
// when no row exists.
func (s *MySQLStore) GetFingerprint(ctx context.Context, videoID string) (*model.VideoFeature, error) {
	var feature model.VideoFeature
	result := s.db.WithContext(ctx).Where("video_id = ?", videoID).First(&feature)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get fingerprint: %w", result.Error)
	}
	return &feature, nil
}

// GetFingerprints retrieves fingerprints for a set of video ids. Missing
// ids are silently absent from the result.
func (s *MySQLStore) GetFingerprints(ctx context.Context, videoIDs []string) ([]*model.VideoFeature, error) {
	if len(videoIDs) == 0 {
		return nil, nil
	}
	var features []*model.VideoFeature
	result := s.db.WithContext(ctx).Where("video_id IN ?", videoIDs).Find(&features)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get fingerprints: %w", result.Error)
	}
	return features, nil
}

// FindByCampaign retrieves all fingerprints owned by a campaign,
// newest first.
func (s *MySQLStore) FindByCampaign(ctx context.Context, campaignID string) ([]*model.VideoFeature, error) {
	var features []*model.VideoFeature
	result := s.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at DESC").
		Find(&features)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find fingerprints by campaign: %w", result.Error)
	}
	return features, nil
}

// ListFingerprints retrieves all fingerprint rows, used to rebuild the
// candidate index at process start.
func (s *MySQLStore) ListFingerprints(ctx context.Context) ([]*model.VideoFeature, error) {
	var features []*model.VideoFeature
	result := s.db.WithContext(ctx).Find(&features)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list fingerprints: %w", result.Error)
	}
	return features, nil
}

// DeleteFingerprint removes a fingerprint row by video id.
func (s *MySQLStore) DeleteFingerprint(ctx context.Context, videoID string) error {
	result := s.db.WithContext(ctx).Where("video_id = ?", videoID).Delete(&model.VideoFeature{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete fingerprint: %w", result.Error)
	}
	return nil
}

// CountFingerprints returns the total count of stored fingerprints
func (s *MySQLStore) CountFingerprints(ctx context.Context) (int64, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&model.VideoFeature{}).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count fingerprints: %w", result.Error)
	}
	return count, nil
}

// UpsertRetention creates or updates a campaign's retention record.
// Extending an end date bumps updated_at.
func (s *MySQLStore) UpsertRetention(ctx context.Context, record *model.CampaignRetention) error {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"end_date", "updated_at"}),
	}).Create(record)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert retention record: %w", result.Error)
	}
	return nil
}

// GetRetention retrieves a campaign's retention record. Returns nil, nil
// when the campaign has none (such campaigns never expire).
func (s *MySQLStore) GetRetention(ctx context.Context, campaignID string) (*model.CampaignRetention, error) {
	var record model.CampaignRetention
	result := s.db.WithContext(ctx).Where("campaign_id = ?", campaignID).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get retention record: %w", result.Error)
	}
	return &record, nil
}

// FindExpiredRetentions retrieves retention records whose end date is
// strictly before now's date.
func (s *MySQLStore) FindExpiredRetentions(ctx context.Context, now time.Time) ([]*model.CampaignRetention, error) {
	var records []*model.CampaignRetention
	today := now.Truncate(24 * time.Hour)
	result := s.db.WithContext(ctx).
		Where("end_date < ?", today).
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find expired retentions: %w", result.Error)
	}
	return records, nil
}

// DeleteRetention removes a campaign's retention record.
func (s *MySQLStore) DeleteRetention(ctx context.Context, campaignID string) error {
	result := s.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Delete(&model.CampaignRetention{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete retention record: %w", result.Error)
	}
	return nil
}

// Ping checks database connectivity
func (s *MySQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	return sqlDB.Close()
}

// DB returns the underlying gorm.DB instance (for testing purposes)
func (s *MySQLStore) DB() *gorm.DB {
	return s.db
}
