package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/user/video-dedup-go/internal/config"
	"github.com/user/video-dedup-go/internal/fingerprint"
	"github.com/user/video-dedup-go/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestStore is a helper to create a test store with a real MySQL database
func setupTestStore(t *testing.T) (*MySQLStore, func()) {
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		host = "localhost"
	}
	port := 3306
	user := os.Getenv("TEST_DB_USER")
	if user == "" {
		user = "root"
	}
	password := os.Getenv("TEST_DB_PASSWORD")
	if password == "" {
		password = "root"
	}
	database := os.Getenv("TEST_DB_NAME")
	if database == "" {
		database = "video_dedup_test"
	}

	cfg := &config.DBConfig{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		Database: database,
		MaxConns: 5,
	}

	// First connect without database to create it if needed
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User, cfg.Password, cfg.Host, cfg.Port)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("Skipping test: cannot connect to MySQL: %v", err)
	}

	db.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database))

	sqlDB, _ := db.DB()
	sqlDB.Close()

	store, err := NewMySQLStore(cfg)
	if err != nil {
		t.Skipf("Skipping test: cannot create store: %v", err)
	}

	cleanup := func() {
		store.db.Exec("DELETE FROM video_features")
		store.db.Exec("DELETE FROM campaign_retention")
		store.Close()
	}

	return store, cleanup
}

func testFeature(videoID, campaignID, url string) *model.VideoFeature {
	fp := &fingerprint.Fingerprint{
		VideoID:         videoID,
		CampaignID:      campaignID,
		URL:             url,
		GlobalHash:      0x0123456789ABCDEF,
		Signature:       []uint64{1, 2, 3, 4},
		DurationSeconds: 8.0,
	}
	return fp.ToModel()
}

func TestSaveFingerprint_RoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	feature := testFeature("rt-1", "cmp-1", "https://example.com/rt-1.mp4")
	if err := store.SaveFingerprint(ctx, feature); err != nil {
		t.Fatalf("SaveFingerprint() error = %v", err)
	}

	loaded, err := store.GetFingerprint(ctx, "rt-1")
	if err != nil {
		t.Fatalf("GetFingerprint() error = %v", err)
	}
	if loaded == nil {
		t.Fatal("GetFingerprint() = nil for saved row")
	}

	fp, err := fingerprint.FromModel(loaded)
	if err != nil {
		t.Fatalf("FromModel() error = %v", err)
	}
	if fp.GlobalHash != 0x0123456789ABCDEF {
		t.Errorf("round-trip hash = %x, want 0123456789abcdef", fp.GlobalHash)
	}
	if len(fp.Signature) != 4 || fp.Signature[2] != 3 {
		t.Errorf("round-trip signature = %v, want [1 2 3 4]", fp.Signature)
	}

	store.db.Where("video_id = ?", "rt-1").Delete(&model.VideoFeature{})
}

func TestSaveFingerprint_DuplicateURL(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	url := "https://example.com/dup.mp4"
	if err := store.SaveFingerprint(ctx, testFeature("dup-1", "cmp-1", url)); err != nil {
		t.Fatalf("first SaveFingerprint() error = %v", err)
	}

	err := store.SaveFingerprint(ctx, testFeature("dup-2", "cmp-1", url))
	if !errors.Is(err, ErrDuplicateURL) {
		t.Errorf("second SaveFingerprint() error = %v, want ErrDuplicateURL", err)
	}

	store.db.Where("campaign_id = ?", "cmp-1").Delete(&model.VideoFeature{})
}

func TestFindExpiredRetentions_Boundary(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	endDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	record := &model.CampaignRetention{CampaignID: "exp-1", EndDate: endDate}
	if err := store.UpsertRetention(ctx, record); err != nil {
		t.Fatalf("UpsertRetention() error = %v", err)
	}

	// On the end date itself the campaign is still live.
	expired, err := store.FindExpiredRetentions(ctx, endDate)
	if err != nil {
		t.Fatalf("FindExpiredRetentions() error = %v", err)
	}
	for _, r := range expired {
		if r.CampaignID == "exp-1" {
			t.Error("campaign reported expired on its end date")
		}
	}

	// The day after it is eligible.
	expired, err = store.FindExpiredRetentions(ctx, endDate.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("FindExpiredRetentions() error = %v", err)
	}
	found := false
	for _, r := range expired {
		if r.CampaignID == "exp-1" {
			found = true
		}
	}
	if !found {
		t.Error("campaign not reported expired the day after its end date")
	}

	store.db.Where("campaign_id = ?", "exp-1").Delete(&model.CampaignRetention{})
}

func TestUpsertRetention_ExtendsEndDate(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	first := &model.CampaignRetention{
		CampaignID: "ext-1",
		EndDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := store.UpsertRetention(ctx, first); err != nil {
		t.Fatalf("UpsertRetention() error = %v", err)
	}

	extended := &model.CampaignRetention{
		CampaignID: "ext-1",
		EndDate:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := store.UpsertRetention(ctx, extended); err != nil {
		t.Fatalf("UpsertRetention(extend) error = %v", err)
	}

	loaded, err := store.GetRetention(ctx, "ext-1")
	if err != nil {
		t.Fatalf("GetRetention() error = %v", err)
	}
	if loaded == nil {
		t.Fatal("GetRetention() = nil for upserted campaign")
	}
	if loaded.EndDate.Year() != 2025 {
		t.Errorf("end date year = %d after extension, want 2025", loaded.EndDate.Year())
	}

	store.db.Where("campaign_id = ?", "ext-1").Delete(&model.CampaignRetention{})
}

// genVideoID generates identifiers in the shape used by ingestion
func genVideoID() gopter.Gen {
	return gen.RegexMatch(`[a-f0-9]{8}-[a-f0-9]{4}`)
}

// Feature: video-dedup-go, Property: URL Uniqueness
// For any URL, saving fingerprints for it under different video ids
// results in exactly one stored row; later saves fail with
// ErrDuplicateURL.
func TestProperty_URLUniqueness(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("one row per url regardless of save attempts", prop.ForAll(
		func(id string, attempts int) bool {
			ctx := context.Background()
			url := "https://example.com/" + id + ".mp4"

			store.db.Where("url = ?", url).Delete(&model.VideoFeature{})

			for i := 0; i < attempts; i++ {
				feature := testFeature(fmt.Sprintf("%s-%d", id, i), "prop-cmp", url)
				err := store.SaveFingerprint(ctx, feature)
				if i == 0 && err != nil {
					return false
				}
				if i > 0 && !errors.Is(err, ErrDuplicateURL) {
					return false
				}
			}

			var count int64
			store.db.Model(&model.VideoFeature{}).Where("url = ?", url).Count(&count)

			store.db.Where("url = ?", url).Delete(&model.VideoFeature{})

			return count == 1
		},
		genVideoID(),
		gen.IntRange(2, 4),
	))

	properties.TestingRun(t)
}
