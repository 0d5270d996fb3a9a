package index

import (
	"context"
	"testing"

	"github.com/user/video-dedup-go/internal/fingerprint"
	"github.com/user/video-dedup-go/internal/model"
)

func TestNew_BandSelection(t *testing.T) {
	tests := []struct {
		maxHamming int
		wantBands  int
	}{
		{0, 8},
		{7, 8},
		{8, 16},
		{15, 16},
		{16, 32},
		{31, 32},
		{32, 64},
		{63, 64},
	}

	for _, tt := range tests {
		idx, err := New(tt.maxHamming)
		if err != nil {
			t.Fatalf("New(%d) error = %v", tt.maxHamming, err)
		}
		if idx.Bands() != tt.wantBands {
			t.Errorf("New(%d).Bands() = %d, want %d", tt.maxHamming, idx.Bands(), tt.wantBands)
		}
	}
}

func TestNew_InvalidBound(t *testing.T) {
	if _, err := New(-1); err == nil {
		t.Error("New(-1) expected error, got nil")
	}
	if _, err := New(64); err == nil {
		t.Error("New(64) expected error, got nil")
	}
}

func TestIndex_InsertAndCandidates(t *testing.T) {
	idx, err := New(8)
	if err != nil {
		t.Fatal(err)
	}

	idx.Insert("v1", 0x0123456789ABCDEF)
	idx.Insert("v2", 0xFEDCBA9876543210)

	found := false
	for _, id := range idx.Candidates(0x0123456789ABCDEF) {
		if id == "v1" {
			found = true
		}
	}
	if !found {
		t.Error("Candidates() missing exact-match id v1")
	}
	if idx.Len() != 2 {
		t.Errorf("Len() = %d, want 2", idx.Len())
	}
}

func TestIndex_Remove(t *testing.T) {
	idx, err := New(8)
	if err != nil {
		t.Fatal(err)
	}

	idx.Insert("v1", 42)
	idx.Remove("v1")

	if len(idx.Candidates(42)) != 0 {
		t.Error("Candidates() still returns removed id")
	}
	if idx.Len() != 0 {
		t.Errorf("Len() = %d after removal, want 0", idx.Len())
	}

	// Removing an absent id is a no-op.
	idx.Remove("v1")
	idx.Remove("never-inserted")
}

func TestIndex_ReinsertWithNewHash(t *testing.T) {
	idx, err := New(8)
	if err != nil {
		t.Fatal(err)
	}

	idx.Insert("v1", 0)
	idx.Insert("v1", 0xFFFFFFFFFFFFFFFF)

	if idx.Len() != 1 {
		t.Errorf("Len() = %d, want 1", idx.Len())
	}
	for _, id := range idx.Candidates(0) {
		if id == "v1" {
			t.Error("Candidates(old hash) still returns re-inserted id")
		}
	}
	found := false
	for _, id := range idx.Candidates(0xFFFFFFFFFFFFFFFF) {
		if id == "v1" {
			found = true
		}
	}
	if !found {
		t.Error("Candidates(new hash) missing re-inserted id")
	}
}

// fakeSource feeds rows to Rebuild without a database
type fakeSource struct {
	rows []*model.VideoFeature
}

func (f *fakeSource) ListFingerprints(ctx context.Context) ([]*model.VideoFeature, error) {
	return f.rows, nil
}

func TestIndex_Rebuild(t *testing.T) {
	src := &fakeSource{
		rows: []*model.VideoFeature{
			{VideoID: "v1", GlobalHash: fingerprint.PackHash(100)},
			{VideoID: "v2", GlobalHash: fingerprint.PackHash(200)},
			{VideoID: "bad", GlobalHash: []byte{1, 2}},
		},
	}

	idx, err := New(8)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Rebuild(context.Background(), src); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	if idx.Len() != 2 {
		t.Errorf("Len() = %d after rebuild, want 2 (bad row skipped)", idx.Len())
	}
	found := false
	for _, id := range idx.Candidates(100) {
		if id == "v1" {
			found = true
		}
	}
	if !found {
		t.Error("Candidates() missing rebuilt id v1")
	}
}
