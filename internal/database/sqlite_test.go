package database

import (
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/lumen/core/internal/entity"
)

func TestOpenPartitionMigratesSchemaAndRecordsMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owned.db")

	db, err := OpenPartition(path, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	for _, table := range []string{
		"photos", "thumbnails", "photo_data", "tags", "photo_tags", "ratings",
		"change_records", "checkpoints",
		"share_descriptors", "share_participants", "resolved_identities",
		"db_migrations",
	} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("expected table %q to exist", table)
		}
	}

	var count int64
	if err := db.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("migration count failed: %v", err)
	}
	if count == 0 {
		t.Fatal("expected named migrations recorded")
	}
}

func TestOpenPartitionIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owned.db")

	first, err := OpenPartition(path, nil)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if err := first.Create(&entity.Tag{ID: "t1", Name: "vacation", CreationUUID: "ca"}).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	firstSQL, err := first.DB()
	if err != nil {
		t.Fatalf("sql handle failed: %v", err)
	}
	if err := firstSQL.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	second, err := OpenPartition(path, nil)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	var count int64
	if err := second.Model(&entity.Tag{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected data to survive reopen, got %d rows", count)
	}

	var migrations int64
	if err := second.Model(&migrationRecord{}).Count(&migrations).Error; err != nil {
		t.Fatalf("migration count failed: %v", err)
	}
	if migrations != 1 {
		t.Fatalf("expected each named migration applied once, got %d rows", migrations)
	}
}

func TestOpenPartitionRequiresPath(t *testing.T) {
	if _, err := OpenPartition("", nil); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestBackfillAssignsCreationUUIDFromRowID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owned.db")
	db, err := OpenPartition(path, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	// A row predating the tie-breaker column.
	if err := db.Exec("INSERT INTO tags (id, name, zone_id, creation_uuid) VALUES ('legacy', 'old', '', '')").Error; err != nil {
		t.Fatalf("legacy insert failed: %v", err)
	}
	if err := backfillTagCreationUUID(db); err != nil {
		t.Fatalf("backfill failed: %v", err)
	}

	var tag entity.Tag
	if err := db.Where("id = ?", "legacy").Take(&tag).Error; err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if tag.CreationUUID != "legacy" {
		t.Fatalf("expected creation uuid backfilled from id, got %q", tag.CreationUUID)
	}
}
