package store

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/lumen/core/internal/entity"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/ledger"
)

func openTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_test_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&entity.Photo{},
		&entity.Thumbnail{},
		&entity.PhotoData{},
		&entity.Tag{},
		&entity.PhotoTag{},
		&entity.Rating{},
		&ledger.ChangeRecord{},
		&ledger.Checkpoint{},
	); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{
		Owned:       openTestDB(t, "store_owned"),
		Shared:      openTestDB(t, "store_shared"),
		LocalAuthor: "local",
		Clock:       func() time.Time { return time.Unix(1000, 0) },
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

func mustIdentity(t *testing.T, value string) entity.Identity {
	t.Helper()
	id, err := entity.NewIdentity(value)
	if err != nil {
		t.Fatalf("unexpected identity error: %v", err)
	}
	return id
}
