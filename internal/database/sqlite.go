package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/lumen/core/internal/entity"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/ledger"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/sharing"
)

// OpenPartition establishes a SQLite connection for one partition database
// and performs schema migrations. Each partition gets its own file; the
// schema is identical on both sides.
func OpenPartition(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
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
		&sharing.ShareDescriptor{},
		&sharing.Participant{},
		&sharing.ResolvedIdentity{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("partition database initialized", zap.String("path", path))
	}

	return db, nil
}
