package store

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarcoPoloResearchLab/lumen/core/internal/entity"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/ledger"
)

// Txn is a single-partition write scope. Every mutation routed through it
// appends a matching change record to that partition's ledger inside the
// same database transaction, so there is no write without a ledger entry.
type Txn struct {
	db      *gorm.DB
	author  string
	now     time.Time
	records []ledger.ChangeRecord
}

// DB exposes the transaction handle for typed queries within the scope.
func (t *Txn) DB() *gorm.DB {
	return t.db
}

// Insert creates the record, or overwrites it when the identity already
// exists. Appliers are upsert-by-identity rather than insert-only so that
// replaying the same change twice cannot corrupt state.
func (t *Txn) Insert(record entity.Record) error {
	return t.apply(ledger.ChangeKindInsert, record)
}

// Update upserts the record by identity and records an update change.
func (t *Txn) Update(record entity.Record) error {
	return t.apply(ledger.ChangeKindUpdate, record)
}

// Delete removes the record and appends the tombstone the ledger must still
// observe. Deleting an already-absent identity is a no-op mutation but the
// tombstone is recorded regardless.
func (t *Txn) Delete(record entity.Record) error {
	if err := t.db.Delete(record).Error; err != nil {
		return err
	}
	t.record(ledger.ChangeKindDelete, record)
	return nil
}

func (t *Txn) apply(kind ledger.ChangeKind, record entity.Record) error {
	err := t.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error
	if err != nil {
		return err
	}
	t.record(kind, record)
	return nil
}

func (t *Txn) record(kind ledger.ChangeKind, record entity.Record) {
	t.records = append(t.records, ledger.ChangeRecord{
		Author:           t.author,
		EntityID:         record.RecordIdentity(),
		EntityKind:       string(record.RecordKind()),
		Kind:             kind,
		ZoneID:           record.RecordZone().String(),
		AppliedAtSeconds: t.now.UTC().Unix(),
	})
}

func (t *Txn) flush() error {
	if len(t.records) == 0 {
		return nil
	}
	return t.db.Create(&t.records).Error
}
