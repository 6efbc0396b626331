package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrFetchFailure indicates the ledger could not be read for a partition.
	// The replay batch aborts and the checkpoint stays untouched; retrying
	// later is safe.
	ErrFetchFailure = errors.New("ledger: fetch failure")
	// ErrCheckpointFailure indicates the durable cursor could not be read or written.
	ErrCheckpointFailure = errors.New("ledger: checkpoint failure")
)

// FetchSince returns the ordered, finite sequence of change records after
// afterSeq, excluding records authored by excludeAuthor. Self-authored
// changes are never replayed, which is what prevents feedback loops.
func FetchSince(ctx context.Context, db *gorm.DB, afterSeq int64, excludeAuthor string) ([]ChangeRecord, error) {
	var records []ChangeRecord
	err := db.WithContext(ctx).
		Where("seq > ? AND author <> ?", afterSeq, excludeAuthor).
		Order("seq ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	return records, nil
}

// LoadCheckpoint returns the last observed sequence token for a partition.
// The second return value is false when no checkpoint has ever been
// persisted, which means replay starts from the beginning.
func LoadCheckpoint(ctx context.Context, db *gorm.DB, partition string) (int64, bool, error) {
	var checkpoint Checkpoint
	err := db.WithContext(ctx).
		Where("partition = ?", partition).
		Take(&checkpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrCheckpointFailure, err)
	}
	return checkpoint.LastSeq, true, nil
}

// SaveCheckpoint persists the replay cursor for a partition. The operation
// is idempotent: re-issuing the same token leaves the stored row unchanged.
func SaveCheckpoint(ctx context.Context, db *gorm.DB, partition string, seq int64, now time.Time) error {
	checkpoint := Checkpoint{
		Partition:        partition,
		LastSeq:          seq,
		UpdatedAtSeconds: now.UTC().Unix(),
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "partition"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_seq", "updated_at_s"}),
		}).
		Create(&checkpoint).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCheckpointFailure, err)
	}
	return nil
}
