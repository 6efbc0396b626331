// Package dedup collapses mergeable entities that independent peers created
// concurrently. Every peer runs the same deterministic algorithm locally and
// converges on the same winner with no coordination or communication.
package dedup

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/lumen/core/internal/entity"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/store"

	"gorm.io/gorm"
)

var (
	errMissingStore = errors.New("dedup: store handle is required")
	noOpLogger      = zap.NewNop()
)

// Config describes the engine's dependencies.
type Config struct {
	Store  *store.Store
	Logger *zap.Logger
}

// Engine deduplicates tags by name within a single partition and zone.
type Engine struct {
	store  *store.Store
	logger *zap.Logger
}

// NewEngine constructs the deduplication engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Engine{store: cfg.Store, logger: logger}, nil
}

// Deduplicate processes the candidate tags one at a time and commits the
// whole pass as a single transaction, so the resulting ledger records reach
// other peers together on the next sync.
//
// Per candidate: re-fetch (a tag deleted since the ledger recorded its
// insert is skipped silently); gather all tags sharing its name in the same
// partition and zone; sort by the creation tie-breaker ascending and keep
// the first as the winner. Two same-named tags in different zones are not
// duplicates. Losers have every photo link re-pointed at the winner before
// they are deleted.
func (e *Engine) Deduplicate(ctx context.Context, partition store.Partition, candidateIDs []entity.Identity) error {
	if len(candidateIDs) == 0 {
		return nil
	}
	return e.store.InTransaction(ctx, partition, e.store.LocalAuthor(), func(txn *store.Txn) error {
		for _, candidateID := range candidateIDs {
			if err := e.deduplicateOne(txn, candidateID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) deduplicateOne(txn *store.Txn, candidateID entity.Identity) error {
	var candidate entity.Tag
	err := txn.DB().Where("id = ?", candidateID.String()).Take(&candidate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Deleted between the ledger insert and this pass, or already
		// merged earlier in the same batch. Benign.
		e.logger.Debug("skipping deleted dedup candidate", zap.String("tag_id", candidateID.String()))
		return nil
	}
	if err != nil {
		return err
	}

	duplicates, err := store.TagsNamed(txn.DB(), candidate.Name, candidate.RecordZone())
	if err != nil {
		return err
	}
	if len(duplicates) < 2 {
		return nil
	}

	winner := duplicates[0]
	losers := duplicates[1:]
	e.logger.Info("deduplicating tag",
		zap.String("name", candidate.Name),
		zap.String("zone_id", candidate.ZoneID),
		zap.Int("count", len(duplicates)),
		zap.String("winner_id", winner.ID))

	for i := range losers {
		if err := e.merge(txn, &losers[i], &winner); err != nil {
			return err
		}
	}
	return nil
}

// merge re-points every relationship at the loser to the winner, then
// deletes the loser. A photo that already links to the winner drops the
// redundant link instead of gaining a second one.
func (e *Engine) merge(txn *store.Txn, loser, winner *entity.Tag) error {
	links, err := store.LinksForTag(txn.DB(), loser.ID)
	if err != nil {
		return err
	}
	for i := range links {
		link := links[i]
		alreadyLinked, err := store.LinkExists(txn.DB(), link.PhotoID, winner.ID)
		if err != nil {
			return err
		}
		if alreadyLinked {
			if err := txn.Delete(&link); err != nil {
				return err
			}
			continue
		}
		link.TagID = winner.ID
		if err := txn.Update(&link); err != nil {
			return err
		}
	}
	return txn.Delete(loser)
}
