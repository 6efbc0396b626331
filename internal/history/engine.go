// Package history drains the change ledger since the last checkpoint,
// notifies observers of remote-origin mutations, and hands freshly inserted
// mergeable entities to the deduplication engine.
package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/lumen/core/internal/dedup"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/entity"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/events"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/ledger"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/store"
)

var (
	errMissingStore      = errors.New("history: store handle is required")
	errMissingDispatcher = errors.New("history: event dispatcher is required")
	errMissingDedup      = errors.New("history: deduplication engine is required")
	noOpLogger           = zap.NewNop()
)

// Config describes the engine's dependencies.
type Config struct {
	Store      *store.Store
	Dispatcher *events.Dispatcher
	Dedup      *dedup.Engine
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Engine replays ledger history for a partition. Processing for a given
// partition is strictly serialized; the two partitions are independent data
// spaces and may replay concurrently.
type Engine struct {
	store      *store.Store
	dispatcher *events.Dispatcher
	dedup      *dedup.Engine
	clock      func() time.Time
	logger     *zap.Logger

	locks map[store.Partition]*sync.Mutex
}

// NewEngine constructs the replay engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Dispatcher == nil {
		return nil, errMissingDispatcher
	}
	if cfg.Dedup == nil {
		return nil, errMissingDedup
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	locks := make(map[store.Partition]*sync.Mutex, 2)
	for _, partition := range store.Partitions() {
		locks[partition] = &sync.Mutex{}
	}
	return &Engine{
		store:      cfg.Store,
		dispatcher: cfg.Dispatcher,
		dedup:      cfg.Dedup,
		clock:      clock,
		logger:     logger,
		locks:      locks,
	}, nil
}

// ProcessRemoteChange handles a "remote change occurred" signal for one
// partition. The algorithm:
//
//  1. Load the persisted checkpoint (absent means from the beginning).
//  2. Fetch ledger records after it, excluding self-authored ones.
//  3. An empty batch still emits a store-changed event, because a
//     share-level change can alter partition structure with zero records.
//  4. Notify observers with the batch; observers merge by identity rather
//     than overwrite, so replaying the same records twice is harmless.
//  5. Persist the checkpoint at the last record's token.
//  6. On the owned partition, hand newly inserted tags to deduplication
//     synchronously before returning.
//
// A failed fetch aborts the batch with the checkpoint untouched; the next
// signal retries from the same position.
func (e *Engine) ProcessRemoteChange(ctx context.Context, partition store.Partition) error {
	lock, ok := e.locks[partition]
	if !ok {
		return store.ErrUnknownPartition
	}
	lock.Lock()
	defer lock.Unlock()

	db, err := e.store.DB(partition)
	if err != nil {
		return err
	}

	lastSeq, _, err := ledger.LoadCheckpoint(ctx, db, string(partition))
	if err != nil {
		e.logError("load_checkpoint_failed", partition, err)
		return err
	}

	records, err := ledger.FetchSince(ctx, db, lastSeq, e.store.LocalAuthor())
	if err != nil {
		e.logError("ledger_fetch_failed", partition, err)
		return err
	}

	e.dispatcher.Publish(events.StoreChanged{
		Partition: partition,
		Records:   records,
		At:        e.clock().UTC(),
	})
	if len(records) == 0 {
		return nil
	}

	newSeq := records[len(records)-1].Seq
	if err := ledger.SaveCheckpoint(ctx, db, string(partition), newSeq, e.clock()); err != nil {
		e.logError("save_checkpoint_failed", partition, err)
		return err
	}
	e.logger.Debug("replayed ledger batch",
		zap.String("partition", string(partition)),
		zap.Int("records", len(records)),
		zap.Int64("checkpoint", newSeq))

	// Only the owned partition deduplicates: owners have full access to
	// the private scope and need no permission checks.
	if partition != store.PartitionOwned {
		return nil
	}
	candidates := insertedTagIdentities(records)
	if len(candidates) == 0 {
		return nil
	}
	if err := e.dedup.Deduplicate(ctx, partition, candidates); err != nil {
		e.logError("deduplicate_failed", partition, err)
		return err
	}
	return nil
}

func insertedTagIdentities(records []ledger.ChangeRecord) []entity.Identity {
	var identities []entity.Identity
	seen := map[string]bool{}
	for _, record := range records {
		if record.Kind != ledger.ChangeKindInsert {
			continue
		}
		if entity.Kind(record.EntityKind) != entity.KindTag {
			continue
		}
		if seen[record.EntityID] {
			continue
		}
		seen[record.EntityID] = true
		identities = append(identities, entity.Identity(record.EntityID))
	}
	return identities
}

func (e *Engine) logError(reason string, partition store.Partition, err error) {
	e.logger.Error("history replay error",
		zap.String("reason", reason),
		zap.String("partition", string(partition)),
		zap.Error(err))
}
