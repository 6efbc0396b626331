package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/lumen/core/internal/entity"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/ledger"
)

var (
	errMissingOwnedDatabase  = errors.New("owned partition database handle is required")
	errMissingSharedDatabase = errors.New("shared partition database handle is required")
	errMissingAuthor         = errors.New("local author tag is required")
	noOpLogger               = zap.NewNop()
)

// Config describes the dependencies of the dual-partition store.
type Config struct {
	Owned       *gorm.DB
	Shared      *gorm.DB
	LocalAuthor string
	Clock       func() time.Time
	Logger      *zap.Logger
}

// Store routes every entity read and write to the correct partition and
// exposes a uniform locate-by-identity operation across both. It is the
// process-scoped persistence controller: constructed once at startup and
// passed by handle, never looked up globally.
type Store struct {
	owned       *gorm.DB
	shared      *gorm.DB
	localAuthor string
	clock       func() time.Time
	logger      *zap.Logger
}

// New constructs the store.
func New(cfg Config) (*Store, error) {
	if cfg.Owned == nil {
		return nil, errMissingOwnedDatabase
	}
	if cfg.Shared == nil {
		return nil, errMissingSharedDatabase
	}
	if cfg.LocalAuthor == "" {
		return nil, errMissingAuthor
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{
		owned:       cfg.Owned,
		shared:      cfg.Shared,
		localAuthor: cfg.LocalAuthor,
		clock:       clock,
		logger:      logger,
	}, nil
}

// LocalAuthor returns the transaction author tag this process writes with.
// Replay skips records carrying this tag.
func (s *Store) LocalAuthor() string {
	return s.localAuthor
}

// DB returns the database handle backing a partition.
func (s *Store) DB(partition Partition) (*gorm.DB, error) {
	switch partition {
	case PartitionOwned:
		return s.owned, nil
	case PartitionShared:
		return s.shared, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPartition, partition)
	}
}

// InTransaction runs fn inside one atomic write scope on a single partition.
// Change records collected by the scope are flushed in the same database
// transaction; any failure rolls the whole batch back and surfaces as
// ErrStorageFailure.
func (s *Store) InTransaction(ctx context.Context, partition Partition, author string, fn func(txn *Txn) error) error {
	db, err := s.DB(partition)
	if err != nil {
		return err
	}
	txErr := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn := &Txn{db: tx, author: author, now: s.clock()}
		if err := fn(txn); err != nil {
			return err
		}
		return txn.flush()
	})
	if txErr == nil {
		return nil
	}
	if isTyped(txErr) {
		return txErr
	}
	s.logger.Error("partition write failed",
		zap.String("partition", string(partition)),
		zap.String("author", author),
		zap.Error(txErr))
	return fmt.Errorf("%w: %v", ErrStorageFailure, txErr)
}

// Write applies a batch of creates, updates and deletes atomically to
// exactly one partition, appending one change record per mutation.
func (s *Store) Write(ctx context.Context, partition Partition, author string, mutations []Mutation) error {
	return s.InTransaction(ctx, partition, author, func(txn *Txn) error {
		for _, mutation := range mutations {
			var err error
			switch mutation.Kind {
			case ledger.ChangeKindInsert:
				err = txn.Insert(mutation.Record)
			case ledger.ChangeKindUpdate:
				err = txn.Update(mutation.Record)
			case ledger.ChangeKindDelete:
				err = txn.Delete(mutation.Record)
			default:
				err = fmt.Errorf("unknown change kind %q", mutation.Kind)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Mutation pairs a change kind with the record it applies to.
type Mutation struct {
	Kind   ledger.ChangeKind
	Record entity.Record
}

// ResolvePartition reports which partition currently holds the entity.
// Exactly one of Owned or Shared, or ErrNotFound; never both, because a
// partition move is create-in-target plus tombstone-in-source.
func (s *Store) ResolvePartition(ctx context.Context, kind entity.Kind, id entity.Identity) (Partition, error) {
	for _, partition := range Partitions() {
		found, err := s.contains(ctx, partition, kind, id)
		if err != nil {
			return "", err
		}
		if found {
			return partition, nil
		}
	}
	return "", ErrNotFound
}

// LocateByIdentity searches the owned partition first, then the shared one,
// and returns the loaded record with the partition that holds it.
func (s *Store) LocateByIdentity(ctx context.Context, kind entity.Kind, id entity.Identity) (entity.Record, Partition, error) {
	for _, partition := range Partitions() {
		record, err := s.find(ctx, partition, kind, id)
		if err == nil {
			return record, partition, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, "", err
		}
	}
	return nil, "", ErrNotFound
}

func (s *Store) contains(ctx context.Context, partition Partition, kind entity.Kind, id entity.Identity) (bool, error) {
	db, err := s.DB(partition)
	if err != nil {
		return false, err
	}
	prototype, err := entity.NewRecord(kind)
	if err != nil {
		return false, err
	}
	var count int64
	err = db.WithContext(ctx).Model(prototype).Where("id = ?", id.String()).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return count > 0, nil
}

func (s *Store) find(ctx context.Context, partition Partition, kind entity.Kind, id entity.Identity) (entity.Record, error) {
	db, err := s.DB(partition)
	if err != nil {
		return nil, err
	}
	record, err := entity.NewRecord(kind)
	if err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Where("id = ?", id.String()).Take(record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return record, nil
}

func isTyped(err error) bool {
	return errors.Is(err, ErrStorageFailure) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnknownPartition)
}
