// Package sharing manages the lifecycle of shared zones: creating shares,
// moving entity subgraphs across partitions, inviting and removing
// participants, and purging zones.
package sharing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarcoPoloResearchLab/lumen/core/internal/dedup"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/entity"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/store"
)

const shareEntityKind = "share"

var (
	errMissingStoreHandle   = errors.New("sharing: store handle is required")
	errMissingRemote        = errors.New("sharing: remote collaborator is required")
	errMissingDedup         = errors.New("sharing: deduplication engine is required")
	errMissingLocalIdentity = errors.New("sharing: local identity is required")
	noOpLogger              = zap.NewNop()
)

// ChangeSignaler receives "remote change occurred" signals for a partition.
// Purging a zone raises one so observers learn about the structural change
// even though it produces no replayable records.
type ChangeSignaler interface {
	ProcessRemoteChange(ctx context.Context, partition store.Partition) error
}

// Config describes the manager's dependencies.
type Config struct {
	Store         *store.Store
	Remote        RemoteSync
	Dedup         *dedup.Engine
	Signaler      ChangeSignaler
	LocalIdentity string
	IDs           entity.IDProvider
	Clock         func() time.Time
	Logger        *zap.Logger
}

// Manager orchestrates share lifecycle operations. Ownership is never
// stored on the descriptor: a descriptor row in the owned partition means
// the local identity owns the zone, one in the shared partition means it
// participates in someone else's.
type Manager struct {
	store         *store.Store
	remote        RemoteSync
	resolver      *Resolver
	dedup         *dedup.Engine
	signaler      ChangeSignaler
	localIdentity string
	ids           entity.IDProvider
	clock         func() time.Time
	logger        *zap.Logger
}

// NewManager constructs the sharing manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, errMissingStoreHandle
	}
	if cfg.Remote == nil {
		return nil, errMissingRemote
	}
	if cfg.Dedup == nil {
		return nil, errMissingDedup
	}
	if cfg.LocalIdentity == "" {
		return nil, errMissingLocalIdentity
	}
	ids := cfg.IDs
	if ids == nil {
		ids = entity.NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	ownedDB, err := cfg.Store.DB(store.PartitionOwned)
	if err != nil {
		return nil, err
	}
	return &Manager{
		store:         cfg.Store,
		remote:        cfg.Remote,
		resolver:      NewResolver(cfg.Remote, ownedDB, clock),
		dedup:         cfg.Dedup,
		signaler:      cfg.Signaler,
		localIdentity: cfg.LocalIdentity,
		ids:           ids,
		clock:         clock,
		logger:        logger,
	}, nil
}

// CreateShare allocates a fresh zone, moves the photo's whole connected
// subgraph into the shared partition under that zone, and records the local
// identity as the owning participant. Not idempotent: calling it twice on
// the same root allocates two zones.
func (m *Manager) CreateShare(ctx context.Context, photoID entity.Identity) (*ShareDescriptor, error) {
	zone, err := m.remote.CreateZone(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := m.moveSubgraph(ctx, photoID, zone); err != nil {
		if deleteErr := m.remote.DeleteZone(ctx, zone); deleteErr != nil {
			m.logger.Warn("orphaned zone cleanup failed",
				zap.String("zone_id", zone.String()), zap.Error(deleteErr))
		}
		return nil, err
	}

	now := m.clock().UTC()
	descriptor := ShareDescriptor{
		ZoneID:           zone.String(),
		Title:            shareTitle(now),
		PublicPermission: PublicPermissionNone,
		CreatedAtSeconds: now.Unix(),
	}
	ownerID, err := m.ids.NewID()
	if err != nil {
		return nil, err
	}
	owner := Participant{
		ID:               ownerID,
		ZoneID:           zone.String(),
		Identity:         m.localIdentity,
		Role:             RoleOwner,
		Permission:       PermissionReadWrite,
		AcceptanceStatus: AcceptanceAccepted,
	}

	ownedDB, err := m.store.DB(store.PartitionOwned)
	if err != nil {
		return nil, err
	}
	err = ownedDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&descriptor).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&owner).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrStorageFailure, err)
	}

	m.pushShareChange(ctx, store.PartitionOwned, descriptor.ZoneID)
	m.logger.Info("created share",
		zap.String("zone_id", descriptor.ZoneID),
		zap.String("title", descriptor.Title),
		zap.String("root_photo_id", photoID.String()))
	return &descriptor, nil
}

// ExistingShare returns the descriptor covering the photo's zone, or nil
// when the photo lives in the default zone and is not shared.
func (m *Manager) ExistingShare(ctx context.Context, photoID entity.Identity) (*ShareDescriptor, error) {
	record, _, err := m.store.LocateByIdentity(ctx, entity.KindPhoto, photoID)
	if err != nil {
		return nil, err
	}
	zone := record.RecordZone()
	if zone == entity.DefaultZone {
		return nil, nil
	}
	descriptor, _, err := m.findDescriptor(ctx, zone)
	if err != nil {
		return nil, err
	}
	return descriptor, nil
}

// AddToExistingShare moves the photo's subgraph into an already-shared
// zone, then deduplicates the mergeable entities the move carried along so
// they collapse against same-named peers already in the zone.
func (m *Manager) AddToExistingShare(ctx context.Context, photoID entity.Identity, zone entity.ZoneID) error {
	descriptor, _, err := m.findDescriptor(ctx, zone)
	if err != nil {
		return err
	}
	movedTags, err := m.moveSubgraph(ctx, photoID, zone)
	if err != nil {
		return err
	}
	if len(movedTags) > 0 {
		if err := m.dedup.Deduplicate(ctx, store.PartitionShared, movedTags); err != nil {
			return err
		}
	}
	m.pushShareChange(ctx, store.PartitionShared, descriptor.ZoneID)
	return nil
}

// AddParticipant resolves the lookup key and invites the matching identity
// into the zone. Only the zone owner may invite. An unresolvable key
// returns ErrParticipantNotFound with the participant list unchanged.
// Inviting an identity already in the zone returns the existing row.
func (m *Manager) AddParticipant(ctx context.Context, zone entity.ZoneID, lookupKey string, permission Permission) (*Participant, error) {
	_, holder, err := m.findDescriptor(ctx, zone)
	if err != nil {
		return nil, err
	}
	if holder != store.PartitionOwned {
		return nil, fmt.Errorf("%w: %q", ErrNotZoneOwner, zone.String())
	}

	identity, err := m.resolver.Resolve(ctx, lookupKey)
	if err != nil {
		return nil, err
	}

	ownedDB, err := m.store.DB(store.PartitionOwned)
	if err != nil {
		return nil, err
	}
	var existing Participant
	err = ownedDB.WithContext(ctx).
		Where("zone_id = ? AND identity = ?", zone.String(), identity).
		Take(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", store.ErrStorageFailure, err)
	}

	participantID, err := m.ids.NewID()
	if err != nil {
		return nil, err
	}
	participant := Participant{
		ID:               participantID,
		ZoneID:           zone.String(),
		Identity:         identity,
		LookupKey:        lookupKey,
		Role:             RolePrivateUser,
		Permission:       permission,
		AcceptanceStatus: AcceptancePending,
	}
	err = ownedDB.WithContext(ctx).Create(&participant).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrStorageFailure, err)
	}
	m.pushShareChange(ctx, store.PartitionOwned, zone.String())
	m.logger.Info("added share participant",
		zap.String("zone_id", zone.String()),
		zap.String("participant_id", participant.ID))
	return &participant, nil
}

// RemoveParticipants drops the named participants from the zone. Only the
// zone owner may remove, and the owner row itself is never removable.
func (m *Manager) RemoveParticipants(ctx context.Context, zone entity.ZoneID, participantIDs []string) error {
	_, holder, err := m.findDescriptor(ctx, zone)
	if err != nil {
		return err
	}
	if holder != store.PartitionOwned {
		return fmt.Errorf("%w: %q", ErrNotZoneOwner, zone.String())
	}
	if len(participantIDs) == 0 {
		return nil
	}
	ownedDB, err := m.store.DB(store.PartitionOwned)
	if err != nil {
		return err
	}
	err = ownedDB.WithContext(ctx).
		Where("zone_id = ? AND id IN ? AND role <> ?", zone.String(), participantIDs, RoleOwner).
		Delete(&Participant{}).Error
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrStorageFailure, err)
	}
	m.pushShareChange(ctx, store.PartitionOwned, zone.String())
	return nil
}

// Participants lists the zone's membership.
func (m *Manager) Participants(ctx context.Context, zone entity.ZoneID) ([]Participant, error) {
	_, holder, err := m.findDescriptor(ctx, zone)
	if err != nil {
		return nil, err
	}
	db, err := m.store.DB(holder)
	if err != nil {
		return nil, err
	}
	var participants []Participant
	err = db.WithContext(ctx).
		Where("zone_id = ?", zone.String()).
		Order("role ASC, id ASC").
		Find(&participants).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrStorageFailure, err)
	}
	return participants, nil
}

// Purge tears the zone down. The owner deletes every entity in the zone and
// the remote zone itself; a participant only discards the local copy and
// leaves, keeping the zone intact for everyone else. Either way a
// remote-change signal fires afterwards so observers see the structural
// change as an empty batch.
func (m *Manager) Purge(ctx context.Context, zone entity.ZoneID) error {
	_, holder, err := m.findDescriptor(ctx, zone)
	if err != nil {
		return err
	}

	sharedDB, err := m.store.DB(store.PartitionShared)
	if err != nil {
		return err
	}
	records, err := store.ZoneRecords(ctx, sharedDB, zone)
	if err != nil {
		return err
	}
	if len(records) > 0 {
		err = m.store.InTransaction(ctx, store.PartitionShared, m.store.LocalAuthor(), func(txn *store.Txn) error {
			for _, record := range records {
				if err := txn.Delete(record); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	holderDB, err := m.store.DB(holder)
	if err != nil {
		return err
	}
	err = holderDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("zone_id = ?", zone.String()).Delete(&Participant{}).Error; err != nil {
			return err
		}
		return tx.Where("zone_id = ?", zone.String()).Delete(&ShareDescriptor{}).Error
	})
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrStorageFailure, err)
	}

	if holder == store.PartitionOwned {
		if err := m.remote.DeleteZone(ctx, zone); err != nil {
			return err
		}
	} else {
		m.pushShareChange(ctx, store.PartitionShared, zone.String())
	}
	m.logger.Info("purged share",
		zap.String("zone_id", zone.String()),
		zap.Int("records", len(records)),
		zap.Bool("owner", holder == store.PartitionOwned))

	if m.signaler != nil {
		return m.signaler.ProcessRemoteChange(ctx, store.PartitionShared)
	}
	return nil
}

// ShareTitles lists the titles of every known share, owned shares first.
func (m *Manager) ShareTitles(ctx context.Context) ([]string, error) {
	var titles []string
	for _, partition := range store.Partitions() {
		db, err := m.store.DB(partition)
		if err != nil {
			return nil, err
		}
		var descriptors []ShareDescriptor
		err = db.WithContext(ctx).Order("created_at_s ASC, zone_id ASC").Find(&descriptors).Error
		if err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrStorageFailure, err)
		}
		for _, descriptor := range descriptors {
			titles = append(titles, descriptor.Title)
		}
	}
	return titles, nil
}

// ShareWithTitle finds the first share carrying the title, searching owned
// shares first. Titles are not unique; first match wins.
func (m *Manager) ShareWithTitle(ctx context.Context, title string) (*ShareDescriptor, error) {
	for _, partition := range store.Partitions() {
		db, err := m.store.DB(partition)
		if err != nil {
			return nil, err
		}
		var descriptor ShareDescriptor
		err = db.WithContext(ctx).
			Where("title = ?", title).
			Order("created_at_s ASC, zone_id ASC").
			Take(&descriptor).Error
		if err == nil {
			return &descriptor, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %v", store.ErrStorageFailure, err)
		}
	}
	return nil, fmt.Errorf("%w: title %q", ErrShareNotFound, title)
}

// findDescriptor locates the descriptor for a zone and reports which
// partition holds it, owned first.
func (m *Manager) findDescriptor(ctx context.Context, zone entity.ZoneID) (*ShareDescriptor, store.Partition, error) {
	for _, partition := range store.Partitions() {
		db, err := m.store.DB(partition)
		if err != nil {
			return nil, "", err
		}
		var descriptor ShareDescriptor
		err = db.WithContext(ctx).Where("zone_id = ?", zone.String()).Take(&descriptor).Error
		if err == nil {
			return &descriptor, partition, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", fmt.Errorf("%w: %v", store.ErrStorageFailure, err)
		}
	}
	return nil, "", fmt.Errorf("%w: zone %q", ErrShareNotFound, zone.String())
}

// moveSubgraph relocates the photo's connected subgraph into the target
// zone: create-in-target first, tombstone-in-source second, so a crash in
// between duplicates data rather than losing it. A move that stays within
// the shared partition is a plain zone reassignment. Returns the identities
// of the tags that moved.
func (m *Manager) moveSubgraph(ctx context.Context, photoID entity.Identity, targetZone entity.ZoneID) ([]entity.Identity, error) {
	sourcePartition, err := m.store.ResolvePartition(ctx, entity.KindPhoto, photoID)
	if err != nil {
		return nil, err
	}
	sourceDB, err := m.store.DB(sourcePartition)
	if err != nil {
		return nil, err
	}
	records, err := store.CollectSubgraph(ctx, sourceDB, photoID)
	if err != nil {
		return nil, err
	}

	var movedTags []entity.Identity
	for _, record := range records {
		if record.RecordKind() == entity.KindTag {
			movedTags = append(movedTags, entity.Identity(record.RecordIdentity()))
		}
	}

	if sourcePartition == store.PartitionShared {
		err = m.store.InTransaction(ctx, store.PartitionShared, m.store.LocalAuthor(), func(txn *store.Txn) error {
			for _, record := range records {
				record.SetRecordZone(targetZone)
				if err := txn.Update(record); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return movedTags, nil
	}

	originalZones := make([]entity.ZoneID, len(records))
	for i, record := range records {
		originalZones[i] = record.RecordZone()
	}

	err = m.store.InTransaction(ctx, store.PartitionShared, m.store.LocalAuthor(), func(txn *store.Txn) error {
		for _, record := range records {
			record.SetRecordZone(targetZone)
			if err := txn.Insert(record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = m.store.InTransaction(ctx, sourcePartition, m.store.LocalAuthor(), func(txn *store.Txn) error {
		for i, record := range records {
			record.SetRecordZone(originalZones[i])
			if err := txn.Delete(record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return movedTags, nil
}

func (m *Manager) pushShareChange(ctx context.Context, partition store.Partition, zoneID string) {
	if err := m.remote.PushChange(ctx, partition, zoneID, shareEntityKind); err != nil {
		m.logger.Warn("share change push failed",
			zap.String("zone_id", zoneID), zap.Error(err))
	}
}
