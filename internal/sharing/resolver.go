package sharing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarcoPoloResearchLab/lumen/core/internal/store"
)

// ResolvedIdentity caches a lookup-key-to-identity mapping so repeated
// participant invitations avoid a round trip to the collaborator.
type ResolvedIdentity struct {
	LookupKey         string `gorm:"column:lookup_key;primaryKey;size:320;not null"`
	Identity          string `gorm:"column:identity;size:190;not null"`
	ResolvedAtSeconds int64  `gorm:"column:resolved_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (ResolvedIdentity) TableName() string {
	return "resolved_identities"
}

// Resolver answers identity lookups from a two-level cache: an in-process
// map for the hot path and a persisted table that survives restarts. Misses
// fall through to the remote collaborator.
type Resolver struct {
	remote RemoteSync
	db     *gorm.DB
	clock  func() time.Time
	cache  sync.Map
}

// NewResolver constructs a resolver backed by the owned partition database.
func NewResolver(remote RemoteSync, db *gorm.DB, clock func() time.Time) *Resolver {
	if clock == nil {
		clock = time.Now
	}
	return &Resolver{remote: remote, db: db, clock: clock}
}

// Resolve maps a lookup key to an identity. Returns ErrParticipantNotFound
// when the collaborator knows no matching identity.
func (r *Resolver) Resolve(ctx context.Context, lookupKey string) (string, error) {
	if cached, ok := r.cache.Load(lookupKey); ok {
		return cached.(string), nil
	}

	var row ResolvedIdentity
	err := r.db.WithContext(ctx).Where("lookup_key = ?", lookupKey).Take(&row).Error
	if err == nil {
		r.cache.Store(lookupKey, row.Identity)
		return row.Identity, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: %v", store.ErrStorageFailure, err)
	}

	identity, found, err := r.remote.ResolveIdentity(ctx, lookupKey)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: %q", ErrParticipantNotFound, lookupKey)
	}

	persisted := ResolvedIdentity{
		LookupKey:         lookupKey,
		Identity:          identity,
		ResolvedAtSeconds: r.clock().UTC().Unix(),
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&persisted).Error
	if err != nil {
		return "", fmt.Errorf("%w: %v", store.ErrStorageFailure, err)
	}
	r.cache.Store(lookupKey, identity)
	return identity, nil
}
