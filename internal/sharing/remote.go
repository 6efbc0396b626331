package sharing

import (
	"context"
	"fmt"
	"sync"

	"github.com/MarcoPoloResearchLab/lumen/core/internal/entity"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/store"
)

// RemoteSync is the boundary to the remote synchronization collaborator.
// The core never talks to the network directly; it hands the collaborator
// change notifications and zone lifecycle requests and trusts it to move
// bytes between peers eventually.
type RemoteSync interface {
	// PushChange notifies the collaborator that an entity changed locally.
	// Best-effort: a failed push is retried by the collaborator's own
	// schedule, never by the caller.
	PushChange(ctx context.Context, partition store.Partition, entityID, entityKind string) error
	// CreateZone allocates a fresh remotely-addressable zone. Returns
	// ErrZoneLimitExceeded when the collaborator refuses further zones.
	CreateZone(ctx context.Context) (entity.ZoneID, error)
	// DeleteZone tears the zone down remotely for every participant.
	DeleteZone(ctx context.Context, zone entity.ZoneID) error
	// ResolveIdentity maps an opaque lookup key (email, phone) to a stable
	// identity. The second return is false when no identity matches.
	ResolveIdentity(ctx context.Context, lookupKey string) (string, bool, error)
}

// LocalRemoteConfig configures the in-process collaborator.
type LocalRemoteConfig struct {
	// MaxZones caps how many zones may exist at once. Zero means unlimited.
	MaxZones int
	// Identities seeds the lookup directory, keyed by lookup key.
	Identities map[string]string
	// IDs issues zone identifiers. Defaults to the UUID provider.
	IDs entity.IDProvider
}

// LocalRemote is an in-process RemoteSync for single-node deployments and
// tests. It keeps the zone registry and identity directory in memory and
// treats pushes as already-delivered.
type LocalRemote struct {
	mu         sync.Mutex
	maxZones   int
	zones      map[entity.ZoneID]bool
	identities map[string]string
	ids        entity.IDProvider
}

// NewLocalRemote constructs the in-process collaborator.
func NewLocalRemote(cfg LocalRemoteConfig) *LocalRemote {
	identities := make(map[string]string, len(cfg.Identities))
	for key, identity := range cfg.Identities {
		identities[key] = identity
	}
	ids := cfg.IDs
	if ids == nil {
		ids = entity.NewUUIDProvider()
	}
	return &LocalRemote{
		maxZones:   cfg.MaxZones,
		zones:      make(map[entity.ZoneID]bool),
		identities: identities,
		ids:        ids,
	}
}

// PushChange acknowledges the change without forwarding it anywhere.
func (r *LocalRemote) PushChange(ctx context.Context, partition store.Partition, entityID, entityKind string) error {
	return nil
}

// CreateZone allocates a new zone identifier, enforcing the zone cap.
func (r *LocalRemote) CreateZone(ctx context.Context) (entity.ZoneID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.maxZones > 0 && len(r.zones) >= r.maxZones {
		return "", fmt.Errorf("%w: %d zones exist", ErrZoneLimitExceeded, len(r.zones))
	}
	raw, err := r.ids.NewID()
	if err != nil {
		return "", err
	}
	zone := entity.ZoneID("zone-" + raw)
	r.zones[zone] = true
	return zone, nil
}

// DeleteZone forgets the zone. Deleting an unknown zone is a no-op.
func (r *LocalRemote) DeleteZone(ctx context.Context, zone entity.ZoneID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.zones, zone)
	return nil
}

// ResolveIdentity looks the key up in the seeded directory.
func (r *LocalRemote) ResolveIdentity(ctx context.Context, lookupKey string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.identities[lookupKey]
	return identity, ok, nil
}

// AddIdentity registers a lookup key after construction.
func (r *LocalRemote) AddIdentity(lookupKey, identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[lookupKey] = identity
}

// ZoneCount reports how many zones currently exist.
func (r *LocalRemote) ZoneCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.zones)
}
