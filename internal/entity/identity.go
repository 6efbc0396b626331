package entity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidIdentity indicates that an entity identifier is empty or exceeds storage bounds.
	ErrInvalidIdentity = errors.New("entity: invalid identity")
	// ErrInvalidZoneID indicates that a zone identifier exceeds storage bounds.
	ErrInvalidZoneID = errors.New("entity: invalid zone id")
)

// Identity is a validated, partition-independent logical entity identifier.
type Identity string

// NewIdentity validates raw input and returns an Identity.
func NewIdentity(rawInput string) (Identity, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidIdentity)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidIdentity, maxIdentifierLength)
	}
	return Identity(trimmed), nil
}

// String returns the underlying string identifier.
func (id Identity) String() string {
	return string(id)
}

// ZoneID identifies a remotely-addressable subdivision within a partition.
// The empty zone is the un-shared default zone of the owned partition.
type ZoneID string

// NewZoneID validates raw input and returns a ZoneID. Empty input is the default zone.
func NewZoneID(rawInput string) (ZoneID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidZoneID, maxIdentifierLength)
	}
	return ZoneID(trimmed), nil
}

// String returns the underlying string identifier.
func (zone ZoneID) String() string {
	return string(zone)
}

// DefaultZone is the zone of entities that have never been shared.
const DefaultZone ZoneID = ""

// IDProvider issues identifiers for new records.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv7 identifiers.
// UUIDv7 values sort by creation time, which makes them usable as the
// deduplication tie-breaker as well as plain identities.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}
