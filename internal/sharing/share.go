package sharing

import (
	"errors"
	"time"
)

var (
	// ErrShareNotFound indicates no share descriptor exists for the zone.
	ErrShareNotFound = errors.New("sharing: share not found")
	// ErrParticipantNotFound indicates identity resolution yielded no match.
	// The operation aborts with no partial mutation.
	ErrParticipantNotFound = errors.New("sharing: participant not found")
	// ErrZoneLimitExceeded indicates the remote collaborator refused a new
	// zone. Callers should route through AddToExistingShare instead.
	ErrZoneLimitExceeded = errors.New("sharing: zone limit exceeded")
	// ErrNotZoneOwner indicates a participant mutation was attempted on a
	// zone the local identity does not own.
	ErrNotZoneOwner = errors.New("sharing: local identity does not own the zone")
)

// Role describes a participant's relationship to the share.
type Role string

const (
	RoleOwner       Role = "owner"
	RolePrivateUser Role = "privateUser"
	RolePublicUser  Role = "publicUser"
)

// Permission describes what a participant may do inside the zone.
type Permission string

const (
	PermissionReadOnly  Permission = "readOnly"
	PermissionReadWrite Permission = "readWrite"
)

// AcceptanceStatus tracks the invitation state of a participant.
type AcceptanceStatus string

const (
	AcceptanceUnknown  AcceptanceStatus = "unknown"
	AcceptancePending  AcceptanceStatus = "pending"
	AcceptanceAccepted AcceptanceStatus = "accepted"
	AcceptanceRemoved  AcceptanceStatus = "removed"
)

// PublicPermission describes what anyone holding the share link may do.
type PublicPermission string

const (
	PublicPermissionNone      PublicPermission = "none"
	PublicPermissionReadOnly  PublicPermission = "readOnly"
	PublicPermissionReadWrite PublicPermission = "readWrite"
)

// ShareDescriptor represents a remote share. The partition whose database
// holds the descriptor row determines ownership: a descriptor in the owned
// partition means the local identity owns the share; one in the shared
// partition means the local identity is a participant.
type ShareDescriptor struct {
	ZoneID           string           `gorm:"column:zone_id;primaryKey;size:190;not null"`
	Title            string           `gorm:"column:title;size:190;not null"`
	PublicPermission PublicPermission `gorm:"column:public_permission;size:16;not null;default:'none'"`
	CreatedAtSeconds int64            `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (ShareDescriptor) TableName() string {
	return "share_descriptors"
}

// Participant is a member of a share, resolved from an external identity
// lookup.
type Participant struct {
	ID               string           `gorm:"column:id;primaryKey;size:190;not null"`
	ZoneID           string           `gorm:"column:zone_id;size:190;not null;index:idx_participants_zone"`
	Identity         string           `gorm:"column:identity;size:190;not null"`
	LookupKey        string           `gorm:"column:lookup_key;size:320;not null"`
	Role             Role             `gorm:"column:role;size:16;not null"`
	Permission       Permission       `gorm:"column:permission;size:16;not null"`
	AcceptanceStatus AcceptanceStatus `gorm:"column:acceptance_status;size:16;not null;default:'unknown'"`
}

// TableName provides the explicit table binding for GORM.
func (Participant) TableName() string {
	return "share_participants"
}

// shareTitle derives the display title from the creation timestamp. Titles
// are display-unique by convention only, never enforced.
func shareTitle(createdAt time.Time) string {
	return "Share-" + createdAt.UTC().Format("1/2/06, 15:04")
}
