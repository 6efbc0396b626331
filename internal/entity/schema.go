package entity

import (
	"errors"
	"fmt"
)

// Kind names a persisted entity kind.
type Kind string

const (
	KindPhoto     Kind = "photo"
	KindThumbnail Kind = "thumbnail"
	KindPhotoData Kind = "photo_data"
	KindTag       Kind = "tag"
	KindPhotoTag  Kind = "photo_tag"
	KindRating    Kind = "rating"
)

// ErrUnknownKind indicates a kind name outside the static schema.
var ErrUnknownKind = errors.New("entity: unknown kind")

// Record is the abstract persisted entity: a stable identity, a kind from
// the static schema, and the zone it currently lives in. The partition is
// derived from which database holds the row and is never stored.
type Record interface {
	RecordIdentity() string
	RecordKind() Kind
	RecordZone() ZoneID
	SetRecordZone(zone ZoneID)
}

// NewRecord returns an empty record of the given kind, for typed loading.
func NewRecord(kind Kind) (Record, error) {
	switch kind {
	case KindPhoto:
		return &Photo{}, nil
	case KindThumbnail:
		return &Thumbnail{}, nil
	case KindPhotoData:
		return &PhotoData{}, nil
	case KindTag:
		return &Tag{}, nil
	case KindPhotoTag:
		return &PhotoTag{}, nil
	case KindRating:
		return &Rating{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Kinds lists every kind in the static schema.
func Kinds() []Kind {
	return []Kind{KindPhoto, KindThumbnail, KindPhotoData, KindTag, KindPhotoTag, KindRating}
}

// Mergeable reports whether the kind is subject to leaderless deduplication.
// Only tags merge; ratings keep duplicates by design.
func Mergeable(kind Kind) bool {
	return kind == KindTag
}

// RelationshipDescriptor describes a named, typed link between two kinds.
// Deduplication and subgraph moves walk this static schema instead of
// building string-formatted queries at runtime.
type RelationshipDescriptor struct {
	Name string
	From Kind
	To   Kind
}

// Relationships returns the static relationship schema.
func Relationships() []RelationshipDescriptor {
	return []RelationshipDescriptor{
		{Name: "thumbnail", From: KindPhoto, To: KindThumbnail},
		{Name: "photoData", From: KindPhoto, To: KindPhotoData},
		{Name: "tags", From: KindPhoto, To: KindPhotoTag},
		{Name: "tag", From: KindPhotoTag, To: KindTag},
		{Name: "ratings", From: KindPhoto, To: KindRating},
	}
}

// MergeKey returns the attribute value duplicates collide on, for mergeable
// records. For tags that is the display name.
func MergeKey(record Record) (string, error) {
	tag, ok := record.(*Tag)
	if !ok {
		return "", fmt.Errorf("%w: kind %q is not mergeable", ErrUnknownKind, record.RecordKind())
	}
	return tag.Name, nil
}
