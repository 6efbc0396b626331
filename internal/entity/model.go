package entity

// Photo is the leaf content entity. It owns at most one Thumbnail and one
// PhotoData row and links to zero or more tags through PhotoTag rows.
type Photo struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null"`
	UniqueName       string `gorm:"column:unique_name;size:190;not null"`
	ZoneID           string `gorm:"column:zone_id;size:190;not null;default:'';index:idx_photos_zone"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Photo) TableName() string {
	return "photos"
}

// Thumbnail stores the small preview binary for a photo.
type Thumbnail struct {
	ID      string `gorm:"column:id;primaryKey;size:190;not null"`
	PhotoID string `gorm:"column:photo_id;size:190;not null;index:idx_thumbnails_photo"`
	ZoneID  string `gorm:"column:zone_id;size:190;not null;default:''"`
	Data    []byte `gorm:"column:data;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Thumbnail) TableName() string {
	return "thumbnails"
}

// PhotoData stores the full-resolution binary for a photo.
type PhotoData struct {
	ID      string `gorm:"column:id;primaryKey;size:190;not null"`
	PhotoID string `gorm:"column:photo_id;size:190;not null;index:idx_photo_data_photo"`
	ZoneID  string `gorm:"column:zone_id;size:190;not null;default:''"`
	Data    []byte `gorm:"column:data;not null"`
}

// TableName provides the explicit table binding for GORM.
func (PhotoData) TableName() string {
	return "photo_data"
}

// Tag is the mergeable entity kind. Independent peers can create same-named
// tags concurrently; deduplication collapses them per zone. CreationUUID is
// the deterministic tie-breaker: unique per insert, UUIDv7 so it carries
// creation order, and totally ordered under lexicographic comparison.
type Tag struct {
	ID           string `gorm:"column:id;primaryKey;size:190;not null"`
	Name         string `gorm:"column:name;size:190;not null;index:idx_tags_name_zone,priority:1"`
	ZoneID       string `gorm:"column:zone_id;size:190;not null;default:'';index:idx_tags_name_zone,priority:2"`
	CreationUUID string `gorm:"column:creation_uuid;size:64;not null;uniqueIndex:idx_tags_creation_uuid"`
}

// TableName provides the explicit table binding for GORM.
func (Tag) TableName() string {
	return "tags"
}

// PhotoTag is the unordered photo-to-tag relationship. Deduplication
// re-points these rows from a losing tag to the winning one.
type PhotoTag struct {
	ID      string `gorm:"column:id;primaryKey;size:190;not null"`
	PhotoID string `gorm:"column:photo_id;size:190;not null;index:idx_photo_tags_photo"`
	TagID   string `gorm:"column:tag_id;size:190;not null;index:idx_photo_tags_tag"`
	ZoneID  string `gorm:"column:zone_id;size:190;not null;default:''"`
}

// TableName provides the explicit table binding for GORM.
func (PhotoTag) TableName() string {
	return "photo_tags"
}

// Rating links a 1-5 value to exactly one photo. Ratings have no merge
// semantics; duplicates are acceptable.
type Rating struct {
	ID      string `gorm:"column:id;primaryKey;size:190;not null"`
	PhotoID string `gorm:"column:photo_id;size:190;not null;index:idx_ratings_photo"`
	ZoneID  string `gorm:"column:zone_id;size:190;not null;default:''"`
	Value   int16  `gorm:"column:value;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Rating) TableName() string {
	return "ratings"
}

// RecordIdentity implementations expose the partition-independent identity.

func (p *Photo) RecordIdentity() string     { return p.ID }
func (t *Thumbnail) RecordIdentity() string { return t.ID }
func (d *PhotoData) RecordIdentity() string { return d.ID }
func (t *Tag) RecordIdentity() string       { return t.ID }
func (l *PhotoTag) RecordIdentity() string  { return l.ID }
func (r *Rating) RecordIdentity() string    { return r.ID }

func (p *Photo) RecordKind() Kind     { return KindPhoto }
func (t *Thumbnail) RecordKind() Kind { return KindThumbnail }
func (d *PhotoData) RecordKind() Kind { return KindPhotoData }
func (t *Tag) RecordKind() Kind       { return KindTag }
func (l *PhotoTag) RecordKind() Kind  { return KindPhotoTag }
func (r *Rating) RecordKind() Kind    { return KindRating }

func (p *Photo) RecordZone() ZoneID     { return ZoneID(p.ZoneID) }
func (t *Thumbnail) RecordZone() ZoneID { return ZoneID(t.ZoneID) }
func (d *PhotoData) RecordZone() ZoneID { return ZoneID(d.ZoneID) }
func (t *Tag) RecordZone() ZoneID       { return ZoneID(t.ZoneID) }
func (l *PhotoTag) RecordZone() ZoneID  { return ZoneID(l.ZoneID) }
func (r *Rating) RecordZone() ZoneID    { return ZoneID(r.ZoneID) }

func (p *Photo) SetRecordZone(zone ZoneID)     { p.ZoneID = zone.String() }
func (t *Thumbnail) SetRecordZone(zone ZoneID) { t.ZoneID = zone.String() }
func (d *PhotoData) SetRecordZone(zone ZoneID) { d.ZoneID = zone.String() }
func (t *Tag) SetRecordZone(zone ZoneID)       { t.ZoneID = zone.String() }
func (l *PhotoTag) SetRecordZone(zone ZoneID)  { l.ZoneID = zone.String() }
func (r *Rating) SetRecordZone(zone ZoneID)    { r.ZoneID = zone.String() }
