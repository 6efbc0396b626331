package ledger

// ChangeKind enumerates the mutations the ledger observes.
type ChangeKind string

const (
	// ChangeKindInsert records a newly created entity.
	ChangeKindInsert ChangeKind = "insert"
	// ChangeKindUpdate records an attribute or relationship mutation.
	ChangeKindUpdate ChangeKind = "update"
	// ChangeKindDelete records a tombstone-producing removal.
	ChangeKindDelete ChangeKind = "delete"
)

// ChangeRecord is an immutable ledger entry. Seq is the opaque continuation
// token: an autoincrement primary key, so tokens within one partition
// strictly increase and are never reused.
type ChangeRecord struct {
	Seq              int64      `gorm:"column:seq;primaryKey;autoIncrement"`
	Author           string     `gorm:"column:author;size:190;not null;index:idx_change_records_author"`
	EntityID         string     `gorm:"column:entity_id;size:190;not null"`
	EntityKind       string     `gorm:"column:entity_kind;size:32;not null"`
	Kind             ChangeKind `gorm:"column:change_kind;size:16;not null"`
	ZoneID           string     `gorm:"column:zone_id;size:190;not null;default:''"`
	AppliedAtSeconds int64      `gorm:"column:applied_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (ChangeRecord) TableName() string {
	return "change_records"
}

// Checkpoint is the durable per-partition replay cursor. It advances only
// after a batch has been applied, never before, so a crash can repeat work
// but never skip it.
type Checkpoint struct {
	Partition        string `gorm:"column:partition;primaryKey;size:32;not null"`
	LastSeq          int64  `gorm:"column:last_seq;not null;default:0"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Checkpoint) TableName() string {
	return "checkpoints"
}
