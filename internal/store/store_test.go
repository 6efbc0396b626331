package store

import (
	"context"
	"errors"
	"testing"

	"github.com/MarcoPoloResearchLab/lumen/core/internal/entity"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/ledger"
)

func TestWriteAppendsOneChangeRecordPerMutation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	photo := entity.Photo{ID: "p1", UniqueName: "sunset.jpg"}
	tag := entity.Tag{ID: "t1", Name: "vacation", CreationUUID: "c1"}
	err := s.Write(ctx, PartitionOwned, "peer", []Mutation{
		{Kind: ledger.ChangeKindInsert, Record: &photo},
		{Kind: ledger.ChangeKindInsert, Record: &tag},
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	db, err := s.DB(PartitionOwned)
	if err != nil {
		t.Fatalf("db lookup failed: %v", err)
	}
	var records []ledger.ChangeRecord
	if err := db.Order("seq ASC").Find(&records).Error; err != nil {
		t.Fatalf("ledger read failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 change records, got %d", len(records))
	}
	if records[0].EntityID != "p1" || records[0].Author != "peer" {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[1].EntityKind != string(entity.KindTag) {
		t.Fatalf("unexpected second record kind: %q", records[1].EntityKind)
	}
}

func TestInTransactionRollsBackEntityAndLedgerTogether(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTransaction(ctx, PartitionOwned, "local", func(txn *Txn) error {
		if err := txn.Insert(&entity.Photo{ID: "p1", UniqueName: "sunset.jpg"}); err != nil {
			return err
		}
		return boom
	})
	if err == nil {
		t.Fatal("expected transaction error")
	}

	db, _ := s.DB(PartitionOwned)
	var photoCount, recordCount int64
	if err := db.Model(&entity.Photo{}).Count(&photoCount).Error; err != nil {
		t.Fatalf("photo count failed: %v", err)
	}
	if err := db.Model(&ledger.ChangeRecord{}).Count(&recordCount).Error; err != nil {
		t.Fatalf("record count failed: %v", err)
	}
	if photoCount != 0 || recordCount != 0 {
		t.Fatalf("expected full rollback, got %d photos and %d records", photoCount, recordCount)
	}
}

func TestInsertIsUpsertByIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := entity.Photo{ID: "p1", UniqueName: "before.jpg"}
	if err := s.Write(ctx, PartitionOwned, "peer", []Mutation{{Kind: ledger.ChangeKindInsert, Record: &first}}); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	second := entity.Photo{ID: "p1", UniqueName: "after.jpg"}
	if err := s.Write(ctx, PartitionOwned, "peer", []Mutation{{Kind: ledger.ChangeKindInsert, Record: &second}}); err != nil {
		t.Fatalf("replayed write failed: %v", err)
	}

	db, _ := s.DB(PartitionOwned)
	var photos []entity.Photo
	if err := db.Find(&photos).Error; err != nil {
		t.Fatalf("photo read failed: %v", err)
	}
	if len(photos) != 1 {
		t.Fatalf("expected a single photo row, got %d", len(photos))
	}
	if photos[0].UniqueName != "after.jpg" {
		t.Fatalf("expected overwrite to win, got %q", photos[0].UniqueName)
	}
}

func TestDeleteRecordsTombstoneEvenWhenRowAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ghost := entity.Photo{ID: "missing"}
	err := s.Write(ctx, PartitionOwned, "peer", []Mutation{{Kind: ledger.ChangeKindDelete, Record: &ghost}})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	db, _ := s.DB(PartitionOwned)
	var records []ledger.ChangeRecord
	if err := db.Find(&records).Error; err != nil {
		t.Fatalf("ledger read failed: %v", err)
	}
	if len(records) != 1 || records[0].Kind != ledger.ChangeKindDelete {
		t.Fatalf("expected a single tombstone record, got %+v", records)
	}
}

func TestResolvePartitionFindsExactlyOneHome(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	photo := entity.Photo{ID: "p1", UniqueName: "sunset.jpg"}
	if err := s.Write(ctx, PartitionShared, "local", []Mutation{{Kind: ledger.ChangeKindInsert, Record: &photo}}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	partition, err := s.ResolvePartition(ctx, entity.KindPhoto, mustIdentity(t, "p1"))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if partition != PartitionShared {
		t.Fatalf("expected shared partition, got %q", partition)
	}

	if _, err := s.ResolvePartition(ctx, entity.KindPhoto, mustIdentity(t, "absent")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocateByIdentitySearchesOwnedPartitionFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owned := entity.Tag{ID: "t1", Name: "owned-copy", CreationUUID: "c1"}
	shared := entity.Tag{ID: "t1", Name: "shared-copy", CreationUUID: "c2"}
	if err := s.Write(ctx, PartitionOwned, "local", []Mutation{{Kind: ledger.ChangeKindInsert, Record: &owned}}); err != nil {
		t.Fatalf("owned write failed: %v", err)
	}
	if err := s.Write(ctx, PartitionShared, "local", []Mutation{{Kind: ledger.ChangeKindInsert, Record: &shared}}); err != nil {
		t.Fatalf("shared write failed: %v", err)
	}

	record, partition, err := s.LocateByIdentity(ctx, entity.KindTag, mustIdentity(t, "t1"))
	if err != nil {
		t.Fatalf("locate failed: %v", err)
	}
	if partition != PartitionOwned {
		t.Fatalf("expected owned partition first, got %q", partition)
	}
	if record.(*entity.Tag).Name != "owned-copy" {
		t.Fatalf("expected owned row, got %q", record.(*entity.Tag).Name)
	}
}

func TestCollectSubgraphWalksRelationshipsTransitively(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	db, _ := s.DB(PartitionOwned)

	// p1 and p2 both link to t1; p2 additionally has a rating.
	mutations := []Mutation{
		{Kind: ledger.ChangeKindInsert, Record: &entity.Photo{ID: "p1", UniqueName: "a.jpg"}},
		{Kind: ledger.ChangeKindInsert, Record: &entity.Photo{ID: "p2", UniqueName: "b.jpg"}},
		{Kind: ledger.ChangeKindInsert, Record: &entity.Thumbnail{ID: "th1", PhotoID: "p1", Data: []byte{1}}},
		{Kind: ledger.ChangeKindInsert, Record: &entity.PhotoData{ID: "d1", PhotoID: "p1", Data: []byte{2}}},
		{Kind: ledger.ChangeKindInsert, Record: &entity.Tag{ID: "t1", Name: "vacation", CreationUUID: "c1"}},
		{Kind: ledger.ChangeKindInsert, Record: &entity.PhotoTag{ID: "l1", PhotoID: "p1", TagID: "t1"}},
		{Kind: ledger.ChangeKindInsert, Record: &entity.PhotoTag{ID: "l2", PhotoID: "p2", TagID: "t1"}},
		{Kind: ledger.ChangeKindInsert, Record: &entity.Rating{ID: "r1", PhotoID: "p2", Value: 4}},
	}
	if err := s.Write(ctx, PartitionOwned, "local", mutations); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}

	records, err := CollectSubgraph(ctx, db, mustIdentity(t, "p1"))
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(records) != len(mutations) {
		t.Fatalf("expected %d records in subgraph, got %d", len(mutations), len(records))
	}

	if _, err := CollectSubgraph(ctx, db, mustIdentity(t, "absent")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing root, got %v", err)
	}
}

func TestTagsNamedOrdersByCreationTieBreaker(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	db, _ := s.DB(PartitionOwned)

	mutations := []Mutation{
		{Kind: ledger.ChangeKindInsert, Record: &entity.Tag{ID: "t2", Name: "vacation", CreationUUID: "cb"}},
		{Kind: ledger.ChangeKindInsert, Record: &entity.Tag{ID: "t1", Name: "vacation", CreationUUID: "ca"}},
		{Kind: ledger.ChangeKindInsert, Record: &entity.Tag{ID: "t3", Name: "other", CreationUUID: "aa"}},
	}
	if err := s.Write(ctx, PartitionOwned, "local", mutations); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}

	tags, err := TagsNamed(db, "vacation", entity.DefaultZone)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(tags))
	}
	if tags[0].ID != "t1" || tags[1].ID != "t2" {
		t.Fatalf("expected tie-breaker order t1,t2, got %s,%s", tags[0].ID, tags[1].ID)
	}
}
