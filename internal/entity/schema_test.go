package entity

import (
	"errors"
	"strings"
	"testing"
)

func TestNewIdentityRejectsEmptyAndOversized(t *testing.T) {
	if _, err := NewIdentity("   "); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity for blank input, got %v", err)
	}
	if _, err := NewIdentity(strings.Repeat("a", 191)); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity for oversized input, got %v", err)
	}
	id, err := NewIdentity("  photo-1  ")
	if err != nil {
		t.Fatalf("unexpected identity error: %v", err)
	}
	if id.String() != "photo-1" {
		t.Fatalf("expected trimmed identity, got %q", id.String())
	}
}

func TestNewZoneIDAcceptsEmptyAsDefaultZone(t *testing.T) {
	zone, err := NewZoneID("")
	if err != nil {
		t.Fatalf("unexpected zone error: %v", err)
	}
	if zone != DefaultZone {
		t.Fatalf("expected default zone, got %q", zone)
	}
}

func TestNewRecordCoversEveryKind(t *testing.T) {
	for _, kind := range Kinds() {
		record, err := NewRecord(kind)
		if err != nil {
			t.Fatalf("unexpected error for kind %q: %v", kind, err)
		}
		if record.RecordKind() != kind {
			t.Fatalf("kind mismatch: prototype for %q reports %q", kind, record.RecordKind())
		}
	}
	if _, err := NewRecord(Kind("widget")); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestOnlyTagsAreMergeable(t *testing.T) {
	for _, kind := range Kinds() {
		expected := kind == KindTag
		if Mergeable(kind) != expected {
			t.Fatalf("mergeable(%q) = %v, expected %v", kind, Mergeable(kind), expected)
		}
	}
}

func TestMergeKeyReturnsTagName(t *testing.T) {
	key, err := MergeKey(&Tag{ID: "t1", Name: "vacation"})
	if err != nil {
		t.Fatalf("unexpected merge key error: %v", err)
	}
	if key != "vacation" {
		t.Fatalf("expected merge key %q, got %q", "vacation", key)
	}
	if _, err := MergeKey(&Photo{ID: "p1"}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind for non-mergeable record, got %v", err)
	}
}

func TestSetRecordZoneRoundTrips(t *testing.T) {
	photo := &Photo{ID: "p1"}
	photo.SetRecordZone(ZoneID("zone-a"))
	if photo.RecordZone() != ZoneID("zone-a") {
		t.Fatalf("expected zone-a, got %q", photo.RecordZone())
	}
}

func TestUUIDProviderIssuesSortableIdentifiers(t *testing.T) {
	provider := NewUUIDProvider()
	first, err := provider.NewID()
	if err != nil {
		t.Fatalf("unexpected id error: %v", err)
	}
	second, err := provider.NewID()
	if err != nil {
		t.Fatalf("unexpected id error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct identifiers, got %q twice", first)
	}
	if !(first < second) {
		t.Fatalf("expected creation-ordered identifiers, got %q then %q", first, second)
	}
}
