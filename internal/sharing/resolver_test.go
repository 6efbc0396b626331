package sharing

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResolverPersistsMappingsAcrossInstances(t *testing.T) {
	db := openTestDB(t, "resolver")
	ctx := context.Background()
	clock := func() time.Time { return time.Unix(5000, 0) }

	seeded := NewLocalRemote(LocalRemoteConfig{
		Identities: map[string]string{"friend@example.com": "identity-friend"},
	})
	resolver := NewResolver(seeded, db, clock)
	identity, err := resolver.Resolve(ctx, "friend@example.com")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if identity != "identity-friend" {
		t.Fatalf("unexpected identity %q", identity)
	}

	// A fresh resolver with an empty directory must answer from the
	// persisted table.
	empty := NewLocalRemote(LocalRemoteConfig{})
	rebuilt := NewResolver(empty, db, clock)
	identity, err = rebuilt.Resolve(ctx, "friend@example.com")
	if err != nil {
		t.Fatalf("resolve from persisted cache failed: %v", err)
	}
	if identity != "identity-friend" {
		t.Fatalf("unexpected cached identity %q", identity)
	}

	if _, err := rebuilt.Resolve(ctx, "stranger@example.com"); !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
}
