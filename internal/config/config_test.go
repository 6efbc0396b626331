package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.OwnedDatabasePath != defaultOwnedPath {
		t.Fatalf("expected default owned path, got %q", cfg.OwnedDatabasePath)
	}
	if cfg.SharedDatabasePath != defaultSharedPath {
		t.Fatalf("expected default shared path, got %q", cfg.SharedDatabasePath)
	}
	if cfg.AuthorTag != defaultAuthorTag {
		t.Fatalf("expected default author tag, got %q", cfg.AuthorTag)
	}
	if cfg.PollInterval != defaultPollInterval {
		t.Fatalf("expected default poll interval, got %v", cfg.PollInterval)
	}
}

func TestLoadRejectsSharedDatabaseFile(t *testing.T) {
	v := NewViper()
	v.Set("database.owned_path", "same.db")
	v.Set("database.shared_path", "same.db")
	if _, err := Load(v); err == nil {
		t.Fatal("expected error when both partitions use one file")
	}
}

func TestLoadRejectsBlankAuthorTag(t *testing.T) {
	v := NewViper()
	v.Set("author.tag", "   ")
	if _, err := Load(v); err == nil {
		t.Fatal("expected error for blank author tag")
	}
}

func TestLoadRejectsNonPositivePollInterval(t *testing.T) {
	v := NewViper()
	v.Set("replay.poll_interval", time.Duration(0))
	if _, err := Load(v); err == nil {
		t.Fatal("expected error for zero poll interval")
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	v := NewViper()
	v.Set("database.owned_path", "custom-owned.db")
	v.Set("replay.poll_interval", 3*time.Second)
	v.Set("remote.max_zones", 4)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.OwnedDatabasePath != "custom-owned.db" {
		t.Fatalf("expected override path, got %q", cfg.OwnedDatabasePath)
	}
	if cfg.PollInterval != 3*time.Second {
		t.Fatalf("expected 3s poll interval, got %v", cfg.PollInterval)
	}
	if cfg.RemoteMaxZones != 4 {
		t.Fatalf("expected max zones 4, got %d", cfg.RemoteMaxZones)
	}
}
