package store

import (
	"testing"

	"docqa/config"
)

func TestCheckMigration(t *testing.T) {
	repo := newTestRepo(t)
	cfg := config.DefaultConfig()

	result, err := repo.CheckMigration(cfg)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !result.NeedsMigration || result.OldVersion != 0 {
		t.Errorf("fresh database should need migration: %+v", result)
	}

	if err := repo.Migrate(cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	result, err = repo.CheckMigration(cfg)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.NeedsMigration || result.ConfigChanged {
		t.Errorf("migrated database should be current: %+v", result)
	}

	changed := config.DefaultConfig()
	changed.Chunking.MaxTokens = 200
	result, err = repo.CheckMigration(changed)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !result.ConfigChanged {
		t.Error("expected config change to be detected")
	}
}

func TestCheckMigrationNewerSchema(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.SetSchemaInfo(&SchemaInfo{Version: CurrentSchemaVersion + 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := repo.CheckMigration(config.DefaultConfig()); err == nil {
		t.Error("expected error for a database from a newer version")
	}
}

func TestComputeConfigHashIgnoresRetrieval(t *testing.T) {
	a := config.DefaultConfig()
	b := config.DefaultConfig()
	b.Retrieve.TopK = 9

	if ComputeConfigHash(a) != ComputeConfigHash(b) {
		t.Error("retrieval settings should not affect the stored-data hash")
	}
}
