package database

import (
	"testing"
)

func TestEmbeddedMigrationsAreOrderedAndPaired(t *testing.T) {
	migrations, err := migrationSource().FindMigrations()
	if err != nil {
		t.Fatalf("find migrations: %v", err)
	}
	if len(migrations) < 5 {
		t.Fatalf("expected at least 5 migrations, got %d", len(migrations))
	}
	for i, m := range migrations {
		if len(m.Up) == 0 || len(m.Down) == 0 {
			t.Fatalf("migration %s must have up and down statements", m.Id)
		}
		if i > 0 && !migrations[i-1].Less(m) {
			t.Fatalf("migrations out of order at %s", m.Id)
		}
	}
}
