package kv

import (
	"fmt"

	"github.com/google/uuid"
)

// Migration is one schema step identified by a monotonically increasing
// sequence number, matching the original db/migrations.rs pattern of hub
// and node: a numbered list of idempotent steps applied in order.
type Migration struct {
	Seq  int
	Name string
	Run  func(s Store) error
}

// Migrator applies a fixed list of Migrations to a Store, recording the
// highest applied Seq under TableMigrations so a restart resumes rather
// than re-running completed steps.
type Migrator struct {
	migrations []Migration
}

// NewMigrator returns a Migrator that will apply migrations in ascending
// Seq order. Callers should list them already sorted; Run does not sort.
func NewMigrator(migrations ...Migration) *Migrator {
	return &Migrator{migrations: migrations}
}

var (
	migrationCursorKey = Key(TableMigrations, []byte("cursor"))
	migrationRunIDKey  = Key(TableMigrations, []byte("last_run_id"))
)

// Run applies every migration whose Seq is greater than the last recorded
// cursor, in order, advancing the cursor after each successful step. If any
// migration actually ran, a fresh run id is recorded alongside the cursor so
// operators can correlate a deployment's migration pass with its logs.
func (m *Migrator) Run(s Store) error {
	cursor := -1
	if v, err := s.Get(migrationCursorKey); err == nil {
		cursor = int(decodeCounter(v))
	} else if err != ErrNotFound {
		return err
	}

	applied := false
	for _, mig := range m.migrations {
		if mig.Seq <= cursor {
			continue
		}
		if err := mig.Run(s); err != nil {
			return fmt.Errorf("migration %d (%s): %w", mig.Seq, mig.Name, err)
		}
		if err := s.Set(migrationCursorKey, encodeCounter(int64(mig.Seq))); err != nil {
			return fmt.Errorf("migration %d (%s): record cursor: %w", mig.Seq, mig.Name, err)
		}
		cursor = mig.Seq
		applied = true
	}
	if applied {
		if err := s.Set(migrationRunIDKey, []byte(uuid.NewString())); err != nil {
			return fmt.Errorf("record migration run id: %w", err)
		}
	}
	return nil
}

// LastRunID returns the run id recorded by the most recent Run call that
// actually applied at least one migration, or "" if none has yet.
func LastRunID(s Store) (string, error) {
	v, err := s.Get(migrationRunIDKey)
	if err == ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(v), nil
}
