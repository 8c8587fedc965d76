package kv

import "testing"

func TestMigratorAppliesInOrderOnce(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	var applied []int
	m := NewMigrator(
		Migration{Seq: 1, Name: "create-global", Run: func(s Store) error {
			applied = append(applied, 1)
			return s.Set(Key(TableGlobal, []byte("version")), []byte("1"))
		}},
		Migration{Seq: 2, Name: "seed-hubs", Run: func(s Store) error {
			applied = append(applied, 2)
			return nil
		}},
	)

	if err := m.Run(s); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(applied) != 2 || applied[0] != 1 || applied[1] != 2 {
		t.Fatalf("unexpected apply order: %v", applied)
	}

	// Re-running must be a no-op: migrations must not re-execute.
	if err := m.Run(s); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("migrations re-ran: %v", applied)
	}
}
