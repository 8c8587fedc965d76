package accesstoken

import "testing"

func TestLoadGeneratesOnFirstRunAndPersists(t *testing.T) {
	dir := t.TempDir()

	first, err := Load(dir)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if first == "" {
		t.Fatalf("expected a non-empty generated token")
	}

	second, err := Load(dir)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if second != first {
		t.Fatalf("expected the same token to be reloaded, got %q vs %q", first, second)
	}
}

func TestEqualIsConstantTimeCorrect(t *testing.T) {
	if !Equal("abc", "abc") {
		t.Fatalf("expected equal tokens to match")
	}
	if Equal("abc", "abd") {
		t.Fatalf("expected different tokens to not match")
	}
	if Equal("abc", "ab") {
		t.Fatalf("expected different-length tokens to not match")
	}
}
