package instance

import "testing"

func TestGetIDPrefersExplicitID(t *testing.T) {
	t.Setenv("NCCART_INSTANCE_ID", "cart-7")
	t.Setenv("DYNO", "web.1")
	if got := GetID(); got != "cart-7" {
		t.Fatalf("expected cart-7, got %q", got)
	}
}

func TestGetIDFallsBackToDyno(t *testing.T) {
	t.Setenv("NCCART_INSTANCE_ID", "")
	t.Setenv("DYNO", "web.1")
	if got := GetID(); got != "web.1" {
		t.Fatalf("expected web.1, got %q", got)
	}
}

func TestGetIDNeverEmpty(t *testing.T) {
	t.Setenv("NCCART_INSTANCE_ID", "")
	t.Setenv("DYNO", "")
	if got := GetID(); got == "" {
		t.Fatal("expected a non-empty instance id")
	}
}
