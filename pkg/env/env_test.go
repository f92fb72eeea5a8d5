package env

import "testing"

func TestGet(t *testing.T) {
	t.Setenv("NCCART_TEST_VALUE", "  console ")
	if got := Get("NCCART_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected trimmed value, got %q", got)
	}

	t.Setenv("NCCART_TEST_VALUE", "   ")
	if got := Get("NCCART_TEST_VALUE", "json"); got != "json" {
		t.Fatalf("expected fallback for blank value, got %q", got)
	}
}

func TestFirst(t *testing.T) {
	t.Setenv("NCCART_TEST_A", "")
	t.Setenv("NCCART_TEST_B", "web.1")
	if got := First("NCCART_TEST_A", "NCCART_TEST_B"); got != "web.1" {
		t.Fatalf("expected web.1, got %q", got)
	}
	if got := First("NCCART_TEST_A"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
