package schedule

import (
	"testing"
)

func TestSlotsDeterministic(t *testing.T) {
	t.Parallel()
	a, err := Slots("camp-1", "2026-07-14", "10:00", "18:00", 5)
	if err != nil {
		t.Fatalf("Slots error: %v", err)
	}
	b, err := Slots("camp-1", "2026-07-14", "10:00", "18:00", 5)
	if err != nil {
		t.Fatalf("Slots error: %v", err)
	}
	if len(a) != 5 || len(b) != 5 {
		t.Fatalf("expected 5 slots, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("slot %d differs across runs: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestSlotsVaryWithInputs(t *testing.T) {
	t.Parallel()
	base, err := Slots("camp-1", "2026-07-14", "10:00", "18:00", 5)
	if err != nil {
		t.Fatalf("Slots error: %v", err)
	}
	variants := [][]string{}
	for _, args := range [][4]string{
		{"camp-2", "2026-07-14", "10:00", "18:00"},
		{"camp-1", "2026-07-15", "10:00", "18:00"},
	} {
		got, err := Slots(args[0], args[1], args[2], args[3], 5)
		if err != nil {
			t.Fatalf("Slots error: %v", err)
		}
		variants = append(variants, got)
	}
	for i, v := range variants {
		same := true
		for j := range base {
			if base[j] != v[j] {
				same = false
				break
			}
		}
		if same {
			t.Fatalf("variant %d produced identical slots to base: %v", i, v)
		}
	}
}

func TestSlotsWithinWindowAndUnique(t *testing.T) {
	t.Parallel()
	got, err := Slots("camp-9", "2026-07-01", "12:30", "13:00", 20)
	if err != nil {
		t.Fatalf("Slots error: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("expected 20 slots, got %d", len(got))
	}
	seen := map[string]bool{}
	for _, s := range got {
		if s < "12:30" || s > "13:00" {
			t.Fatalf("slot %s outside window", s)
		}
		if seen[s] {
			t.Fatalf("duplicate slot %s", s)
		}
		seen[s] = true
	}
}

func TestSlotsCapacityCap(t *testing.T) {
	t.Parallel()
	// Window holds 11 minutes inclusive; asking for more caps at 11.
	got, err := Slots("camp-1", "2026-07-14", "09:00", "09:10", 50)
	if err != nil {
		t.Fatalf("Slots error: %v", err)
	}
	if len(got) != 11 {
		t.Fatalf("expected 11 slots, got %d", len(got))
	}
}

func TestSlotsEdges(t *testing.T) {
	t.Parallel()
	if got, err := Slots("c", "2026-07-14", "10:00", "18:00", 0); err != nil || len(got) != 0 {
		t.Fatalf("count=0: got %v, %v", got, err)
	}
	// Single-minute window.
	got, err := Slots("c", "2026-07-14", "10:00", "10:00", 3)
	if err != nil {
		t.Fatalf("Slots error: %v", err)
	}
	if len(got) != 1 || got[0] != "10:00" {
		t.Fatalf("single-minute window: got %v", got)
	}
	if _, err := Slots("c", "2026-07-14", "18:00", "10:00", 1); err == nil {
		t.Fatal("expected error for inverted window")
	}
	if _, err := Slots("c", "2026-07-14", "9:00", "10:00", 1); err == nil {
		t.Fatal("expected error for non-HH:mm time")
	}
}
