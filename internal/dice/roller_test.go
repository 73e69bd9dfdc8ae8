package dice

import "testing"

func TestRandomRoller_StaysInRange(t *testing.T) {
	r := NewRandomRoller()
	for _, sides := range []int{10, 20} {
		for i := 0; i < 500; i++ {
			v := r.Roll(sides)
			if v < 1 || v > sides {
				t.Fatalf("d%d rolled %d", sides, v)
			}
		}
	}
}

func TestRandomRoller_NoSides(t *testing.T) {
	if got := NewRandomRoller().Roll(0); got != 0 {
		t.Fatalf("want 0 for a zero-sided die, got %d", got)
	}
}
