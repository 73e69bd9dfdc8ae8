package dice

import "math/rand/v2"

//go:generate mockgen -destination=mock/mock_roller.go -package=mockdice -source=roller.go

// Roller rolls a single die. Injected so scoring and initiative are deterministic in tests.
type Roller interface {
	// Roll returns a uniform value in [1, sides].
	Roll(sides int) int
}

type randomRoller struct{}

func NewRandomRoller() Roller {
	return randomRoller{}
}

func (randomRoller) Roll(sides int) int {
	if sides < 1 {
		return 0
	}
	return rand.IntN(sides) + 1
}

// D10 and D20 are the only dice the battle and combat rules use.
func D10(r Roller) int { return r.Roll(10) }
func D20(r Roller) int { return r.Roll(20) }
