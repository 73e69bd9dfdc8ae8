package battle

// troopBands maps upper troop bounds to the numbers stat used in scoring.
var troopBands = []struct {
	max     int
	numbers int
}{
	{20, 1},
	{50, 2},
	{100, 3},
	{200, 4},
	{400, 5},
	{800, 6},
	{1600, 7},
	{3200, 8},
	{6400, 9},
}

// NumbersStat derives the numbers stat from a troop count.
func NumbersStat(troops int) int {
	for _, b := range troopBands {
		if troops <= b.max {
			return b.numbers
		}
	}
	return 10
}

// StatSum is the dice-free part of a first-round score.
func StatSum(p Participant) int {
	s := p.Stats
	return NumbersStat(p.CurrentTroops)*10 + s.Equipment + s.Discipline + s.Morale + s.Command + s.Logistics
}

type scoreUpdate struct {
	base, current int
	rolled        bool
}

// scoreFor computes a participant's new scores for a scoring pass. firstScoring
// recomputes from stats; later passes only add the roll to the running score.
func scoreFor(p Participant, firstScoring bool, roll func() int) scoreUpdate {
	if !p.Active() {
		return scoreUpdate{base: p.BaseScore, current: 0}
	}
	r := roll()
	if firstScoring {
		total := StatSum(p) + r
		return scoreUpdate{base: total, current: total, rolled: true}
	}
	return scoreUpdate{base: p.BaseScore, current: p.CurrentScore + r, rolled: true}
}
