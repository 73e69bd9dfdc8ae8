package goals

import "slices"

type GoalType string

const (
	TypeAttack    GoalType = "attack"
	TypeDefend    GoalType = "defend"
	TypeLogistics GoalType = "logistics"
	TypeCustom    GoalType = "custom"
	TypeCommander GoalType = "commander"
)

type Group string

const (
	GroupAttacking Group = "attacking"
	GroupDefending Group = "defending"
	GroupLogistics Group = "logistics"
	GroupCustom    Group = "custom"
	GroupCommander Group = "commander"
	GroupUnique    Group = "unique"
)

type TargetType string

const (
	TargetEnemy TargetType = "enemy"
	TargetSelf  TargetType = "self"
)

type Effect string

const (
	EffectNone                    Effect = ""
	EffectDecreaseTarget          Effect = "decrease_target"
	EffectIncreaseSelf            Effect = "increase_self"
	EffectDecreaseTargetHalfScore Effect = "decrease_target_half_score"
)

// Definition is one selectable battle goal.
type Definition struct {
	Key                string     `json:"key"`
	Name               string     `json:"name"`
	Description        string     `json:"description"`
	Group              Group      `json:"group"`
	Type               GoalType   `json:"goal_type"`
	Target             TargetType `json:"target_type"`
	Effect             Effect     `json:"effect,omitempty"`
	EligibleCategories []string   `json:"eligible_categories"`
	GuaranteedCasualty int        `json:"guaranteed_casualty,omitempty"`
}

// FindByKey looks a goal up by its key.
func FindByKey(key string) (Definition, bool) {
	for _, d := range catalog {
		if d.Key == key {
			return d, true
		}
	}
	return Definition{}, false
}

// IsEligible reports whether an army of the given category may pick the goal.
// An empty whitelist means every category is eligible.
func IsEligible(d Definition, category string) bool {
	if len(d.EligibleCategories) == 0 {
		return true
	}
	return slices.Contains(d.EligibleCategories, category)
}

// All returns a copy of the flattened catalog in declaration order.
func All() []Definition {
	return slices.Clone(catalog)
}

func ForCategory(category string) []Definition {
	out := make([]Definition, 0, len(catalog))
	for _, d := range catalog {
		if IsEligible(d, category) {
			out = append(out, d)
		}
	}
	return out
}
