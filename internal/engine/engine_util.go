package engine

import (
	"maps"
	"slices"
)

func NewCombat() *Combat {
	return &Combat{
		Combatants:       []Combatant{},
		InitiativeOrder:  []string{},
		CurrentTurnIndex: NotStarted,
	}
}

// Empty reports whether there is nothing left worth keeping for the campaign.
func (s State) Empty() bool {
	return s.Combat == nil && len(s.Movement) == 0
}

// Clone deep-copies the state so reducers never share slices or maps with callers.
func (s State) Clone() State {
	out := State{}
	if s.Combat != nil {
		out.Combat = &Combat{
			Combatants:       slices.Clone(s.Combat.Combatants),
			InitiativeOrder:  slices.Clone(s.Combat.InitiativeOrder),
			CurrentTurnIndex: s.Combat.CurrentTurnIndex,
		}
	}
	if s.Movement != nil {
		out.Movement = maps.Clone(s.Movement)
	}
	return out
}

func (c *Combat) Find(id string) (Combatant, bool) {
	for _, combatant := range c.Combatants {
		if combatant.ID == id {
			return combatant, true
		}
	}
	return Combatant{}, false
}

func (c *Combat) Has(id string) bool {
	_, ok := c.Find(id)
	return ok
}

// Current returns the combatant whose turn it is.
func (c *Combat) Current() (Combatant, bool) {
	if c.CurrentTurnIndex < 0 || c.CurrentTurnIndex >= len(c.InitiativeOrder) {
		return Combatant{}, false
	}
	return c.Find(c.InitiativeOrder[c.CurrentTurnIndex])
}

// Sorted returns the combatants in initiative order.
func (c *Combat) Sorted() []Combatant {
	out := make([]Combatant, 0, len(c.InitiativeOrder))
	for _, id := range c.InitiativeOrder {
		if combatant, ok := c.Find(id); ok {
			out = append(out, combatant)
		}
	}
	return out
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
