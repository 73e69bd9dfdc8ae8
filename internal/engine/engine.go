package engine

import (
	"errors"
	"slices"
)

var ErrNoCombat = errors.New("no combat in progress")
var ErrAlreadyInCombat = errors.New("combatant already in combat")
var ErrUnknownCombatant = errors.New("unknown combatant")
var ErrUnsupportedCommand = errors.New("unsupported command")

// DefaultMovementSpeed applies when a combatant has no recorded speed.
const DefaultMovementSpeed = 30

// NotStarted is the turn index of a combat nobody has acted in yet.
const NotStarted = -1

type Combatant struct {
	ID             string `json:"characterId"`
	PlayerID       int64  `json:"playerId,omitempty"`
	Name           string `json:"name"`
	Initiative     int    `json:"initiative"`
	MovementSpeed  int    `json:"movement_speed"`
	IsMonster      bool   `json:"isMonster,omitempty"`
	MonsterID      int64  `json:"monsterId,omitempty"`
	InstanceID     int64  `json:"instanceId,omitempty"`
	InstanceNumber int    `json:"instanceNumber,omitempty"`
	IsBeast        bool   `json:"isBeast,omitempty"`
	OwnerID        int64  `json:"ownerId,omitempty"`
}

// IsCharacter reports whether the combatant is a player character.
func (c Combatant) IsCharacter() bool {
	return !c.IsMonster && !c.IsBeast
}

type Combat struct {
	Combatants       []Combatant `json:"combatants"`
	InitiativeOrder  []string    `json:"initiativeOrder"`
	CurrentTurnIndex int         `json:"currentTurnIndex"`
}

// State is everything a campaign's skirmish holds between commands.
// Movement maps combatant id to remaining movement and may exist without Combat.
type State struct {
	Combat   *Combat        `json:"combat,omitempty"`
	Movement map[string]int `json:"movement,omitempty"`
}

type CommandType string

const (
	CmdAddCombatants  CommandType = "AddCombatants"
	CmdNextTurn       CommandType = "NextTurn"
	CmdReportMovement CommandType = "ReportMovement"
	CmdReset          CommandType = "Reset"
)

/*
	CmdAddCombatants  -> EvtCombatantsUpdated
	CmdNextTurn       -> EvtTurnAdvanced (movement of the new active combatant is refilled)
	CmdReportMovement -> EvtMovementUpdated
	CmdReset          -> EvtCombatReset
*/

type Command struct {
	Type        CommandType
	Combatants  []Combatant
	CombatantID string
	Remaining   int
}

type EventType string

const (
	EvtCombatantsUpdated EventType = "combatantsUpdated"
	EvtTurnAdvanced      EventType = "turnAdvanced"
	EvtMovementUpdated   EventType = "movementUpdated"
	EvtCombatReset       EventType = "combatReset"
)

type Event struct {
	Type          EventType
	CombatantID   string
	MovementSpeed int
	Remaining     int
}

func Apply(s State, cmd Command) ([]Event, State, error) {
	newState := s.Clone()

	switch cmd.Type {
	case CmdAddCombatants:
		if newState.Combat == nil {
			newState.Combat = NewCombat()
		}
		c := newState.Combat
		for _, add := range cmd.Combatants {
			if c.Has(add.ID) || countID(cmd.Combatants, add.ID) > 1 {
				return nil, s, ErrAlreadyInCombat
			}
		}
		c.Combatants = append(c.Combatants, cmd.Combatants...)
		c.InitiativeOrder = initiativeOrder(c.Combatants)

		for _, add := range cmd.Combatants {
			if add.IsMonster {
				continue
			}
			if newState.Movement == nil {
				newState.Movement = map[string]int{}
			}
			newState.Movement[add.ID] = speedOf(add)
		}
		return []Event{{Type: EvtCombatantsUpdated}}, newState, nil

	case CmdNextTurn:
		c := newState.Combat
		if c == nil || len(c.InitiativeOrder) == 0 {
			return nil, s, ErrNoCombat
		}
		if c.CurrentTurnIndex == NotStarted {
			c.CurrentTurnIndex = 0
		} else {
			c.CurrentTurnIndex = (c.CurrentTurnIndex + 1) % len(c.InitiativeOrder)
		}

		current := c.InitiativeOrder[c.CurrentTurnIndex]
		speed := DefaultMovementSpeed
		if combatant, ok := c.Current(); ok {
			speed = speedOf(combatant)
			if newState.Movement == nil {
				newState.Movement = map[string]int{}
			}
			newState.Movement[current] = speed
		}
		return []Event{{Type: EvtTurnAdvanced, CombatantID: current, MovementSpeed: speed}}, newState, nil

	case CmdReportMovement:
		if cmd.CombatantID == "" {
			return nil, s, ErrUnknownCombatant
		}
		// Client-reported remaining movement is authoritative as-is.
		if newState.Movement == nil {
			newState.Movement = map[string]int{}
		}
		newState.Movement[cmd.CombatantID] = cmd.Remaining
		return []Event{{Type: EvtMovementUpdated, CombatantID: cmd.CombatantID, Remaining: cmd.Remaining}}, newState, nil

	case CmdReset:
		return []Event{{Type: EvtCombatReset}}, State{}, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// initiativeOrder sorts ids by initiative, highest first. Ties keep join order.
func initiativeOrder(combatants []Combatant) []string {
	sorted := slices.Clone(combatants)
	slices.SortStableFunc(sorted, func(a, b Combatant) int {
		return b.Initiative - a.Initiative
	})
	order := make([]string, len(sorted))
	for i, c := range sorted {
		order[i] = c.ID
	}
	return order
}

func speedOf(c Combatant) int {
	if c.MovementSpeed <= 0 {
		return DefaultMovementSpeed
	}
	return c.MovementSpeed
}

func countID(combatants []Combatant, id string) int {
	n := 0
	for _, c := range combatants {
		if c.ID == id {
			n++
		}
	}
	return n
}
