// Package combat coordinates a campaign's skirmish: who is in it, in what
// order they act and how far each may still move.
package combat

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrNotFound = errors.New("not found")

// Character is the read-only slice of a player character combat needs.
type Character struct {
	ID            int64
	Name          string
	Class         string
	Level         int
	Dexterity     int
	MovementSpeed int
}

// Beast is a character's bonded companion.
type Beast struct {
	CharacterID int64
	Type        string
	Name        string
	Speed       int
}

type Monster struct {
	ID         int64
	Name       string
	LimbHealth json.RawMessage
}

type MonsterInstance struct {
	ID             int64
	MonsterID      int64
	CampaignID     int64
	InstanceNumber int
	Initiative     int
}

// Characters is the character data collaborator.
type Characters interface {
	GetCharacter(ctx context.Context, id int64) (*Character, error)
	// GetBeast returns ErrNotFound when the character has no companion.
	GetBeast(ctx context.Context, characterID int64) (*Beast, error)
	SetCombatActive(ctx context.Context, characterID int64, active bool) error
}

// Monsters is the monster data collaborator.
type Monsters interface {
	GetMonster(ctx context.Context, id int64) (*Monster, error)
	// SpawnInstance allocates the next instance number for the monster within
	// the campaign and stores a copy of its limb health.
	SpawnInstance(ctx context.Context, m *Monster, campaignID int64, initiative int) (*MonsterInstance, error)
	RemoveAllFromCombat(ctx context.Context, campaignID int64) error
}

// PrimalBondClass is the class that fights alongside a beast companion.
const PrimalBondClass = "Primal Bond"

// companionLevels is the level at which each beast joins its owner in combat.
var companionLevels = map[string]int{
	"Cheetah":   3,
	"Leopard":   3,
	"AlphaWolf": 6,
	"OmegaWolf": 6,
	"Elephant":  10,
	"Owlbear":   10,
}

// CompanionFights reports whether a beast of the given type fights next to an
// owner of the given level.
func CompanionFights(beastType string, level int) bool {
	need, ok := companionLevels[beastType]
	return ok && level >= need
}

// AbilityModifier is the usual floor((score-10)/2).
func AbilityModifier(score int) int {
	d := score - 10
	if d < 0 {
		return (d - 1) / 2
	}
	return d / 2
}
