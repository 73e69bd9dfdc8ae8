package types

import (
	"time"

	"github.com/DoyleJ11/warband-backend/internal/engine"
)

// Server -> Client
//
// Frames share the client envelope shape; payload depends on event.
//
// battleCombatSync / combatantsUpdated:
//   combatants: Combatant[]   (initiative order)
//   initiativeOrder: string[]
//   currentTurnIndex: number  (-1 before the first turn)
//
// battleMovementSync:
//   movementState: { [combatantId]: number }
//
// turnAdvanced:
//   currentCharacterId, resetMovementFor: string
//   initiativeOrder: string[]
//   currentTurnIndex, movementSpeed: number
//
// ack:   { event }
// error: { code, message }

type Frame struct {
	Event     string `json:"event"`
	RequestID string `json:"requestId,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

const (
	EvtAck   = "ack"
	EvtError = "error"

	EvtBattleCombatSync   = "battleCombatSync"
	EvtBattleMovementSync = "battleMovementSync"

	EvtCombatInvite                = "combatInvite"
	EvtCombatantsUpdated           = "combatantsUpdated"
	EvtTurnAdvanced                = "turnAdvanced"
	EvtCombatReset                 = "combatReset"
	EvtCharacterBattleMoved        = "characterBattleMoved"
	EvtBattlefieldParticipantMoved = "battlefieldParticipantMoved"
	EvtBattlefieldMovementReset    = "battlefieldMovementReset"

	EvtBattleCreated          = "battleCreated"
	EvtBattleStatusUpdated    = "battleStatusUpdated"
	EvtBattleRoundAdvanced    = "battleRoundAdvanced"
	EvtParticipantAdded       = "battleParticipantAdded"
	EvtBattleScoresCalculated = "battleScoresCalculated"
	EvtBattleGoalSelected     = "battleGoalSelected"
	EvtBattleGoalLocked       = "battleGoalLocked"
	EvtBattleGoalRolled       = "battleGoalRolled"
	EvtBattleGoalResolved     = "battleGoalResolved"
	EvtBattleModifiersApplied = "battleModifiersApplied"
	EvtTroopsUpdated          = "troopsUpdated"
	EvtBattleCompleted        = "battleCompleted"
	EvtBattleDeleted          = "battleDeleted"

	EvtBattleInvitationSent     = "battleInvitationSent"
	EvtBattleInvitationAccepted = "battleInvitationAccepted"
	EvtBattleInvitationDeclined = "battleInvitationDeclined"
)

type AckPayload struct {
	Event string `json:"event"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CombatPayload struct {
	Combatants       []engine.Combatant `json:"combatants"`
	InitiativeOrder  []string           `json:"initiativeOrder"`
	CurrentTurnIndex int                `json:"currentTurnIndex"`
	Timestamp        time.Time          `json:"timestamp"`
}

// NewCombatPayload lists combatants in initiative order.
func NewCombatPayload(c *engine.Combat, now time.Time) CombatPayload {
	return CombatPayload{
		Combatants:       c.Sorted(),
		InitiativeOrder:  c.InitiativeOrder,
		CurrentTurnIndex: c.CurrentTurnIndex,
		Timestamp:        now,
	}
}

type MovementPayload struct {
	MovementState map[string]int `json:"movementState"`
}

type CombatInvitePayload struct {
	CampaignID     int64     `json:"campaignId"`
	CharacterID    int64     `json:"characterId"`
	TargetPlayerID int64     `json:"targetPlayerId"`
	Timestamp      time.Time `json:"timestamp"`
}

type TurnAdvancedPayload struct {
	CurrentCharacterID string    `json:"currentCharacterId"`
	InitiativeOrder    []string  `json:"initiativeOrder"`
	CurrentTurnIndex   int       `json:"currentTurnIndex"`
	ResetMovementFor   string    `json:"resetMovementFor"`
	MovementSpeed      int       `json:"movementSpeed"`
	Timestamp          time.Time `json:"timestamp"`
}

type TimestampPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

type CharacterMovedPayload struct {
	CharacterBattleMove
	Timestamp time.Time `json:"timestamp"`
}

type ParticipantMovedPayload struct {
	BattlefieldParticipantMove
	Timestamp time.Time `json:"timestamp"`
}

type MovementResetPayload struct {
	BattlefieldMovementReset
	Timestamp time.Time `json:"timestamp"`
}

type GoalRolledPayload struct {
	RollGoal
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}
