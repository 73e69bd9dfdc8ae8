package types

import "encoding/json"

// Client -> Server
//
// Every message is {event, requestId, payload}. requestId is echoed back on
// the ack or error frame that answers it.
//
// inviteToCombat:
//   characterId: number      (monster template id when isMonster)
//   targetPlayerId: number
//   isMonster: boolean
//
// acceptCombatInvite:
//   characterId: number
//   playerId: number
//
// nextTurn: {}
// resetCombat: {}
//
// characterBattleMove:
//   characterId: number
//   characterName: string
//   x, y: number
//   remainingMovement: number
//
// battlefieldParticipantMove:
//   battleId: number
//   participantId: number
//   x, y: number
//   remainingMovement?: number
//
// battlefieldMovementReset:
//   battleId: number
//   movementState: { [participantId]: number }
//
// submitGoal:
//   battleId, roundNumber, participantId: number
//   goalKey?: string
//   goalName: string
//   targetParticipantId?: number
//   testType: string
//   characterModifier, armyStatModifier: number
//
// rollGoal:
//   goalId, participantId: number
//   diceRoll, totalModifier: number

type ClientMessage struct {
	Event     string          `json:"event"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

const (
	CmdInviteToCombat             = "inviteToCombat"
	CmdAcceptCombatInvite         = "acceptCombatInvite"
	CmdNextTurn                   = "nextTurn"
	CmdResetCombat                = "resetCombat"
	CmdCharacterBattleMove        = "characterBattleMove"
	CmdBattlefieldParticipantMove = "battlefieldParticipantMove"
	CmdSubmitGoal                 = "submitGoal"
	CmdRollGoal                   = "rollGoal"
	CmdBattlefieldMovementReset   = "battlefieldMovementReset"
)

type InviteToCombat struct {
	CharacterID    int64 `json:"characterId"`
	TargetPlayerID int64 `json:"targetPlayerId"`
	IsMonster      bool  `json:"isMonster"`
}

type AcceptCombatInvite struct {
	CharacterID int64 `json:"characterId"`
	PlayerID    int64 `json:"playerId"`
}

type CharacterBattleMove struct {
	CharacterID       int64   `json:"characterId"`
	CharacterName     string  `json:"characterName"`
	X                 float64 `json:"x"`
	Y                 float64 `json:"y"`
	RemainingMovement int     `json:"remainingMovement"`
}

type BattlefieldParticipantMove struct {
	BattleID          int64   `json:"battleId"`
	ParticipantID     int64   `json:"participantId"`
	X                 float64 `json:"x"`
	Y                 float64 `json:"y"`
	RemainingMovement *int    `json:"remainingMovement,omitempty"`
}

type BattlefieldMovementReset struct {
	BattleID      int64          `json:"battleId"`
	MovementState map[string]int `json:"movementState"`
}

type SubmitGoal struct {
	BattleID            int64  `json:"battleId"`
	RoundNumber         int    `json:"roundNumber"`
	ParticipantID       int64  `json:"participantId"`
	GoalKey             string `json:"goalKey,omitempty"`
	GoalName            string `json:"goalName"`
	TargetParticipantID *int64 `json:"targetParticipantId,omitempty"`
	TestType            string `json:"testType"`
	CharacterModifier   int    `json:"characterModifier"`
	ArmyStatModifier    int    `json:"armyStatModifier"`
}

type RollGoal struct {
	GoalID        int64 `json:"goalId"`
	ParticipantID int64 `json:"participantId"`
	DiceRoll      int   `json:"diceRoll"`
	TotalModifier int   `json:"totalModifier"`
}
