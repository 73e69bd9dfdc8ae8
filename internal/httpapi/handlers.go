package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/warband-backend/internal/battle"
	"github.com/DoyleJ11/warband-backend/internal/goals"
	"github.com/DoyleJ11/warband-backend/internal/lobby"
	"github.com/DoyleJ11/warband-backend/pkg/types"
)

var errBadRequest = errors.New("bad request")

// Battles is the lifecycle service behind the REST surface.
type Battles interface {
	Create(ctx context.Context, p battle.CreateParams) (*battle.Battle, error)
	Get(ctx context.Context, id int64) (*battle.Battle, error)
	Active(ctx context.Context, campaignID int64) (*battle.Battle, error)
	SetStatus(ctx context.Context, id int64, target battle.Status) (*battle.Battle, error)
	AdvanceRound(ctx context.Context, id int64) (*battle.Battle, error)
	AddParticipant(ctx context.Context, p battle.AddParticipantParams) (*battle.Participant, error)
	UpdatePosition(ctx context.Context, participantID int64, x, y float64) error
	CalculateBaseScores(ctx context.Context, battleID int64) ([]battle.ScoreResult, error)
	SetGoal(ctx context.Context, sel battle.GoalSelection) (*battle.Goal, bool, error)
	LockGoal(ctx context.Context, goalID int64, locked bool) (*battle.Goal, error)
	RecordGoalRoll(ctx context.Context, goalID int64, roll int) (*battle.Goal, error)
	ResolveGoal(ctx context.Context, goalID int64, dc int, success bool, modifier int) (*battle.Goal, error)
	ApplyModifiers(ctx context.Context, battleID int64, round int) ([]battle.Goal, error)
	ApplyTroopCasualties(ctx context.Context, participantID int64, casualties int) (*battle.Participant, error)
	Complete(ctx context.Context, battleID int64) (*battle.Battle, []battle.Participant, error)
	Delete(ctx context.Context, battleID int64) error

	Invite(ctx context.Context, p battle.InviteParams) (*battle.Battle, []battle.Invitation, error)
	BattleInvitations(ctx context.Context, battleID int64) ([]battle.Invitation, error)
	PlayerInvitations(ctx context.Context, playerID, campaignID int64) ([]battle.Invitation, error)
	AcceptInvitation(ctx context.Context, invitationID int64, armyIDs []int64) (*battle.Acceptance, error)
	DeclineInvitation(ctx context.Context, invitationID int64) (*battle.Invitation, *battle.Battle, error)
}

// Publisher fans lifecycle events out to a campaign's connected clients.
type Publisher interface {
	Publish(ctx context.Context, campaignID int64, event string, payload any)
}

type API struct {
	battles Battles
	pub     Publisher
	logger  *zap.Logger
	now     func() time.Time
}

func NewAPI(battles Battles, pub Publisher, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{battles: battles, pub: pub, logger: logger.Named("http"), now: time.Now}
}

func (a *API) stamp() time.Time { return a.now().UTC() }

// publishFor looks up the battle's campaign and publishes there. A failed
// lookup only costs the broadcast, never the request.
func (a *API) publishFor(ctx context.Context, battleID int64, event string, payload any) {
	b, err := a.battles.Get(ctx, battleID)
	if err != nil {
		a.logger.Warn("no campaign for broadcast", zap.Int64("battle_id", battleID), zap.String("event", event), zap.Error(err))
		return
	}
	a.pub.Publish(ctx, b.CampaignID, event, payload)
}

func (a *API) CreateBattle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CampaignID  int64  `json:"campaign_id"`
		Name        string `json:"battle_name"`
		Terrain     string `json:"terrain_description"`
		TotalRounds int    `json:"total_rounds"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	b, err := a.battles.Create(r.Context(), battle.CreateParams{
		CampaignID:  req.CampaignID,
		Name:        req.Name,
		Terrain:     req.Terrain,
		TotalRounds: req.TotalRounds,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.pub.Publish(r.Context(), b.CampaignID, types.EvtBattleCreated, map[string]any{
		"battle":    b,
		"timestamp": a.stamp(),
	})
	writeJSON(w, http.StatusCreated, b)
}

// ActiveBattle answers null when the campaign has no open battle.
func (a *API) ActiveBattle(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := a.idParam(w, r, "campaignID")
	if !ok {
		return
	}
	b, err := a.battles.Active(r.Context(), campaignID)
	if errors.Is(err, battle.ErrNotFound) {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *API) GetBattle(w http.ResponseWriter, r *http.Request) {
	id, ok := a.idParam(w, r, "id")
	if !ok {
		return
	}
	b, err := a.battles.Get(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *API) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := a.idParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	target, valid := battle.ParseStatus(req.Status)
	if !valid {
		a.fail(w, r, fmt.Errorf("%w: unknown status %q", errBadRequest, req.Status))
		return
	}
	b, err := a.battles.SetStatus(r.Context(), id, target)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.pub.Publish(r.Context(), b.CampaignID, types.EvtBattleStatusUpdated, map[string]any{
		"battleId":  b.ID,
		"status":    b.Status,
		"timestamp": a.stamp(),
	})
	writeJSON(w, http.StatusOK, b)
}

func (a *API) AdvanceRound(w http.ResponseWriter, r *http.Request) {
	id, ok := a.idParam(w, r, "id")
	if !ok {
		return
	}
	b, err := a.battles.AdvanceRound(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.pub.Publish(r.Context(), b.CampaignID, types.EvtBattleRoundAdvanced, map[string]any{
		"battleId":  b.ID,
		"round":     b.CurrentRound,
		"timestamp": a.stamp(),
	})
	writeJSON(w, http.StatusOK, b)
}

func (a *API) AddParticipant(w http.ResponseWriter, r *http.Request) {
	id, ok := a.idParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		ArmyID        *int64            `json:"army_id"`
		TeamName      string            `json:"team_name"`
		FactionColor  string            `json:"faction_color"`
		IsTemporary   bool              `json:"is_temporary"`
		TempArmyName  string            `json:"temp_army_name"`
		TempCategory  string            `json:"temp_army_category"`
		TempStats     *battle.ArmyStats `json:"temp_army_stats"`
		PositionX     *float64          `json:"position_x"`
		PositionY     *float64          `json:"position_y"`
		CurrentTroops *int              `json:"current_troops"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	p, err := a.battles.AddParticipant(r.Context(), battle.AddParticipantParams{
		BattleID:      id,
		ArmyID:        req.ArmyID,
		TeamName:      req.TeamName,
		FactionColor:  req.FactionColor,
		IsTemporary:   req.IsTemporary,
		TempArmyName:  req.TempArmyName,
		TempCategory:  req.TempCategory,
		TempStats:     req.TempStats,
		PositionX:     req.PositionX,
		PositionY:     req.PositionY,
		CurrentTroops: req.CurrentTroops,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.publishFor(r.Context(), id, types.EvtParticipantAdded, map[string]any{
		"battleId":    id,
		"participant": p,
		"timestamp":   a.stamp(),
	})
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	participantID, ok := a.idParam(w, r, "participantID")
	if !ok {
		return
	}
	var req struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.battles.UpdatePosition(r.Context(), participantID, req.X, req.Y); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Position updated successfully"})
}

func (a *API) CalculateBaseScores(w http.ResponseWriter, r *http.Request) {
	id, ok := a.idParam(w, r, "id")
	if !ok {
		return
	}
	if _, err := a.battles.CalculateBaseScores(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	b, err := a.battles.Get(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.pub.Publish(r.Context(), b.CampaignID, types.EvtBattleScoresCalculated, map[string]any{
		"battleId":     id,
		"participants": b.Participants,
		"timestamp":    a.stamp(),
	})
	writeJSON(w, http.StatusOK, b)
}

func (a *API) SetGoal(w http.ResponseWriter, r *http.Request) {
	id, ok := a.idParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		RoundNumber         int    `json:"round_number"`
		ParticipantID       int64  `json:"participant_id"`
		GoalKey             string `json:"goal_key"`
		GoalName            string `json:"goal_name"`
		TargetParticipantID *int64 `json:"target_participant_id"`
		TestType            string `json:"test_type"`
		CharacterModifier   int    `json:"character_modifier"`
		ArmyStatModifier    int    `json:"army_stat_modifier"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	g, created, err := a.battles.SetGoal(r.Context(), battle.GoalSelection{
		BattleID:            id,
		RoundNumber:         req.RoundNumber,
		ParticipantID:       req.ParticipantID,
		GoalKey:             req.GoalKey,
		GoalName:            req.GoalName,
		TargetParticipantID: req.TargetParticipantID,
		TestType:            req.TestType,
		CharacterModifier:   req.CharacterModifier,
		ArmyStatModifier:    req.ArmyStatModifier,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.publishFor(r.Context(), id, types.EvtBattleGoalSelected, lobby.GoalSelectedPayload{
		BattleID: id,
		Goal:     g,
		Created:  created,
	})
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, g)
}

func (a *API) LockGoal(w http.ResponseWriter, r *http.Request) {
	goalID, ok := a.idParam(w, r, "goalID")
	if !ok {
		return
	}
	var req struct {
		Locked bool `json:"locked"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	g, err := a.battles.LockGoal(r.Context(), goalID, req.Locked)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.publishFor(r.Context(), g.BattleID, types.EvtBattleGoalLocked, map[string]any{
		"battleId":  g.BattleID,
		"goalId":    g.ID,
		"goal":      g,
		"locked":    req.Locked,
		"timestamp": a.stamp(),
	})
	writeJSON(w, http.StatusOK, g)
}

func (a *API) RollGoal(w http.ResponseWriter, r *http.Request) {
	goalID, ok := a.idParam(w, r, "goalID")
	if !ok {
		return
	}
	var req struct {
		DiceRoll int `json:"dice_roll"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	g, err := a.battles.RecordGoalRoll(r.Context(), goalID, req.DiceRoll)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.publishFor(r.Context(), g.BattleID, types.EvtBattleGoalRolled, map[string]any{
		"battleId":  g.BattleID,
		"goalId":    g.ID,
		"roll":      req.DiceRoll,
		"timestamp": a.stamp(),
	})
	writeJSON(w, http.StatusOK, g)
}

func (a *API) ResolveGoal(w http.ResponseWriter, r *http.Request) {
	goalID, ok := a.idParam(w, r, "goalID")
	if !ok {
		return
	}
	var req struct {
		DCRequired      int  `json:"dc_required"`
		Success         bool `json:"success"`
		ModifierApplied int  `json:"modifier_applied"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	g, err := a.battles.ResolveGoal(r.Context(), goalID, req.DCRequired, req.Success, req.ModifierApplied)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.publishFor(r.Context(), g.BattleID, types.EvtBattleGoalResolved, map[string]any{
		"battleId":  g.BattleID,
		"goalId":    g.ID,
		"success":   req.Success,
		"timestamp": a.stamp(),
	})
	writeJSON(w, http.StatusOK, g)
}

func (a *API) ApplyModifiers(w http.ResponseWriter, r *http.Request) {
	id, ok := a.idParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		RoundNumber int `json:"round_number"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if _, err := a.battles.ApplyModifiers(r.Context(), id, req.RoundNumber); err != nil {
		a.fail(w, r, err)
		return
	}
	b, err := a.battles.Get(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.pub.Publish(r.Context(), b.CampaignID, types.EvtBattleModifiersApplied, map[string]any{
		"battleId":     id,
		"round":        req.RoundNumber,
		"participants": b.Participants,
		"goals":        b.CurrentGoals,
		"timestamp":    a.stamp(),
	})
	writeJSON(w, http.StatusOK, b)
}

func (a *API) UpdateTroops(w http.ResponseWriter, r *http.Request) {
	participantID, ok := a.idParam(w, r, "participantID")
	if !ok {
		return
	}
	var req struct {
		Casualties int `json:"casualties"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	p, err := a.battles.ApplyTroopCasualties(r.Context(), participantID, req.Casualties)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.publishFor(r.Context(), p.BattleID, types.EvtTroopsUpdated, map[string]any{
		"battleId":      p.BattleID,
		"participantId": p.ID,
		"casualties":    req.Casualties,
		"currentTroops": p.CurrentTroops,
		"eliminated":    !p.Active(),
		"timestamp":     a.stamp(),
	})
	writeJSON(w, http.StatusOK, p)
}

func (a *API) CompleteBattle(w http.ResponseWriter, r *http.Request) {
	id, ok := a.idParam(w, r, "id")
	if !ok {
		return
	}
	b, results, err := a.battles.Complete(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.pub.Publish(r.Context(), b.CampaignID, types.EvtBattleCompleted, map[string]any{
		"battleId":   b.ID,
		"battleName": b.Name,
		"results":    results,
		"timestamp":  a.stamp(),
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Battle completed", "results": results})
}

func (a *API) DeleteBattle(w http.ResponseWriter, r *http.Request) {
	id, ok := a.idParam(w, r, "id")
	if !ok {
		return
	}
	// Resolve the campaign first; afterwards the battle is gone.
	b, err := a.battles.Get(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.battles.Delete(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	a.pub.Publish(r.Context(), b.CampaignID, types.EvtBattleDeleted, map[string]any{
		"battleId":  id,
		"timestamp": a.stamp(),
	})
	w.WriteHeader(http.StatusNoContent)
}

// InvitePlayers broadcasts to the whole campaign; each client keeps the
// invitations addressed to its own player.
func (a *API) InvitePlayers(w http.ResponseWriter, r *http.Request) {
	id, ok := a.idParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		PlayerIDs    []int64 `json:"player_ids"`
		TeamName     string  `json:"team_name"`
		FactionColor string  `json:"faction_color"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	b, invs, err := a.battles.Invite(r.Context(), battle.InviteParams{
		BattleID:     id,
		PlayerIDs:    req.PlayerIDs,
		TeamName:     req.TeamName,
		FactionColor: req.FactionColor,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if len(invs) > 0 {
		a.pub.Publish(r.Context(), b.CampaignID, types.EvtBattleInvitationSent, map[string]any{
			"battleId":    id,
			"invitations": invs,
			"timestamp":   a.stamp(),
		})
	}
	writeJSON(w, http.StatusCreated, invs)
}

func (a *API) BattleInvitations(w http.ResponseWriter, r *http.Request) {
	id, ok := a.idParam(w, r, "id")
	if !ok {
		return
	}
	invs, err := a.battles.BattleInvitations(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invs)
}

func (a *API) PlayerInvitations(w http.ResponseWriter, r *http.Request) {
	playerID, ok := a.idParam(w, r, "playerID")
	if !ok {
		return
	}
	campaignID, ok := a.idParam(w, r, "campaignID")
	if !ok {
		return
	}
	invs, err := a.battles.PlayerInvitations(r.Context(), playerID, campaignID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invs)
}

func (a *API) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	invitationID, ok := a.idParam(w, r, "invitationID")
	if !ok {
		return
	}
	var req struct {
		ArmyIDs []int64 `json:"army_ids"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	acc, err := a.battles.AcceptInvitation(r.Context(), invitationID, req.ArmyIDs)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.pub.Publish(r.Context(), acc.CampaignID, types.EvtBattleInvitationAccepted, map[string]any{
		"battleId":     acc.Invitation.BattleID,
		"playerId":     acc.Invitation.PlayerID,
		"participants": acc.Participants,
		"timestamp":    a.stamp(),
	})
	writeJSON(w, http.StatusOK, acc)
}

func (a *API) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	invitationID, ok := a.idParam(w, r, "invitationID")
	if !ok {
		return
	}
	inv, b, err := a.battles.DeclineInvitation(r.Context(), invitationID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.pub.Publish(r.Context(), b.CampaignID, types.EvtBattleInvitationDeclined, map[string]any{
		"battleId":  inv.BattleID,
		"playerId":  inv.PlayerID,
		"timestamp": a.stamp(),
	})
	writeJSON(w, http.StatusOK, inv)
}

// ListGoals returns the catalog, filtered to a category when one is given.
func ListGoals(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		writeJSON(w, http.StatusOK, goals.All())
		return
	}
	writeJSON(w, http.StatusOK, goals.ForCategory(category))
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (a *API) idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		a.fail(w, r, fmt.Errorf("%w: invalid %s", errBadRequest, name))
		return 0, false
	}
	return id, true
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.fail(w, r, fmt.Errorf("%w: malformed json body", errBadRequest))
		return false
	}
	return true
}

// fail maps err to a status. Server-side failures are logged and answered
// with a generic message.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, battle.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, battle.ErrIllegalTransition),
		errors.Is(err, battle.ErrConflict),
		errors.Is(err, battle.ErrRoundLimit):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, battle.ErrInvalidArgument),
		errors.Is(err, battle.ErrGoalNotEligible):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
