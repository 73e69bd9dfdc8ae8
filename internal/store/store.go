package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DoyleJ11/warband-backend/internal/battle"
)

// Store persists battles, participants and goals in postgres.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ battle.Store = (*Store)(nil)

// Open connects to postgres using the given DSN.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// AutoMigrate creates the battle tables and the collaborator tables they join
// against. Intended for local development.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&armyRow{},
		&battleRow{},
		&participantRow{},
		&goalRow{},
		&invitationRow{},
		&historyRow{},
		&characterRow{},
		&beastRow{},
		&monsterRow{},
		&monsterInstanceRow{},
	)
}

func New(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger.Named("store")}
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// translate maps driver errors onto the battle package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return battle.ErrNotFound
	case isDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", battle.ErrConflict, err)
	default:
		return err
	}
}

func affected(res *gorm.DB) error {
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return battle.ErrNotFound
	}
	return nil
}

// Battles

func (s *Store) CreateBattle(ctx context.Context, b *battle.Battle) error {
	row := battleRow{
		CampaignID:         b.CampaignID,
		BattleName:         b.Name,
		TerrainDescription: b.Terrain,
		Status:             string(b.Status),
		CurrentRound:       b.CurrentRound,
		TotalRounds:        b.TotalRounds,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translate(err)
	}
	*b = *battleFromRow(row)
	return nil
}

func (s *Store) GetBattle(ctx context.Context, id int64) (*battle.Battle, error) {
	var row battleRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, translate(err)
	}
	return battleFromRow(row), nil
}

func (s *Store) LatestOpenBattle(ctx context.Context, campaignID int64) (*battle.Battle, error) {
	var row battleRow
	err := s.db.WithContext(ctx).
		Where("campaign_id = ? AND status NOT IN ?", campaignID,
			[]string{string(battle.StatusCompleted), string(battle.StatusCancelled)}).
		Order("created_at DESC, id DESC").
		First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return battleFromRow(row), nil
}

func (s *Store) UpdateStatus(ctx context.Context, id int64, status battle.Status) (*battle.Battle, error) {
	res := s.db.WithContext(ctx).Model(&battleRow{}).Where("id = ?", id).Update("status", string(status))
	if err := affected(res); err != nil {
		return nil, err
	}
	return s.GetBattle(ctx, id)
}

func (s *Store) IncrementRound(ctx context.Context, id int64) (*battle.Battle, error) {
	res := s.db.WithContext(ctx).Model(&battleRow{}).Where("id = ?", id).
		Update("current_round", gorm.Expr("current_round + 1"))
	if err := affected(res); err != nil {
		return nil, err
	}
	return s.GetBattle(ctx, id)
}

func (s *Store) ClearGoalSelections(ctx context.Context, battleID int64) error {
	return translate(s.db.WithContext(ctx).Model(&participantRow{}).
		Where("battle_id = ?", battleID).
		Update("has_selected_goal", false).Error)
}

// DeleteBattle removes the battle with its goals, invitations and participants.
func (s *Store) DeleteBattle(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("battle_id = ?", id).Delete(&goalRow{}).Error; err != nil {
			return translate(err)
		}
		if err := tx.Where("battle_id = ?", id).Delete(&invitationRow{}).Error; err != nil {
			return translate(err)
		}
		if err := tx.Where("battle_id = ?", id).Delete(&participantRow{}).Error; err != nil {
			return translate(err)
		}
		return affected(tx.Delete(&battleRow{}, id))
	})
}

// Participants

func (s *Store) AddParticipant(ctx context.Context, p *battle.Participant) error {
	row := participantRow{
		BattleID:         p.BattleID,
		ArmyID:           p.ArmyID,
		TeamName:         p.TeamName,
		FactionColor:     p.FactionColor,
		IsTemporary:      p.IsTemporary,
		TempArmyName:     p.TempArmyName,
		TempArmyCategory: p.TempCategory,
		PositionX:        p.PositionX,
		PositionY:        p.PositionY,
		CurrentTroops:    p.CurrentTroops,
		BaseScore:        p.BaseScore,
		CurrentScore:     p.CurrentScore,
	}
	if p.IsTemporary {
		row.TempArmyStats = &jsonColumn[battle.ArmyStats]{Val: p.Stats}
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translate(err)
	}
	p.ID = row.ID
	return nil
}

func (s *Store) participants(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("battle_participants AS bp").
		Select(`bp.*,
			a.name AS army_name,
			a.category AS army_category,
			a.numbers AS army_numbers,
			a.equipment AS army_equipment,
			a.discipline AS army_discipline,
			a.morale AS army_morale,
			a.command AS army_command,
			a.logistics AS army_logistics`).
		Joins("LEFT JOIN armies a ON a.id = bp.army_id")
}

func (s *Store) GetParticipant(ctx context.Context, id int64) (*battle.Participant, error) {
	var views []participantView
	if err := s.participants(ctx).Where("bp.id = ?", id).Limit(1).Scan(&views).Error; err != nil {
		return nil, translate(err)
	}
	if len(views) == 0 {
		return nil, battle.ErrNotFound
	}
	p := participantFromView(views[0])
	return &p, nil
}

func (s *Store) ListParticipants(ctx context.Context, battleID int64) ([]battle.Participant, error) {
	var views []participantView
	err := s.participants(ctx).
		Where("bp.battle_id = ?", battleID).
		Order("bp.team_name, bp.id").
		Scan(&views).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make([]battle.Participant, 0, len(views))
	for _, v := range views {
		out = append(out, participantFromView(v))
	}
	return out, nil
}

func (s *Store) SetScores(ctx context.Context, participantID int64, base, current int) error {
	return affected(s.db.WithContext(ctx).Model(&participantRow{}).
		Where("id = ?", participantID).
		Updates(map[string]any{"base_score": base, "current_score": current}))
}

func (s *Store) AddScore(ctx context.Context, participantID int64, delta int) error {
	return affected(s.db.WithContext(ctx).Model(&participantRow{}).
		Where("id = ?", participantID).
		Update("current_score", gorm.Expr("current_score + ?", delta)))
}

func (s *Store) SetTroops(ctx context.Context, participantID int64, troops int, zeroScore bool) error {
	updates := map[string]any{"current_troops": troops}
	if zeroScore {
		updates["current_score"] = 0
	}
	return affected(s.db.WithContext(ctx).Model(&participantRow{}).
		Where("id = ?", participantID).
		Updates(updates))
}

func (s *Store) SetPosition(ctx context.Context, participantID int64, x, y float64) error {
	return affected(s.db.WithContext(ctx).Model(&participantRow{}).
		Where("id = ?", participantID).
		Updates(map[string]any{"position_x": x, "position_y": y}))
}

func (s *Store) MarkGoalSelected(ctx context.Context, participantID int64) error {
	return affected(s.db.WithContext(ctx).Model(&participantRow{}).
		Where("id = ?", participantID).
		Update("has_selected_goal", true))
}

// Goals

func (s *Store) FindGoal(ctx context.Context, battleID int64, round int, participantID int64) (*battle.Goal, error) {
	var row goalRow
	err := s.db.WithContext(ctx).
		Where("battle_id = ? AND round_number = ? AND participant_id = ?", battleID, round, participantID).
		First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	g := goalFromRow(row)
	return &g, nil
}

func (s *Store) CreateGoal(ctx context.Context, g *battle.Goal) error {
	row := goalRow{
		BattleID:            g.BattleID,
		RoundNumber:         g.RoundNumber,
		ParticipantID:       g.ParticipantID,
		TeamName:            g.TeamName,
		GoalKey:             g.GoalKey,
		GoalName:            g.GoalName,
		TargetParticipantID: g.TargetParticipantID,
		TestType:            g.TestType,
		CharacterModifier:   g.CharacterModifier,
		ArmyStatModifier:    g.ArmyStatModifier,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translate(err)
	}
	*g = goalFromRow(row)
	return nil
}

func (s *Store) UpdateGoalSelection(ctx context.Context, g *battle.Goal) error {
	return affected(s.db.WithContext(ctx).Model(&goalRow{}).
		Where("id = ?", g.ID).
		Updates(map[string]any{
			"goal_key":              g.GoalKey,
			"goal_name":             g.GoalName,
			"target_participant_id": g.TargetParticipantID,
			"test_type":             g.TestType,
			"character_modifier":    g.CharacterModifier,
			"army_stat_modifier":    g.ArmyStatModifier,
		}))
}

func (s *Store) GetGoal(ctx context.Context, id int64) (*battle.Goal, error) {
	var row goalRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, translate(err)
	}
	g := goalFromRow(row)
	return &g, nil
}

func (s *Store) ListGoals(ctx context.Context, battleID int64, round int) ([]battle.Goal, error) {
	var rows []goalRow
	err := s.db.WithContext(ctx).
		Where("battle_id = ? AND round_number = ?", battleID, round).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make([]battle.Goal, 0, len(rows))
	for _, r := range rows {
		out = append(out, goalFromRow(r))
	}
	return out, nil
}

// ListBattleGoals returns the goals of every round, oldest round first.
func (s *Store) ListBattleGoals(ctx context.Context, battleID int64) ([]battle.Goal, error) {
	var rows []goalRow
	err := s.db.WithContext(ctx).
		Where("battle_id = ?", battleID).
		Order("round_number, id").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make([]battle.Goal, 0, len(rows))
	for _, r := range rows {
		out = append(out, goalFromRow(r))
	}
	return out, nil
}

func (s *Store) updateGoal(ctx context.Context, id int64, updates map[string]any) (*battle.Goal, error) {
	res := s.db.WithContext(ctx).Model(&goalRow{}).Where("id = ?", id).Updates(updates)
	if err := affected(res); err != nil {
		return nil, err
	}
	return s.GetGoal(ctx, id)
}

func (s *Store) SetGoalLock(ctx context.Context, id int64, locked bool) (*battle.Goal, error) {
	return s.updateGoal(ctx, id, map[string]any{"locked_in": locked})
}

func (s *Store) SetGoalRoll(ctx context.Context, id int64, roll int) (*battle.Goal, error) {
	return s.updateGoal(ctx, id, map[string]any{"dice_roll": roll})
}

func (s *Store) SetGoalResolution(ctx context.Context, id int64, dc int, success bool, modifier int) (*battle.Goal, error) {
	return s.updateGoal(ctx, id, map[string]any{
		"dc_required":       dc,
		"success":           success,
		"modifier_applied":  modifier,
		"executor_credited": true,
	})
}

// Invitations

func (s *Store) CreateInvitation(ctx context.Context, inv *battle.Invitation) (bool, error) {
	row := invitationRow{
		BattleID:     inv.BattleID,
		PlayerID:     inv.PlayerID,
		TeamName:     inv.TeamName,
		FactionColor: inv.FactionColor,
		Status:       string(inv.Status),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	*inv = invitationFromRow(row)
	return true, nil
}

func (s *Store) getInvitation(ctx context.Context, id int64) (*battle.Invitation, error) {
	var row invitationRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, translate(err)
	}
	inv := invitationFromRow(row)
	return &inv, nil
}

func (s *Store) ListBattleInvitations(ctx context.Context, battleID int64) ([]battle.Invitation, error) {
	var rows []invitationRow
	err := s.db.WithContext(ctx).
		Where("battle_id = ?", battleID).
		Order("invited_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make([]battle.Invitation, 0, len(rows))
	for _, r := range rows {
		out = append(out, invitationFromRow(r))
	}
	return out, nil
}

func (s *Store) ListPendingInvitations(ctx context.Context, playerID, campaignID int64) ([]battle.Invitation, error) {
	var views []invitationView
	err := s.db.WithContext(ctx).
		Table("battle_invitations AS bi").
		Select(`bi.*,
			b.battle_name,
			b.terrain_description,
			b.status AS battle_status,
			b.current_round`).
		Joins("JOIN battles b ON b.id = bi.battle_id").
		Where("bi.player_id = ? AND b.campaign_id = ? AND bi.status = ?",
			playerID, campaignID, string(battle.InvitationPending)).
		Order("bi.invited_at DESC, bi.id DESC").
		Scan(&views).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make([]battle.Invitation, 0, len(views))
	for _, v := range views {
		out = append(out, invitationFromView(v))
	}
	return out, nil
}

// RespondInvitation only moves pending rows, so two answers cannot race.
func (s *Store) RespondInvitation(ctx context.Context, id int64, status battle.InvitationStatus) (*battle.Invitation, error) {
	res := s.db.WithContext(ctx).Model(&invitationRow{}).
		Where("id = ? AND status = ?", id, string(battle.InvitationPending)).
		Updates(map[string]any{"status": string(status), "responded_at": time.Now()})
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.getInvitation(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: invitation %d already answered", battle.ErrConflict, id)
	}
	return s.getInvitation(ctx, id)
}

// History

func (s *Store) AddArmyHistory(ctx context.Context, h *battle.ArmyHistory) error {
	row := historyToRow(h)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translate(err)
	}
	h.ID = row.ID
	h.BattleDate = row.BattleDate
	return nil
}
