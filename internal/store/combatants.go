package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DoyleJ11/warband-backend/internal/combat"
	"github.com/DoyleJ11/warband-backend/internal/engine"
)

const defaultDexterity = 10

var (
	_ combat.Characters = (*Store)(nil)
	_ combat.Monsters   = (*Store)(nil)
)

func combatErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return combat.ErrNotFound
	}
	return err
}

func (s *Store) GetCharacter(ctx context.Context, id int64) (*combat.Character, error) {
	var row characterRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, combatErr(err)
	}
	dex, ok := row.Abilities.Val["dex"]
	if !ok {
		dex = defaultDexterity
	}
	speed := engine.DefaultMovementSpeed
	if row.MovementSpeed != nil {
		speed = *row.MovementSpeed
	}
	return &combat.Character{
		ID:            row.ID,
		Name:          row.Name,
		Class:         row.Class,
		Level:         row.Level,
		Dexterity:     dex,
		MovementSpeed: speed,
	}, nil
}

func (s *Store) GetBeast(ctx context.Context, characterID int64) (*combat.Beast, error) {
	var row beastRow
	if err := s.db.WithContext(ctx).Where("character_id = ?", characterID).First(&row).Error; err != nil {
		return nil, combatErr(err)
	}
	return &combat.Beast{
		CharacterID: row.CharacterID,
		Type:        row.BeastType,
		Name:        row.BeastName,
		Speed:       deref(row.Speed),
	}, nil
}

func (s *Store) SetCombatActive(ctx context.Context, characterID int64, active bool) error {
	res := s.db.WithContext(ctx).Model(&characterRow{}).
		Where("id = ?", characterID).
		Update("combat_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return combat.ErrNotFound
	}
	return nil
}

func (s *Store) GetMonster(ctx context.Context, id int64) (*combat.Monster, error) {
	var row monsterRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, combatErr(err)
	}
	return &combat.Monster{ID: row.ID, Name: row.Name, LimbHealth: row.LimbHealth.Val}, nil
}

// SpawnInstance numbers instances per (campaign, monster) starting at 1. The
// template row is locked so concurrent spawns of the same monster serialize.
func (s *Store) SpawnInstance(ctx context.Context, m *combat.Monster, campaignID int64, initiative int) (*combat.MonsterInstance, error) {
	var row monsterInstanceRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tmpl monsterRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&tmpl, m.ID).Error; err != nil {
			return combatErr(err)
		}

		var next int
		err := tx.Model(&monsterInstanceRow{}).
			Select("COALESCE(MAX(instance_number), 0) + 1").
			Where("monster_id = ? AND campaign_id = ?", m.ID, campaignID).
			Scan(&next).Error
		if err != nil {
			return err
		}

		row = monsterInstanceRow{
			MonsterID:         m.ID,
			CampaignID:        campaignID,
			InstanceNumber:    next,
			CurrentLimbHealth: jsonColumn[json.RawMessage]{Val: m.LimbHealth},
			InCombat:          true,
			Initiative:        initiative,
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, fmt.Errorf("spawn instance of monster %d: %w", m.ID, err)
	}
	s.logger.Debug("monster instance created",
		zap.Int64("campaign_id", campaignID),
		zap.Int64("instance_id", row.ID),
		zap.Int("instance_number", row.InstanceNumber))

	return &combat.MonsterInstance{
		ID:             row.ID,
		MonsterID:      row.MonsterID,
		CampaignID:     row.CampaignID,
		InstanceNumber: row.InstanceNumber,
		Initiative:     row.Initiative,
	}, nil
}

func (s *Store) RemoveAllFromCombat(ctx context.Context, campaignID int64) error {
	return s.db.WithContext(ctx).Model(&monsterInstanceRow{}).
		Where("campaign_id = ? AND in_combat", campaignID).
		Update("in_combat", false).Error
}
