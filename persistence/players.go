package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/wfunc/thiefhunt/models"
)

// CreatePlayer returns ErrDuplicateName when the display name or session is
// already present in the room.
func (s *GormStore) CreatePlayer(ctx context.Context, player *models.Player) error {
	return translate(s.with(ctx).Create(player).Error)
}

func (s *GormStore) GetPlayerBySession(ctx context.Context, roomID uint, sessionID string) (*models.Player, error) {
	var player models.Player
	err := s.with(ctx).Where("room_id = ? AND session_id = ?", roomID, sessionID).First(&player).Error
	if err != nil {
		return nil, translate(err)
	}
	return &player, nil
}

func (s *GormStore) GetPlayerByName(ctx context.Context, roomID uint, name string) (*models.Player, error) {
	var player models.Player
	err := s.with(ctx).Where("room_id = ? AND name = ?", roomID, name).First(&player).Error
	if err != nil {
		return nil, translate(err)
	}
	return &player, nil
}

// ListPlayers returns the roster in join order.
func (s *GormStore) ListPlayers(ctx context.Context, roomID uint) ([]models.Player, error) {
	var players []models.Player
	if err := s.with(ctx).Where("room_id = ?", roomID).Order("id").Find(&players).Error; err != nil {
		return nil, err
	}
	return players, nil
}

func (s *GormStore) CountPlayers(ctx context.Context, roomID uint) (int64, error) {
	var count int64
	err := s.with(ctx).Model(&models.Player{}).Where("room_id = ?", roomID).Count(&count).Error
	return count, err
}

func (s *GormStore) UpdatePlayerAvatar(ctx context.Context, playerID uint, avatar string) error {
	result := s.with(ctx).Model(&models.Player{}).Where("id = ?", playerID).Update("avatar", avatar)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *GormStore) DeletePlayer(ctx context.Context, playerID uint) error {
	return s.with(ctx).Delete(&models.Player{}, playerID).Error
}

// AddPlayerScore 原子更新玩家积分
func (s *GormStore) AddPlayerScore(ctx context.Context, playerID uint, delta int) error {
	return s.with(ctx).Model(&models.Player{}).
		Where("id = ?", playerID).
		Update("total_score", gorm.Expr("total_score + ?", delta)).Error
}
