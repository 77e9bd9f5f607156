package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/wfunc/thiefhunt/models"
)

func (s *GormStore) CreateRoom(ctx context.Context, room *models.Room) error {
	return translate(s.with(ctx).Create(room).Error)
}

func (s *GormStore) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	if err := s.with(ctx).Where("code = ?", code).First(&room).Error; err != nil {
		return nil, translate(err)
	}
	return &room, nil
}

func (s *GormStore) GetRoomByID(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	if err := s.with(ctx).First(&room, id).Error; err != nil {
		return nil, translate(err)
	}
	return &room, nil
}

func (s *GormStore) UpdateRoomSettings(ctx context.Context, roomID uint, maxRounds int) error {
	return s.updateRoom(ctx, roomID, map[string]interface{}{"max_rounds": maxRounds})
}

func (s *GormStore) SetRoomStatus(ctx context.Context, roomID uint, status models.RoomStatus) error {
	return s.updateRoom(ctx, roomID, map[string]interface{}{"status": status})
}

// SetRoomHost moves the host flag to the player holding sessionID.
func (s *GormStore) SetRoomHost(ctx context.Context, roomID uint, sessionID string) error {
	return s.with(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Player{}).
			Where("room_id = ? AND session_id <> ?", roomID, sessionID).
			Update("is_host", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Player{}).
			Where("room_id = ? AND session_id = ?", roomID, sessionID).
			Update("is_host", true).Error; err != nil {
			return err
		}
		result := tx.Model(&models.Room{}).Where("id = ?", roomID).Update("host_session_id", sessionID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
}

func (s *GormStore) updateRoom(ctx context.Context, roomID uint, fields map[string]interface{}) error {
	result := s.with(ctx).Model(&models.Room{}).Where("id = ?", roomID).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeleteRoom removes the room together with its players, rounds and
// participations.
func (s *GormStore) DeleteRoom(ctx context.Context, roomID uint) error {
	return s.with(ctx).Transaction(func(tx *gorm.DB) error {
		roundIDs := tx.Model(&models.Round{}).Select("id").Where("room_id = ?", roomID)
		if err := tx.Where("round_id IN (?)", roundIDs).Delete(&models.Participation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.Round{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.Player{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Room{}, roomID).Error
	})
}

func (s *GormStore) ListRoomsUpdatedBefore(ctx context.Context, before time.Time, statuses ...models.RoomStatus) ([]models.Room, error) {
	var rooms []models.Room
	query := s.with(ctx).Where("updated_at < ?", before)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if err := query.Order("id").Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}
