package persistence

import (
	"context"

	"github.com/wfunc/thiefhunt/models"
)

func (s *GormStore) CreateRound(ctx context.Context, round *models.Round) error {
	return s.with(ctx).Create(round).Error
}

func (s *GormStore) GetRound(ctx context.Context, id uint) (*models.Round, error) {
	var round models.Round
	if err := s.with(ctx).First(&round, id).Error; err != nil {
		return nil, translate(err)
	}
	return &round, nil
}

// GetActiveRound returns the newest ACTIVE round of the room.
func (s *GormStore) GetActiveRound(ctx context.Context, roomID uint) (*models.Round, error) {
	var round models.Round
	err := s.with(ctx).
		Where("room_id = ? AND status = ?", roomID, models.RoundActive).
		Order("id DESC").
		First(&round).Error
	if err != nil {
		return nil, translate(err)
	}
	return &round, nil
}

// CountRounds counts the rounds of a room, optionally limited to statuses.
func (s *GormStore) CountRounds(ctx context.Context, roomID uint, statuses ...models.RoundStatus) (int64, error) {
	var count int64
	query := s.with(ctx).Model(&models.Round{}).Where("room_id = ?", roomID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	err := query.Count(&count).Error
	return count, err
}

// LastFinishedRound returns the newest RESOLVED or ABANDONED round.
func (s *GormStore) LastFinishedRound(ctx context.Context, roomID uint) (*models.Round, error) {
	var round models.Round
	err := s.with(ctx).
		Where("room_id = ? AND status IN ?", roomID, []models.RoundStatus{models.RoundResolved, models.RoundAbandoned}).
		Order("id DESC").
		First(&round).Error
	if err != nil {
		return nil, translate(err)
	}
	return &round, nil
}

func (s *GormStore) AbandonActiveRounds(ctx context.Context, roomID uint) (int64, error) {
	result := s.with(ctx).Model(&models.Round{}).
		Where("room_id = ? AND status = ?", roomID, models.RoundActive).
		Update("status", models.RoundAbandoned)
	return result.RowsAffected, result.Error
}

// TransitionRound is a compare-and-swap on the round status: the row is
// only updated while it still holds from. It reports whether it won.
func (s *GormStore) TransitionRound(ctx context.Context, roundID uint, from, to models.RoundStatus, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	result := s.with(ctx).Model(&models.Round{}).
		Where("id = ? AND status = ?", roundID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateRemainingSeconds records the countdown while the round is ACTIVE
// and reports whether it still is.
func (s *GormStore) UpdateRemainingSeconds(ctx context.Context, roundID uint, remaining int) (bool, error) {
	result := s.with(ctx).Model(&models.Round{}).
		Where("id = ? AND status = ?", roundID, models.RoundActive).
		Update("remaining_seconds", remaining)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *GormStore) CreateParticipations(ctx context.Context, participations []models.Participation) error {
	if len(participations) == 0 {
		return nil
	}
	return s.with(ctx).Create(&participations).Error
}

func (s *GormStore) ListParticipations(ctx context.Context, roundID uint) ([]models.Participation, error) {
	var participations []models.Participation
	if err := s.with(ctx).Where("round_id = ?", roundID).Order("id").Find(&participations).Error; err != nil {
		return nil, err
	}
	return participations, nil
}

func (s *GormStore) GetParticipation(ctx context.Context, roundID, playerID uint) (*models.Participation, error) {
	var participation models.Participation
	err := s.with(ctx).Where("round_id = ? AND player_id = ?", roundID, playerID).First(&participation).Error
	if err != nil {
		return nil, translate(err)
	}
	return &participation, nil
}

func (s *GormStore) SaveParticipation(ctx context.Context, participation *models.Participation) error {
	return s.with(ctx).Save(participation).Error
}
