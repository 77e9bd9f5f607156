package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/wfunc/thiefhunt/models"
)

func (s *GormStore) ListRoles(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := s.with(ctx).Order("id").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *GormStore) GetRole(ctx context.Context, id uint) (*models.Role, error) {
	var role models.Role
	if err := s.with(ctx).First(&role, id).Error; err != nil {
		return nil, translate(err)
	}
	return &role, nil
}

func (s *GormStore) CountRoles(ctx context.Context) (int64, error) {
	var count int64
	err := s.with(ctx).Model(&models.Role{}).Count(&count).Error
	return count, err
}

func (s *GormStore) CreateRoles(ctx context.Context, roles []models.Role) error {
	if len(roles) == 0 {
		return nil
	}
	return s.with(ctx).Create(&roles).Error
}

func (s *GormStore) SaveRole(ctx context.Context, role *models.Role) error {
	return s.with(ctx).Save(role).Error
}

func (s *GormStore) DeleteAllRoles(ctx context.Context) error {
	return s.with(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Role{}).Error
}
