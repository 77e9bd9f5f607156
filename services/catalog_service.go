// services/catalog_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/thiefhunt/logger"
	"github.com/wfunc/thiefhunt/models"
	"github.com/wfunc/thiefhunt/persistence"
)

var ErrInvalidRole = errors.New("invalid role update")

// RoleUpdate carries the editable fields of a role; nil fields are kept.
// Special-role flags are not editable, so the catalog keeps exactly one
// investigator and one evader.
type RoleUpdate struct {
	Name        *string
	Description *string
	WinPoints   *int
	LosePoints  *int
}

// CatalogService owns the role definitions dealt at round start.
type CatalogService struct {
	db persistence.Store
}

func NewCatalogService(db persistence.Store) *CatalogService {
	return &CatalogService{db: db}
}

// ListRoles returns the catalog ordered by id.
func (s *CatalogService) ListRoles(ctx context.Context) ([]models.Role, error) {
	return s.db.ListRoles(ctx)
}

func (s *CatalogService) UpdateRole(ctx context.Context, id uint, update RoleUpdate) (*models.Role, error) {
	if err := update.validate(); err != nil {
		return nil, err
	}

	var role *models.Role
	err := s.db.Transaction(ctx, func(tx persistence.Store) error {
		var err error
		role, err = applyRoleUpdate(ctx, tx, id, update)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Infof("Role %d updated: name=%s win=%d", role.ID, role.Name, role.WinPoints)
	return role, nil
}

func (u RoleUpdate) validate() error {
	if u.Name != nil && *u.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidRole)
	}
	if u.WinPoints != nil && *u.WinPoints < 0 {
		return fmt.Errorf("%w: negative win points", ErrInvalidRole)
	}
	if u.LosePoints != nil && *u.LosePoints < 0 {
		return fmt.Errorf("%w: negative lose points", ErrInvalidRole)
	}
	return nil
}

func applyRoleUpdate(ctx context.Context, tx persistence.Store, id uint, update RoleUpdate) (*models.Role, error) {
	role, err := tx.GetRole(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("role %d: %w", id, err)
	}
	if update.Name != nil {
		role.Name = *update.Name
	}
	if update.Description != nil {
		role.Description = *update.Description
	}
	if update.WinPoints != nil {
		role.WinPoints = *update.WinPoints
	}
	if update.LosePoints != nil {
		role.LosePoints = *update.LosePoints
	}
	if err := tx.SaveRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// FallbackRoles is the smallest playable catalog.
func FallbackRoles() []models.Role {
	return []models.Role{
		{Name: "Police", WinPoints: 100, IsInvestigator: true, Description: "Find the thief before time runs out."},
		{Name: "Thief", WinPoints: 100, IsEvader: true, Description: "Don't get caught."},
		{Name: "Civilian", WinPoints: 50, Description: "Help the police find the thief."},
	}
}

// DefaultRoles is the full twelve role catalog.
func DefaultRoles() []models.Role {
	return []models.Role{
		{Name: "Police", WinPoints: 1000, IsInvestigator: true, Description: "Find the thief! You have 60 seconds."},
		{Name: "Thief", WinPoints: 1500, IsEvader: true, Description: "Don't get caught! Survive for 60 seconds or trick the police into arresting someone else."},
		{Name: "King", WinPoints: 900, Description: "You are the ruler."},
		{Name: "Queen", WinPoints: 800, Description: "Royal consort."},
		{Name: "Minister", WinPoints: 700, Description: "Advisor to the King."},
		{Name: "Soldier", WinPoints: 600, Description: "Defender of the realm."},
		{Name: "Judge", WinPoints: 500, Description: "Keeper of law."},
		{Name: "Merchant", WinPoints: 400, Description: "Wealthy trader."},
		{Name: "Farmer", WinPoints: 300, Description: "Honest worker."},
		{Name: "Banker", WinPoints: 200, Description: "Money handler."},
		{Name: "Doctor", WinPoints: 150, Description: "Healer."},
		{Name: "Teacher", WinPoints: 100, Description: "Educator."},
	}
}

// EnsureMinimumCatalog installs FallbackRoles when the catalog is empty.
// It reports whether anything was created.
func (s *CatalogService) EnsureMinimumCatalog(ctx context.Context) (bool, error) {
	created := false
	err := s.db.Transaction(ctx, func(tx persistence.Store) error {
		count, err := tx.CountRoles(ctx)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		created = true
		return tx.CreateRoles(ctx, FallbackRoles())
	})
	if err != nil {
		return false, err
	}
	if created {
		logger.Log.Warn("Role catalog was empty, installed fallback roles")
	}
	return created, nil
}

// SeedDefaultCatalog replaces the catalog with DefaultRoles unless it
// already holds exactly that many roles.
func (s *CatalogService) SeedDefaultCatalog(ctx context.Context) (bool, error) {
	defaults := DefaultRoles()
	seeded := false
	err := s.db.Transaction(ctx, func(tx persistence.Store) error {
		count, err := tx.CountRoles(ctx)
		if err != nil {
			return err
		}
		if count == int64(len(defaults)) {
			return nil
		}
		if err := tx.DeleteAllRoles(ctx); err != nil {
			return err
		}
		seeded = true
		return tx.CreateRoles(ctx, defaults)
	})
	if err != nil {
		return false, err
	}
	if seeded {
		logger.Log.Infof("Seeded %d default roles", len(defaults))
	}
	return seeded, nil
}
