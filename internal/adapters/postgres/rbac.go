package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quorasec/iamcore/internal/domain"
	"github.com/quorasec/iamcore/internal/ports"
)

type RBACRepository struct {
	db *gorm.DB
}

func NewRBACRepository(db *gorm.DB) *RBACRepository {
	return &RBACRepository{db: db}
}

// GetPermissionSet resolves direct roles, group roles and principal-level
// overrides into one flat allow/deny set.
func (r *RBACRepository) GetPermissionSet(ctx context.Context, principalID uuid.UUID) (domain.PermissionSet, error) {
	var allows []string
	err := r.db.WithContext(ctx).Raw(`
		SELECT rp.permission FROM role_permissions rp
		JOIN principal_roles pr ON pr.role_id = rp.role_id
		WHERE pr.principal_id = ?
		UNION
		SELECT rp.permission FROM role_permissions rp
		JOIN group_roles gr ON gr.role_id = rp.role_id
		JOIN principal_groups pg ON pg.group_id = gr.group_id
		WHERE pg.principal_id = ?`,
		principalID, principalID).Scan(&allows).Error
	if err != nil {
		return domain.PermissionSet{}, fmt.Errorf("resolve role grants: %w", err)
	}

	var overrides []permissionOverrideModel
	if err := r.db.WithContext(ctx).Where("principal_id = ?", principalID).Find(&overrides).Error; err != nil {
		return domain.PermissionSet{}, fmt.Errorf("resolve overrides: %w", err)
	}

	set := domain.PermissionSet{Allows: allows}
	for _, o := range overrides {
		switch domain.GrantEffect(o.Effect) {
		case domain.EffectAllow:
			set.Allows = append(set.Allows, o.Permission)
		case domain.EffectDeny:
			set.Denies = append(set.Denies, o.Permission)
		}
	}
	set.Normalize()
	return set, nil
}

func (r *RBACRepository) ListRoleNames(ctx context.Context, principalID uuid.UUID) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Raw(`
		SELECT ro.name FROM roles ro
		JOIN principal_roles pr ON pr.role_id = ro.role_id
		WHERE pr.principal_id = ?
		UNION
		SELECT ro.name FROM roles ro
		JOIN group_roles gr ON gr.role_id = ro.role_id
		JOIN principal_groups pg ON pg.group_id = gr.group_id
		WHERE pg.principal_id = ?
		ORDER BY 1`,
		principalID, principalID).Scan(&names).Error
	if err != nil {
		return nil, fmt.Errorf("list role names: %w", err)
	}
	return names, nil
}

func (r *RBACRepository) roleID(ctx context.Context, roleName string) (uuid.UUID, error) {
	var m roleModel
	if err := r.db.WithContext(ctx).Where("name = ?", roleName).First(&m).Error; err != nil {
		return uuid.Nil, fmt.Errorf("role by name: %w", notFound(err))
	}
	return m.RoleID, nil
}

func (r *RBACRepository) AssignRole(ctx context.Context, principalID uuid.UUID, roleName string, at time.Time) error {
	roleID, err := r.roleID(ctx, roleName)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Exec(`
		INSERT INTO principal_roles (principal_id, role_id, assigned_at)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING`,
		principalID, roleID, at).Error
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

func (r *RBACRepository) RemoveRole(ctx context.Context, principalID uuid.UUID, roleName string, at time.Time) error {
	roleID, err := r.roleID(ctx, roleName)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Where("principal_id = ? AND role_id = ?", principalID, roleID).
		Delete(&principalRoleModel{}).Error
	if err != nil {
		return fmt.Errorf("remove role: %w", err)
	}
	return nil
}

// UpsertRoleDefinition replaces a role's permission list, creating the role
// if needed. The swap is transactional so readers never see a half-defined
// role.
func (r *RBACRepository) UpsertRoleDefinition(ctx context.Context, roleName string, permissions []string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Exec(`
			INSERT INTO roles (role_id, name, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT (name) DO NOTHING`,
			uuid.New(), roleName, at).Error
		if err != nil {
			return fmt.Errorf("upsert role: %w", err)
		}

		var m roleModel
		if err := tx.Where("name = ?", roleName).First(&m).Error; err != nil {
			return fmt.Errorf("role by name: %w", notFound(err))
		}

		if err := tx.Where("role_id = ?", m.RoleID).Delete(&rolePermissionModel{}).Error; err != nil {
			return fmt.Errorf("clear role permissions: %w", err)
		}
		for _, p := range permissions {
			err := tx.Exec(`
				INSERT INTO role_permissions (role_id, permission)
				VALUES (?, ?)
				ON CONFLICT DO NOTHING`,
				m.RoleID, p).Error
			if err != nil {
				return fmt.Errorf("insert role permission: %w", err)
			}
		}
		return nil
	})
}

func (r *RBACRepository) UpsertOverride(ctx context.Context, override domain.PermissionOverride, at time.Time) error {
	err := r.db.WithContext(ctx).Exec(`
		INSERT INTO permission_overrides (principal_id, permission, effect, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (principal_id, permission) DO UPDATE
		SET effect = EXCLUDED.effect, updated_at = EXCLUDED.updated_at`,
		override.PrincipalID, override.Permission, string(override.Effect), at).Error
	if err != nil {
		return fmt.Errorf("upsert override: %w", err)
	}
	return nil
}

var _ ports.RBACRepository = (*RBACRepository)(nil)
