package store

import (
	"context"
	"fmt"

	"github.com/danblackadder/slumberhouse-api/internal/model"
	"gorm.io/gorm"
)

// ReconcileOwners repairs organizations that do not have exactly one owner
// and returns how many were changed. With several owners, the most recently
// updated one keeps the role and the rest become admins. With none, the
// oldest admin is promoted, else the oldest active member, else the oldest
// member.
func (s *Store) ReconcileOwners(ctx context.Context) (int, error) {
	var orgIDs []string
	if err := s.db.WithContext(ctx).Model(&model.Organization{}).
		Order("created_at ASC").Pluck("id", &orgIDs).Error; err != nil {
		return 0, fmt.Errorf("list organizations: %w", err)
	}

	fixed := 0
	for _, orgID := range orgIDs {
		changed := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var members []model.OrganizationUser
			if err := tx.Where("organization_id = ?", orgID).
				Order("created_at ASC").Order("id ASC").
				Find(&members).Error; err != nil {
				return fmt.Errorf("list members: %w", err)
			}
			if len(members) == 0 {
				return nil
			}

			var owners []model.OrganizationUser
			for _, m := range members {
				if m.Role == model.OrganizationRoleOwner {
					owners = append(owners, m)
				}
			}
			switch {
			case len(owners) == 1:
				return nil
			case len(owners) > 1:
				keep := owners[0]
				for _, o := range owners[1:] {
					if o.UpdatedAt.After(keep.UpdatedAt) {
						keep = o
					}
				}
				if err := tx.Model(&model.OrganizationUser{}).
					Where("organization_id = ? AND role = ? AND id <> ?", orgID, model.OrganizationRoleOwner, keep.ID).
					Update("role", model.OrganizationRoleAdmin).Error; err != nil {
					return fmt.Errorf("demote owners: %w", err)
				}
			default:
				heir := successor(members)
				if err := tx.Model(&heir).Update("role", model.OrganizationRoleOwner).Error; err != nil {
					return fmt.Errorf("promote owner: %w", err)
				}
			}
			changed = true
			return nil
		})
		if err != nil {
			return fixed, fmt.Errorf("reconcile organization %s: %w", orgID, err)
		}
		if changed {
			fixed++
		}
	}
	return fixed, nil
}

// successor picks the member to promote when an organization has no owner.
// members must be ordered oldest first.
func successor(members []model.OrganizationUser) model.OrganizationUser {
	for _, m := range members {
		if m.Role == model.OrganizationRoleAdmin {
			return m
		}
	}
	for _, m := range members {
		if m.Status == model.UserStatusActive {
			return m
		}
	}
	return members[0]
}
