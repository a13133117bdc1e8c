package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/danblackadder/slumberhouse-api/internal/auth"
	"github.com/danblackadder/slumberhouse-api/internal/authz"
	"github.com/danblackadder/slumberhouse-api/internal/model"
	"github.com/danblackadder/slumberhouse-api/internal/query"
	"github.com/danblackadder/slumberhouse-api/internal/validation"
	"gorm.io/gorm"
)

// Register creates a user, their organization and an active owner
// membership.
func (s *Store) Register(ctx context.Context, f *validation.Registration) (model.User, model.Organization, error) {
	errs := f.Validate()
	if f.Email != "" {
		taken, err := s.emailTaken(ctx, f.Email, "")
		if err != nil {
			return model.User{}, model.Organization{}, err
		}
		if taken {
			errs.Add("email", "Email address is already in use")
		}
	}
	if err := errs.Err(); err != nil {
		return model.User{}, model.Organization{}, err
	}

	hash, err := auth.HashPassword(f.Password)
	if err != nil {
		return model.User{}, model.Organization{}, err
	}
	user := model.User{FirstName: f.FirstName, LastName: f.LastName, Email: f.Email, PasswordHash: hash}
	org := model.Organization{Name: f.Organization}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if err := tx.Create(&org).Error; err != nil {
			return fmt.Errorf("create organization: %w", err)
		}
		return tx.Create(&model.OrganizationUser{
			UserID:         user.ID,
			OrganizationID: org.ID,
			Role:           model.OrganizationRoleOwner,
			Status:         model.UserStatusActive,
		}).Error
	})
	if err != nil {
		return model.User{}, model.Organization{}, fmt.Errorf("register: %w", err)
	}
	return user, org, nil
}

// Authenticate checks credentials and returns the user with the membership
// their session is scoped to.
func (s *Store) Authenticate(ctx context.Context, email, password string) (model.User, model.OrganizationUser, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", validation.NormalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return user, model.OrganizationUser{}, ErrBadCredentials
	}
	if err != nil {
		return user, model.OrganizationUser{}, fmt.Errorf("find user: %w", err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return user, model.OrganizationUser{}, ErrBadCredentials
	}

	ou, err := s.Membership(ctx, user.ID)
	if errors.Is(err, ErrNotFound) {
		return user, ou, ErrBadCredentials
	}
	return user, ou, err
}

// Membership returns the membership a user's session is scoped to: the
// oldest active one, else the oldest of any status.
func (s *Store) Membership(ctx context.Context, userID string) (model.OrganizationUser, error) {
	var memberships []model.OrganizationUser
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at ASC").Order("id ASC").Find(&memberships).Error; err != nil {
		return model.OrganizationUser{}, fmt.Errorf("find memberships: %w", err)
	}
	if len(memberships) == 0 {
		return model.OrganizationUser{}, ErrNotFound
	}
	for _, m := range memberships {
		if m.Status == model.UserStatusActive {
			return m, nil
		}
	}
	return memberships[0], nil
}

// Me returns the caller's profile within the organization their session is
// scoped to.
func (s *Store) Me(ctx context.Context, caller authz.Caller) (query.Profile, error) {
	rows, err := query.Profiles(caller.UserID, caller.OrganizationID).Find(ctx, s.db, query.Spec{})
	if err != nil {
		return query.Profile{}, err
	}
	if len(rows) == 0 {
		return query.Profile{}, ErrNotFound
	}
	return rows[0], nil
}

// InviteUser adds an email address to orgID as a basic, invited member. A
// user row that already exists for the address is reused.
func (s *Store) InviteUser(ctx context.Context, orgID string, f *validation.Invite) (model.User, error) {
	errs := f.Validate()
	if err := errs.Err(); err != nil {
		return model.User{}, err
	}

	var user model.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", f.Email).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = model.User{Email: f.Email}
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("create user: %w", err)
			}
		case err != nil:
			return fmt.Errorf("find user: %w", err)
		default:
			if _, err := orgMember(tx, orgID, user.ID); err == nil {
				return validation.Errors{"email": {"Email address is already in use"}}
			} else if !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		return tx.Create(&model.OrganizationUser{
			UserID:         user.ID,
			OrganizationID: orgID,
			Role:           model.OrganizationRoleBasic,
			Status:         model.UserStatusInvited,
		}).Error
	})
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

// UpdateOrganizationRole changes a member's role inside the caller's
// organization. Promoting someone to owner demotes the current owner to
// admin in the same transaction.
func (s *Store) UpdateOrganizationRole(ctx context.Context, caller authz.Caller, targetID string, f *validation.RoleChange) error {
	if !validation.ValidID(targetID) {
		return invalidID("User")
	}
	if err := f.Validate().Err(); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		me, err := orgMember(tx, caller.OrganizationID, caller.UserID)
		if errors.Is(err, ErrNotFound) {
			return authz.ErrUnauthorized
		}
		if err != nil {
			return err
		}
		target, err := orgMember(tx, caller.OrganizationID, targetID)
		if errors.Is(err, ErrNotFound) {
			return invalidID("User")
		}
		if err != nil {
			return err
		}

		switch {
		case me.Role == model.OrganizationRoleAdmin && target.Role == model.OrganizationRoleOwner:
			return validation.Errors{"userId": {"ADMIN can not modify role of OWNER"}}
		case f.Role == model.OrganizationRoleOwner && me.Role != model.OrganizationRoleOwner:
			return validation.Errors{"role": {"Only OWNER can transfer ownership"}}
		case target.Role == model.OrganizationRoleOwner && f.Role != model.OrganizationRoleOwner:
			return validation.Errors{"role": {"Ownership must be transferred before the OWNER role can change"}}
		}

		if f.Role == model.OrganizationRoleOwner && target.Role != model.OrganizationRoleOwner {
			if err := tx.Model(&model.OrganizationUser{}).
				Where("organization_id = ? AND role = ?", caller.OrganizationID, model.OrganizationRoleOwner).
				Update("role", model.OrganizationRoleAdmin).Error; err != nil {
				return fmt.Errorf("demote owner: %w", err)
			}
		}
		if err := tx.Model(&target).Update("role", f.Role).Error; err != nil {
			return fmt.Errorf("update role: %w", err)
		}
		return nil
	})
}

// RemoveOrganizationUser removes a member from the caller's organization
// and from every group and task in it. The user row goes too once no
// membership remains. It returns the ids of the groups the user left.
func (s *Store) RemoveOrganizationUser(ctx context.Context, caller authz.Caller, targetID string) ([]string, error) {
	if !validation.ValidID(targetID) {
		return nil, invalidID("User")
	}

	var groupIDs []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := orgMember(tx, caller.OrganizationID, targetID)
		if errors.Is(err, ErrNotFound) {
			return invalidID("User")
		}
		if err != nil {
			return err
		}
		if target.Role == model.OrganizationRoleOwner {
			return authz.ErrUnauthorized
		}

		orgGroups := tx.Model(&model.OrganizationGroup{}).Select("group_id").
			Where("organization_id = ?", caller.OrganizationID)
		if err := tx.Model(&model.GroupUser{}).
			Where("user_id = ? AND group_id IN (?)", targetID, orgGroups).
			Pluck("group_id", &groupIDs).Error; err != nil {
			return fmt.Errorf("list group memberships: %w", err)
		}

		orgTasks := tx.Model(&model.GroupTask{}).Select("task_id").Where("group_id IN (?)", orgGroups)
		if err := tx.Where("user_id = ? AND task_id IN (?)", targetID, orgTasks).
			Delete(&model.TaskUser{}).Error; err != nil {
			return fmt.Errorf("delete task users: %w", err)
		}
		if err := tx.Where("user_id = ? AND group_id IN (?)", targetID, orgGroups).
			Delete(&model.GroupUser{}).Error; err != nil {
			return fmt.Errorf("delete group users: %w", err)
		}
		if err := tx.Delete(&target).Error; err != nil {
			return fmt.Errorf("delete organization user: %w", err)
		}

		var remaining int64
		if err := tx.Model(&model.OrganizationUser{}).Where("user_id = ?", targetID).
			Count(&remaining).Error; err != nil {
			return fmt.Errorf("count memberships: %w", err)
		}
		if remaining > 0 {
			return nil
		}
		if err := tx.Where("user_id = ?", targetID).Delete(&model.RefreshToken{}).Error; err != nil {
			return fmt.Errorf("delete refresh tokens: %w", err)
		}
		return tx.Delete(&model.User{}, "id = ?", targetID).Error
	})
	if err != nil {
		return nil, err
	}
	return groupIDs, nil
}

// UpdateProfile updates the user's own names, email and, when set, image.
// It returns the image the user had before.
func (s *Store) UpdateProfile(ctx context.Context, userID string, f *validation.ProfileForm) (string, error) {
	errs := f.Validate()
	if f.Email != "" {
		taken, err := s.emailTaken(ctx, f.Email, userID)
		if err != nil {
			return "", err
		}
		if taken {
			errs.Add("email", "Email address is already in use")
		}
	}
	if err := errs.Err(); err != nil {
		return "", err
	}

	var prev string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("find user: %w", err)
		}
		prev = user.Image
		updates := map[string]any{
			"first_name": f.FirstName,
			"last_name":  f.LastName,
			"email":      f.Email,
		}
		if f.Image != "" {
			updates["image"] = f.Image
		}
		return tx.Model(&user).Updates(updates).Error
	})
	if err != nil {
		return "", err
	}
	return prev, nil
}

func (s *Store) emailTaken(ctx context.Context, email, exceptUserID string) (bool, error) {
	q := s.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email)
	if exceptUserID != "" {
		q = q.Where("id <> ?", exceptUserID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("count email: %w", err)
	}
	return n > 0, nil
}
