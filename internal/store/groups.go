package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/danblackadder/slumberhouse-api/internal/authz"
	"github.com/danblackadder/slumberhouse-api/internal/model"
	"github.com/danblackadder/slumberhouse-api/internal/validation"
	"gorm.io/gorm"
)

// CreateGroup creates a group in the caller's organization. The caller
// becomes its admin; every listed user must already be an organization
// member.
func (s *Store) CreateGroup(ctx context.Context, caller authz.Caller, f *validation.GroupForm) (model.Group, error) {
	errs := f.Validate()
	if err := errs.Err(); err != nil {
		return model.Group{}, err
	}

	group := model.Group{Name: f.Name, Description: f.Description, Image: f.Image}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range f.Users {
			if _, err := orgMember(tx, caller.OrganizationID, m.UserID); errors.Is(err, ErrNotFound) {
				return validation.Errors{"users": {"User id must be a valid id"}}
			} else if err != nil {
				return err
			}
		}

		if err := tx.Create(&group).Error; err != nil {
			return fmt.Errorf("create group: %w", err)
		}
		if err := tx.Create(&model.OrganizationGroup{
			OrganizationID: caller.OrganizationID,
			GroupID:        group.ID,
		}).Error; err != nil {
			return fmt.Errorf("create organization group: %w", err)
		}

		members := map[string]model.GroupRole{caller.UserID: model.GroupRoleAdmin}
		order := []string{caller.UserID}
		for _, m := range f.Users {
			if _, ok := members[m.UserID]; !ok {
				order = append(order, m.UserID)
				members[m.UserID] = m.Role
			}
		}
		for _, userID := range order {
			if err := tx.Create(&model.GroupUser{
				UserID:  userID,
				GroupID: group.ID,
				Role:    members[userID],
			}).Error; err != nil {
				return fmt.Errorf("create group user: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return model.Group{}, err
	}
	return group, nil
}

// UpdateGroup changes a group's name, description and, when set, image.
// It returns the image the group had before.
func (s *Store) UpdateGroup(ctx context.Context, caller authz.Caller, groupID string, f *validation.GroupForm) (string, error) {
	if !validation.ValidID(groupID) {
		return "", invalidID("Group")
	}
	if err := f.Validate().Err(); err != nil {
		return "", err
	}

	var prev string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		g, err := groupInOrganization(tx, caller.OrganizationID, groupID)
		if err != nil {
			return err
		}
		prev = g.Image
		updates := map[string]any{"name": f.Name, "description": f.Description}
		if f.Image != "" {
			updates["image"] = f.Image
		}
		return tx.Model(&model.Group{}).Where("id = ?", g.ID).Updates(updates).Error
	})
	if err != nil {
		return "", err
	}
	return prev, nil
}

// DeleteGroup removes a group and everything hanging off it, children
// first. It returns the group's image so the caller can clean it up.
func (s *Store) DeleteGroup(ctx context.Context, caller authz.Caller, groupID string) (string, error) {
	var image string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		g, err := groupInOrganization(tx, caller.OrganizationID, groupID)
		if err != nil {
			return err
		}
		image = g.Image

		var taskIDs []string
		if err := tx.Model(&model.GroupTask{}).Where("group_id = ?", groupID).
			Pluck("task_id", &taskIDs).Error; err != nil {
			return fmt.Errorf("list group tasks: %w", err)
		}
		steps := []struct {
			what  string
			where string
			arg   any
			model any
		}{
			{"task tags", "task_id IN ?", taskIDs, &model.TaskTag{}},
			{"task users", "task_id IN ?", taskIDs, &model.TaskUser{}},
			{"group tasks", "group_id = ?", groupID, &model.GroupTask{}},
			{"tasks", "id IN ?", taskIDs, &model.Task{}},
			{"group tags", "group_id = ?", groupID, &model.Tag{}},
			{"messages", "group_id = ?", groupID, &model.Message{}},
			{"group widgets", "group_id = ?", groupID, &model.GroupWidget{}},
			{"group users", "group_id = ?", groupID, &model.GroupUser{}},
			{"organization groups", "group_id = ?", groupID, &model.OrganizationGroup{}},
			{"group", "id = ?", groupID, &model.Group{}},
		}
		for _, st := range steps {
			if ids, ok := st.arg.([]string); ok && len(ids) == 0 {
				continue
			}
			if err := tx.Where(st.where, st.arg).Delete(st.model).Error; err != nil {
				return fmt.Errorf("delete %s: %w", st.what, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return image, nil
}

// AddGroupUser adds an organization member to a group.
func (s *Store) AddGroupUser(ctx context.Context, groupID string, f *validation.GroupMember) error {
	if err := f.Validate().Err(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orgID, err := groupOrganization(tx, groupID)
		if err != nil {
			return err
		}
		if _, err := orgMember(tx, orgID, f.UserID); errors.Is(err, ErrNotFound) {
			return invalidID("User")
		} else if err != nil {
			return err
		}
		if _, err := groupMember(tx, groupID, f.UserID); err == nil {
			return validation.Errors{"userId": {"User is already a member of this group"}}
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		return tx.Create(&model.GroupUser{UserID: f.UserID, GroupID: groupID, Role: f.Role}).Error
	})
}

// UpdateGroupRole changes a member's role inside a group.
func (s *Store) UpdateGroupRole(ctx context.Context, groupID, userID string, f *validation.GroupRoleChange) error {
	if !validation.ValidID(userID) {
		return invalidID("User")
	}
	if err := f.Validate().Err(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		gu, err := groupMember(tx, groupID, userID)
		if errors.Is(err, ErrNotFound) {
			return invalidID("User")
		}
		if err != nil {
			return err
		}
		return tx.Model(&gu).Update("role", f.Role).Error
	})
}

// RemoveGroupUser removes a member from a group and from its tasks.
func (s *Store) RemoveGroupUser(ctx context.Context, groupID, userID string) error {
	if !validation.ValidID(userID) {
		return invalidID("User")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		gu, err := groupMember(tx, groupID, userID)
		if errors.Is(err, ErrNotFound) {
			return invalidID("User")
		}
		if err != nil {
			return err
		}
		groupTasks := tx.Model(&model.GroupTask{}).Select("task_id").Where("group_id = ?", groupID)
		if err := tx.Where("user_id = ? AND task_id IN (?)", userID, groupTasks).
			Delete(&model.TaskUser{}).Error; err != nil {
			return fmt.Errorf("delete task users: %w", err)
		}
		return tx.Delete(&gu).Error
	})
}

// Widgets returns the widget catalogue.
func (s *Store) Widgets(ctx context.Context) ([]model.Widget, error) {
	widgets := []model.Widget{}
	if err := s.db.WithContext(ctx).Order("widget ASC").Find(&widgets).Error; err != nil {
		return nil, fmt.Errorf("list widgets: %w", err)
	}
	return widgets, nil
}

// GroupWidgets returns the widgets enabled for a group.
func (s *Store) GroupWidgets(ctx context.Context, groupID string) ([]model.Widget, error) {
	widgets := []model.Widget{}
	err := s.db.WithContext(ctx).
		Joins("JOIN group_widgets AS gw ON gw.widget_id = widgets.id").
		Where("gw.group_id = ?", groupID).
		Order("widgets.widget ASC").
		Find(&widgets).Error
	if err != nil {
		return nil, fmt.Errorf("list group widgets: %w", err)
	}
	return widgets, nil
}

// SetGroupWidgets replaces the widgets enabled for a group.
func (s *Store) SetGroupWidgets(ctx context.Context, groupID string, f *validation.WidgetsForm) error {
	if err := f.Validate().Err(); err != nil {
		return err
	}
	ids := distinct(f.Widgets)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(ids) > 0 {
			var n int64
			if err := tx.Model(&model.Widget{}).Where("id IN ?", ids).Count(&n).Error; err != nil {
				return fmt.Errorf("count widgets: %w", err)
			}
			if int(n) != len(ids) {
				return validation.Errors{"widgets": {"Widget id must be a valid id"}}
			}
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&model.GroupWidget{}).Error; err != nil {
			return fmt.Errorf("clear group widgets: %w", err)
		}
		for _, id := range ids {
			if err := tx.Create(&model.GroupWidget{GroupID: groupID, WidgetID: id}).Error; err != nil {
				return fmt.Errorf("create group widget: %w", err)
			}
		}
		return nil
	})
}

func groupOrganization(tx *gorm.DB, groupID string) (string, error) {
	var og model.OrganizationGroup
	err := tx.Where("group_id = ?", groupID).First(&og).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", invalidID("Group")
	}
	if err != nil {
		return "", fmt.Errorf("find organization group: %w", err)
	}
	return og.OrganizationID, nil
}
