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

// CreateTask creates a task in a group with its tags and assignees.
func (s *Store) CreateTask(ctx context.Context, caller authz.Caller, groupID string, f *validation.TaskForm) (model.Task, error) {
	if err := f.Validate().Err(); err != nil {
		return model.Task{}, err
	}

	task := model.Task{
		Title:           f.Title,
		Status:          f.Status,
		Description:     f.Description,
		Priority:        f.Priority,
		Due:             f.Due,
		CreatedByUserID: caller.UserID,
		UpdatedByUserID: caller.UserID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := distinct(f.Users)
		if err := checkAssignees(tx, groupID, users); err != nil {
			return err
		}
		tagIDs, err := resolveTags(tx, groupID, f.Tags)
		if err != nil {
			return err
		}
		if err := tx.Create(&task).Error; err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		if err := tx.Create(&model.GroupTask{GroupID: groupID, TaskID: task.ID}).Error; err != nil {
			return fmt.Errorf("create group task: %w", err)
		}
		return attach(tx, task.ID, tagIDs, users)
	})
	if err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// UpdateTask replaces a task's fields, tags and assignees.
func (s *Store) UpdateTask(ctx context.Context, caller authz.Caller, groupID, taskID string, f *validation.TaskForm) error {
	if !validation.ValidID(taskID) {
		return invalidID("Task")
	}
	if err := f.Validate().Err(); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := taskInGroup(tx, groupID, taskID); err != nil {
			return err
		}
		users := distinct(f.Users)
		if err := checkAssignees(tx, groupID, users); err != nil {
			return err
		}
		tagIDs, err := resolveTags(tx, groupID, f.Tags)
		if err != nil {
			return err
		}

		if err := tx.Model(&model.Task{}).Where("id = ?", taskID).Updates(map[string]any{
			"title":              f.Title,
			"status":             f.Status,
			"description":        f.Description,
			"priority":           f.Priority,
			"due":                f.Due,
			"updated_by_user_id": caller.UserID,
		}).Error; err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&model.TaskTag{}).Error; err != nil {
			return fmt.Errorf("clear task tags: %w", err)
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&model.TaskUser{}).Error; err != nil {
			return fmt.Errorf("clear task users: %w", err)
		}
		return attach(tx, taskID, tagIDs, users)
	})
}

// DeleteTask removes a task and its links.
func (s *Store) DeleteTask(ctx context.Context, groupID, taskID string) error {
	if !validation.ValidID(taskID) {
		return invalidID("Task")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := taskInGroup(tx, groupID, taskID); err != nil {
			return err
		}
		for _, m := range []any{&model.TaskTag{}, &model.TaskUser{}, &model.GroupTask{}} {
			if err := tx.Where("task_id = ?", taskID).Delete(m).Error; err != nil {
				return fmt.Errorf("delete task links: %w", err)
			}
		}
		return tx.Delete(&model.Task{}, "id = ?", taskID).Error
	})
}

// GroupTags returns the tag texts of a group in alphabetical order.
func (s *Store) GroupTags(ctx context.Context, groupID string) ([]string, error) {
	tags := []string{}
	if err := s.db.WithContext(ctx).Model(&model.Tag{}).
		Where("group_id = ?", groupID).
		Order("tag ASC").
		Pluck("tag", &tags).Error; err != nil {
		return nil, fmt.Errorf("list group tags: %w", err)
	}
	return tags, nil
}

// PostMessage appends a chat message to a group.
func (s *Store) PostMessage(ctx context.Context, caller authz.Caller, groupID string, f *validation.MessageForm) (model.Message, error) {
	if err := f.Validate().Err(); err != nil {
		return model.Message{}, err
	}
	msg := model.Message{Message: f.Message, UserID: caller.UserID, GroupID: groupID}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return model.Message{}, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

func taskInGroup(tx *gorm.DB, groupID, taskID string) error {
	var gt model.GroupTask
	err := tx.Where("group_id = ? AND task_id = ?", groupID, taskID).First(&gt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return invalidID("Task")
	}
	if err != nil {
		return fmt.Errorf("find group task: %w", err)
	}
	return nil
}

func checkAssignees(tx *gorm.DB, groupID string, users []string) error {
	if len(users) == 0 {
		return nil
	}
	n, err := countMembers(tx, groupID, users)
	if err != nil {
		return err
	}
	if int(n) != len(users) {
		return validation.Errors{"users": {"User must be a member of this group"}}
	}
	return nil
}

// resolveTags returns one tag id per distinct text, creating missing tags.
func resolveTags(tx *gorm.DB, groupID string, texts []string) ([]string, error) {
	texts = distinct(texts)
	ids := make([]string, 0, len(texts))
	for _, text := range texts {
		var tag model.Tag
		err := tx.Where("group_id = ? AND tag = ?", groupID, text).First(&tag).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tag = model.Tag{Tag: text, GroupID: groupID}
			err = tx.Create(&tag).Error
		}
		if err != nil {
			return nil, fmt.Errorf("resolve tag %q: %w", text, err)
		}
		ids = append(ids, tag.ID)
	}
	return ids, nil
}

func attach(tx *gorm.DB, taskID string, tagIDs, userIDs []string) error {
	for _, id := range tagIDs {
		if err := tx.Create(&model.TaskTag{TaskID: taskID, TagID: id}).Error; err != nil {
			return fmt.Errorf("create task tag: %w", err)
		}
	}
	for _, id := range userIDs {
		var n int64
		if err := tx.Model(&model.TaskUser{}).Where("task_id = ? AND user_id = ?", taskID, id).
			Count(&n).Error; err != nil {
			return fmt.Errorf("check task user: %w", err)
		}
		if n > 0 {
			continue
		}
		if err := tx.Create(&model.TaskUser{TaskID: taskID, UserID: id}).Error; err != nil {
			return fmt.Errorf("create task user: %w", err)
		}
	}
	return nil
}
