package query

import (
	"context"
	"fmt"
	"time"

	"github.com/danblackadder/slumberhouse-api/internal/model"
	"gorm.io/gorm"
)

// TaskRow is a task as stored, before its relations are attached.
type TaskRow struct {
	ID                      string             `json:"_id"`
	Title                   string             `json:"title"`
	Status                  model.TaskStatus   `json:"status"`
	Description             string             `json:"description"`
	Priority                model.TaskPriority `json:"priority"`
	Due                     *time.Time         `json:"due,omitempty"`
	TitleLockedUserID       *string            `json:"titleLockedUserId,omitempty"`
	DescriptionLockedUserID *string            `json:"descriptionLockedUserId,omitempty"`
	CreatedByUserID         string             `json:"-"`
	UpdatedByUserID         string             `json:"-"`
	CreatedAt               time.Time          `json:"createdAt"`
	UpdatedAt               time.Time          `json:"updatedAt"`
}

// Task is a task with tags, assignees and authorship attached.
type Task struct {
	TaskRow
	Tags      []string  `json:"tags"`
	Users     []UserRef `json:"users"`
	CreatedBy UserRef   `json:"createdBy"`
	UpdatedBy UserRef   `json:"updatedBy"`
}

// GroupTasks lists the tasks of a group in creation order.
func GroupTasks(groupID string) View[TaskRow] {
	return View[TaskRow]{build: func(s Spec) Pipeline {
		p := Pipeline{From: "group_tasks AS gt"}.Then(
			Match{SQL: "gt.group_id = ?", Args: []any{groupID}},
			Unwind{Table: "tasks AS t", On: "t.id = gt.task_id"},
			Project{Fields: []Field{
				{Name: "id", Expr: "t.id"},
				{Name: "title", Expr: "t.title"},
				{Name: "status", Expr: "t.status"},
				{Name: "description", Expr: "t.description"},
				{Name: "priority", Expr: "t.priority"},
				{Name: "due", Expr: "t.due"},
				{Name: "title_locked_user_id", Expr: "t.title_locked_user_id"},
				{Name: "description_locked_user_id", Expr: "t.description_locked_user_id"},
				{Name: "created_by_user_id", Expr: "t.created_by_user_id"},
				{Name: "updated_by_user_id", Expr: "t.updated_by_user_id"},
				{Name: "created_at", Expr: "t.created_at"},
				{Name: "updated_at", Expr: "t.updated_at"},
			}},
		)
		return finish(p, s, []Key{{Field: "created_at"}})
	}}
}

type taskTag struct {
	TaskID string
	Tag    string
}

type taskUser struct {
	TaskID string
	UserRef
}

var (
	taskTags = View[taskTag]{build: func(s Spec) Pipeline {
		return Pipeline{From: "task_tags AS tt"}.Then(
			Unwind{Table: "tags AS tg", On: "tg.id = tt.tag_id"},
			Project{Fields: []Field{
				{Name: "id", Expr: "tt.id"},
				{Name: "task_id", Expr: "tt.task_id"},
				{Name: "tag", Expr: "tg.tag"},
			}},
			Sort{Keys: []Key{{Field: "tag"}, {Field: "id"}}},
			Unset{Fields: []string{"id"}},
		)
	}}
	taskUsers = View[taskUser]{build: func(s Spec) Pipeline {
		return Pipeline{From: "task_users AS tu"}.Then(
			Unwind{Table: "users AS u", On: "u.id = tu.user_id"},
			Project{Fields: append(userFields(), Field{Name: "task_id", Expr: "tu.task_id"})},
			Sort{Keys: []Key{{Field: "first_name"}, {Field: "last_name"}, {Field: "id"}}},
		)
	}}
	usersByID = View[UserRef]{build: func(s Spec) Pipeline {
		return Pipeline{From: "users AS u"}.Then(Project{Fields: userFields()})
	}}
)

// LoadTasks returns the hydrated task list of a group.
func LoadTasks(ctx context.Context, db *gorm.DB, groupID string) ([]Task, error) {
	rows, err := GroupTasks(groupID).Find(ctx, db, Spec{})
	if err != nil {
		return nil, err
	}
	out := make([]Task, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	ids := make([]string, len(rows))
	authorIDs := make([]string, 0, 2*len(rows))
	for i, r := range rows {
		ids[i] = r.ID
		authorIDs = append(authorIDs, r.CreatedByUserID, r.UpdatedByUserID)
	}

	tags, err := scoped(taskTags, Match{SQL: "tt.task_id IN ?", Args: []any{ids}}).Find(ctx, db, Spec{})
	if err != nil {
		return nil, fmt.Errorf("load task tags: %w", err)
	}
	users, err := scoped(taskUsers, Match{SQL: "tu.task_id IN ?", Args: []any{ids}}).Find(ctx, db, Spec{})
	if err != nil {
		return nil, fmt.Errorf("load task users: %w", err)
	}
	authors, err := scoped(usersByID, Match{SQL: "u.id IN ?", Args: []any{authorIDs}}).Find(ctx, db, Spec{})
	if err != nil {
		return nil, fmt.Errorf("load task authors: %w", err)
	}

	tagsByTask := map[string][]string{}
	for _, t := range tags {
		tagsByTask[t.TaskID] = append(tagsByTask[t.TaskID], t.Tag)
	}
	usersByTask := map[string][]UserRef{}
	for _, u := range users {
		usersByTask[u.TaskID] = append(usersByTask[u.TaskID], u.UserRef)
	}
	byID := make(map[string]UserRef, len(authors))
	for _, a := range authors {
		byID[a.ID] = a
	}

	for i, r := range rows {
		out[i] = Task{
			TaskRow:   r,
			Tags:      nonNil(tagsByTask[r.ID]),
			Users:     nonNil(usersByTask[r.ID]),
			CreatedBy: byID[r.CreatedByUserID],
			UpdatedBy: byID[r.UpdatedByUserID],
		}
	}
	return out, nil
}

// scoped prefixes a view's pipeline with a match.
func scoped[T any](v View[T], m Match) View[T] {
	return View[T]{build: func(s Spec) Pipeline {
		inner := v.build(s)
		return Pipeline{From: inner.From, Stages: append([]Stage{m}, inner.Stages...)}
	}}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
