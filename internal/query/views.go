package query

import (
	"context"
	"fmt"
	"time"

	"github.com/danblackadder/slumberhouse-api/internal/model"
	"gorm.io/gorm"
)

// View is a named list query producing rows of type T.
type View[T any] struct {
	build func(Spec) Pipeline
}

// Pipeline returns the stages the view runs for s.
func (v View[T]) Pipeline(s Spec) Pipeline { return v.build(s) }

// Find runs the view and returns its rows, never nil.
func (v View[T]) Find(ctx context.Context, db *gorm.DB, s Spec) ([]T, error) {
	s.CountOnly = false
	out := []T{}
	if err := v.build(s).Compile(db.WithContext(ctx)).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query find: %w", err)
	}
	return out, nil
}

// Count returns the number of rows the view matches, ignoring paging.
func (v View[T]) Count(ctx context.Context, db *gorm.DB, s Spec) (int64, error) {
	s.CountOnly = true
	var n int64
	if err := v.build(s).Compile(db.WithContext(ctx)).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("query count: %w", err)
	}
	return n, nil
}

// Page returns one page of rows and its pagination.
func (v View[T]) Page(ctx context.Context, db *gorm.DB, s Spec) (List[T], error) {
	items, err := v.Find(ctx, db, s)
	if err != nil {
		return List[T]{}, err
	}
	total, err := v.Count(ctx, db, s)
	if err != nil {
		return List[T]{}, err
	}
	return List[T]{Items: items, Pagination: NewPagination(total, s.Page)}, nil
}

// UserRef is the public face of a user inside another row.
type UserRef struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Image     string `json:"image"`
}

// OrganizationMember is a row of the organization user settings list.
type OrganizationMember struct {
	UserRef
	Role   model.OrganizationRole `json:"role"`
	Status model.UserStatus       `json:"status"`
}

// GroupMember is a row of a group's member list.
type GroupMember struct {
	UserRef
	Role model.GroupRole `json:"role"`
}

// GroupSummary is a group with its member count.
type GroupSummary struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Users       int64  `json:"users"`
}

// UserGroup is a group as seen by one of its members.
type UserGroup struct {
	GroupSummary
	Role model.GroupRole `json:"role"`
}

// Message is a chat line with its author.
type Message struct {
	ID        string    `json:"_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	User      UserRef   `gorm:"embedded;embeddedPrefix:user_" json:"user"`
}

func userFields() []Field {
	return []Field{
		{Name: "id", Expr: "u.id"},
		{Name: "first_name", Expr: "u.first_name"},
		{Name: "last_name", Expr: "u.last_name"},
		{Name: "email", Expr: "u.email"},
		{Name: "image", Expr: "u.image"},
	}
}

func groupFields() []Field {
	return []Field{
		{Name: "id", Expr: "g.id"},
		{Name: "name", Expr: "g.name"},
		{Name: "description", Expr: "g.description"},
		{Name: "image", Expr: "g.image"},
		{Name: "users", Expr: "(SELECT COUNT(*) FROM group_users AS cu WHERE cu.group_id = g.id)"},
	}
}

var nameEmailColumns = []string{"u.first_name", "u.last_name", "u.email"}

// finish appends ordering, rank removal and either a count or paging.
// Every ordering ends on the primary key so pages are stable.
func finish(p Pipeline, s Spec, keys []Key, unset ...string) Pipeline {
	if n := len(keys); n == 0 || keys[n-1].Field != "id" {
		keys = append(keys, Key{Field: "id"})
	}
	p = p.Then(Sort{Keys: keys})
	if len(unset) > 0 {
		p = p.Then(Unset{Fields: unset})
	}
	if s.CountOnly {
		return p.Then(Count{})
	}
	if s.Page.Limit > 0 && s.Page.Page > 0 {
		p = p.Then(Skip{N: s.Page.Skip()}, Limit{N: s.Page.Limit})
	}
	return p
}

func memberOrder(o Order, hasStatus bool) []Key {
	switch o.By {
	case ByName:
		return []Key{{Field: "first_name", Desc: o.Desc}}
	case ByEmail:
		return []Key{{Field: "email", Desc: o.Desc}}
	case ByRole:
		return []Key{{Field: "role_rank", Desc: o.Desc}, {Field: "first_name"}}
	case ByStatus:
		if hasStatus {
			return []Key{{Field: "status_rank", Desc: o.Desc}, {Field: "first_name"}}
		}
	}
	return []Key{{Field: "role_rank"}, {Field: "first_name"}}
}

func groupOrder(o Order) []Key {
	switch o.By {
	case ByName:
		return []Key{{Field: "name", Desc: o.Desc}}
	case ByUsers:
		return []Key{{Field: "users", Desc: o.Desc}}
	}
	return []Key{{Field: "users"}, {Field: "name"}}
}

func memberFilters(f Filters, roleCol, statusCol string) []Stage {
	var out []Stage
	if f.NameEmail != "" {
		out = append(out, Search{Columns: nameEmailColumns, Term: f.NameEmail})
	}
	if f.Role != "" {
		out = append(out, Filter{Column: roleCol, Value: f.Role})
	}
	if f.Status != "" && statusCol != "" {
		out = append(out, Filter{Column: statusCol, Value: f.Status})
	}
	return out
}

func orgMemberStages() []Stage {
	return []Stage{
		Unwind{Table: "users AS u", On: "u.id = ou.user_id"},
		Project{Fields: append(userFields(),
			Field{Name: "role", Expr: "ou.role"},
			Field{Name: "status", Expr: "ou.status"},
		)},
		AddRank{Name: "role_rank", Column: "ou.role", Order: model.Strings(model.OrganizationRoles)},
		AddRank{Name: "status_rank", Column: "ou.status", Order: model.Strings(model.UserStatuses)},
	}
}

// OrganizationMembers lists the members of an organization.
func OrganizationMembers(orgID string) View[OrganizationMember] {
	return View[OrganizationMember]{build: func(s Spec) Pipeline {
		p := Pipeline{From: "organization_users AS ou"}.
			Then(Match{SQL: "ou.organization_id = ?", Args: []any{orgID}}).
			Then(orgMemberStages()...).
			Then(memberFilters(s.Filter, "ou.role", "ou.status")...)
		return finish(p, s, memberOrder(s.Sort, true), "role_rank", "status_rank")
	}}
}

// AvailableUsers lists organization members not yet in a group.
func AvailableUsers(orgID, groupID string) View[OrganizationMember] {
	return View[OrganizationMember]{build: func(s Spec) Pipeline {
		p := Pipeline{From: "organization_users AS ou"}.
			Then(
				Match{SQL: "ou.organization_id = ?", Args: []any{orgID}},
				Match{
					SQL:  "NOT EXISTS (SELECT 1 FROM group_users AS gu WHERE gu.user_id = ou.user_id AND gu.group_id = ?)",
					Args: []any{groupID},
				},
			).
			Then(orgMemberStages()...).
			Then(memberFilters(s.Filter, "ou.role", "ou.status")...)
		return finish(p, s, memberOrder(s.Sort, true), "role_rank", "status_rank")
	}}
}

// GroupMembers lists the members of a group with their group role.
func GroupMembers(groupID string) View[GroupMember] {
	return View[GroupMember]{build: func(s Spec) Pipeline {
		p := Pipeline{From: "group_users AS gu"}.
			Then(
				Match{SQL: "gu.group_id = ?", Args: []any{groupID}},
				Unwind{Table: "users AS u", On: "u.id = gu.user_id"},
				Project{Fields: append(userFields(), Field{Name: "role", Expr: "gu.role"})},
				AddRank{Name: "role_rank", Column: "gu.role", Order: model.Strings(model.GroupRoles)},
			).
			Then(memberFilters(s.Filter, "gu.role", "")...)
		return finish(p, s, memberOrder(s.Sort, false), "role_rank")
	}}
}

// AssignableUsers lists group members a task can be assigned to, by name.
func AssignableUsers(groupID string) View[UserRef] {
	return View[UserRef]{build: func(s Spec) Pipeline {
		p := Pipeline{From: "group_users AS gu"}.Then(
			Match{SQL: "gu.group_id = ?", Args: []any{groupID}},
			Unwind{Table: "users AS u", On: "u.id = gu.user_id"},
			Project{Fields: userFields()},
		)
		return finish(p, s, []Key{{Field: "first_name"}, {Field: "last_name"}})
	}}
}

// OrganizationGroups lists every group of an organization.
func OrganizationGroups(orgID string) View[GroupSummary] {
	return View[GroupSummary]{build: func(s Spec) Pipeline {
		p := Pipeline{From: "organization_groups AS og"}.Then(
			Match{SQL: "og.organization_id = ?", Args: []any{orgID}},
			Unwind{Table: `"groups" AS g`, On: "g.id = og.group_id"},
			Project{Fields: groupFields()},
		)
		if s.Filter.Name != "" {
			p = p.Then(Search{Columns: []string{"g.name"}, Term: s.Filter.Name})
		}
		return finish(p, s, groupOrder(s.Sort))
	}}
}

// UserGroups lists the groups a user belongs to inside one organization.
func UserGroups(userID, orgID string) View[UserGroup] {
	return View[UserGroup]{build: func(s Spec) Pipeline {
		p := Pipeline{From: "group_users AS gu"}.Then(
			Match{SQL: "gu.user_id = ?", Args: []any{userID}},
			Unwind{Table: `"groups" AS g`, On: "g.id = gu.group_id"},
			Unwind{Table: "organization_groups AS og", On: "og.group_id = g.id"},
			Match{SQL: "og.organization_id = ?", Args: []any{orgID}},
			Project{Fields: append(groupFields(), Field{Name: "role", Expr: "gu.role"})},
		)
		if s.Filter.Name != "" {
			p = p.Then(Search{Columns: []string{"g.name"}, Term: s.Filter.Name})
		}
		return finish(p, s, groupOrder(s.Sort))
	}}
}

// GroupMessages lists a group's messages, newest first.
func GroupMessages(groupID string) View[Message] {
	return View[Message]{build: func(s Spec) Pipeline {
		p := Pipeline{From: "messages AS m"}.Then(
			Match{SQL: "m.group_id = ?", Args: []any{groupID}},
			Unwind{Table: "users AS u", On: "u.id = m.user_id"},
			Project{Fields: []Field{
				{Name: "id", Expr: "m.id"},
				{Name: "message", Expr: "m.message"},
				{Name: "created_at", Expr: "m.created_at"},
				{Name: "user_id", Expr: "u.id"},
				{Name: "user_first_name", Expr: "u.first_name"},
				{Name: "user_last_name", Expr: "u.last_name"},
				{Name: "user_email", Expr: "u.email"},
				{Name: "user_image", Expr: "u.image"},
			}},
		)
		return finish(p, s, []Key{{Field: "created_at", Desc: true}, {Field: "id", Desc: true}})
	}}
}

// Profile is the caller's user record with their organization and role.
type Profile struct {
	UserRef
	Role           model.OrganizationRole `json:"role"`
	OrganizationID string                 `json:"organizationId"`
	Organization   string                 `json:"organization"`
}

// Profiles selects a user's profile within one organization.
func Profiles(userID, orgID string) View[Profile] {
	return View[Profile]{build: func(s Spec) Pipeline {
		p := Pipeline{From: "organization_users AS ou"}.Then(
			Match{SQL: "ou.user_id = ? AND ou.organization_id = ?", Args: []any{userID, orgID}},
			Unwind{Table: "users AS u", On: "u.id = ou.user_id"},
			Unwind{Table: "organizations AS o", On: "o.id = ou.organization_id"},
			Project{Fields: append(userFields(),
				Field{Name: "role", Expr: "ou.role"},
				Field{Name: "organization_id", Expr: "o.id"},
				Field{Name: "organization", Expr: "o.name"},
			)},
		)
		return finish(p, s, nil)
	}}
}
