package store_test

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/danblackadder/slumberhouse-api/internal/authz"
	"github.com/danblackadder/slumberhouse-api/internal/config"
	"github.com/danblackadder/slumberhouse-api/internal/db"
	"github.com/danblackadder/slumberhouse-api/internal/model"
	"github.com/danblackadder/slumberhouse-api/internal/query"
	"github.com/danblackadder/slumberhouse-api/internal/store"
	"github.com/danblackadder/slumberhouse-api/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	gormDB, _, err := db.New(context.Background(), &config.DBConfig{
		Driver: "sqlite",
		File:   "file:" + t.Name() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	return store.New(gormDB)
}

// register creates an organization owned by a fresh user.
func register(t *testing.T, s *store.Store, email string) (model.User, model.Organization) {
	t.Helper()
	u, org, err := s.Register(context.Background(), &validation.Registration{
		FirstName:            "owner",
		LastName:             "person",
		Email:                email,
		Password:             "Sup3r$ecret",
		PasswordConfirmation: "Sup3r$ecret",
		Organization:         "Acme",
	})
	require.NoError(t, err)
	return u, org
}

func addMember(t *testing.T, s *store.Store, orgID, first string, role model.OrganizationRole) model.User {
	t.Helper()
	u := model.User{FirstName: first, LastName: "member", Email: first + "@acme.test"}
	require.NoError(t, s.DB().Create(&u).Error)
	require.NoError(t, s.DB().Create(&model.OrganizationUser{
		UserID: u.ID, OrganizationID: orgID, Role: role, Status: model.UserStatusActive,
	}).Error)
	return u
}

func roleOf(t *testing.T, s *store.Store, orgID, userID string) model.OrganizationRole {
	t.Helper()
	role, ok, err := s.OrganizationRole(context.Background(), userID, orgID)
	require.NoError(t, err)
	require.True(t, ok)
	return role
}

func count(t *testing.T, s *store.Store, m any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.DB().Model(m).Where(where, args...).Count(&n).Error)
	return n
}

func TestRegister_CreatesActiveOwner(t *testing.T) {
	s := newStore(t)
	u, org := register(t, s, "Owner@Acme.test ")

	assert.Equal(t, "owner@acme.test", u.Email)
	assert.Equal(t, model.OrganizationRoleOwner, roleOf(t, s, org.ID, u.ID))

	_, _, err := s.Register(context.Background(), &validation.Registration{
		FirstName: "other", LastName: "person", Email: "owner@acme.test",
		Password: "Sup3r$ecret", PasswordConfirmation: "Sup3r$ecret", Organization: "Beta",
	})
	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs["email"], "Email address is already in use")
}

func TestAuthenticate(t *testing.T) {
	s := newStore(t)
	u, org := register(t, s, "owner@acme.test")
	ctx := context.Background()

	got, ou, err := s.Authenticate(ctx, "OWNER@acme.test", "Sup3r$ecret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, org.ID, ou.OrganizationID)

	_, _, err = s.Authenticate(ctx, "owner@acme.test", "wrong")
	assert.ErrorIs(t, err, store.ErrBadCredentials)
	_, _, err = s.Authenticate(ctx, "nobody@acme.test", "Sup3r$ecret")
	assert.ErrorIs(t, err, store.ErrBadCredentials)
}

func TestMe(t *testing.T) {
	s := newStore(t)
	u, org := register(t, s, "owner@acme.test")

	me, err := s.Me(context.Background(), authz.Caller{UserID: u.ID, OrganizationID: org.ID})
	require.NoError(t, err)
	assert.Equal(t, u.ID, me.ID)
	assert.Equal(t, "Acme", me.Organization)
	assert.Equal(t, model.OrganizationRoleOwner, me.Role)
}

func TestInviteUser(t *testing.T) {
	s := newStore(t)
	_, org := register(t, s, "owner@acme.test")
	ctx := context.Background()

	u, err := s.InviteUser(ctx, org.ID, &validation.Invite{Email: "new@acme.test"})
	require.NoError(t, err)
	assert.Equal(t, model.OrganizationRoleBasic, roleOf(t, s, org.ID, u.ID))

	_, err = s.InviteUser(ctx, org.ID, &validation.Invite{Email: "new@acme.test"})
	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "email")

	// An existing user from another organization is reused.
	_, other := register(t, s, "other@beta.test")
	again, err := s.InviteUser(ctx, other.ID, &validation.Invite{Email: "new@acme.test"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
}

func TestUpdateOrganizationRole_TransfersOwnership(t *testing.T) {
	s := newStore(t)
	owner, org := register(t, s, "owner@acme.test")
	admin := addMember(t, s, org.ID, "ada", model.OrganizationRoleAdmin)
	caller := authz.Caller{UserID: owner.ID, OrganizationID: org.ID}

	err := s.UpdateOrganizationRole(context.Background(), caller, admin.ID,
		&validation.RoleChange{Role: model.OrganizationRoleOwner})
	require.NoError(t, err)

	assert.Equal(t, model.OrganizationRoleOwner, roleOf(t, s, org.ID, admin.ID))
	assert.Equal(t, model.OrganizationRoleAdmin, roleOf(t, s, org.ID, owner.ID))
	assert.Equal(t, int64(1), count(t, s, &model.OrganizationUser{},
		"organization_id = ? AND role = ?", org.ID, model.OrganizationRoleOwner))
}

func TestUpdateOrganizationRole_Rules(t *testing.T) {
	s := newStore(t)
	owner, org := register(t, s, "owner@acme.test")
	admin := addMember(t, s, org.ID, "ada", model.OrganizationRoleAdmin)
	basic := addMember(t, s, org.ID, "bea", model.OrganizationRoleBasic)
	ctx := context.Background()
	asAdmin := authz.Caller{UserID: admin.ID, OrganizationID: org.ID}
	asOwner := authz.Caller{UserID: owner.ID, OrganizationID: org.ID}

	fieldErr := func(err error, field, msg string) {
		t.Helper()
		var verrs validation.Errors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs[field], msg)
	}

	err := s.UpdateOrganizationRole(ctx, asAdmin, owner.ID, &validation.RoleChange{Role: model.OrganizationRoleBasic})
	fieldErr(err, "userId", "ADMIN can not modify role of OWNER")

	err = s.UpdateOrganizationRole(ctx, asAdmin, basic.ID, &validation.RoleChange{Role: model.OrganizationRoleOwner})
	fieldErr(err, "role", "Only OWNER can transfer ownership")

	err = s.UpdateOrganizationRole(ctx, asOwner, owner.ID, &validation.RoleChange{Role: model.OrganizationRoleAdmin})
	fieldErr(err, "role", "Ownership must be transferred before the OWNER role can change")

	err = s.UpdateOrganizationRole(ctx, asOwner, basic.ID, &validation.RoleChange{Role: "chief"})
	fieldErr(err, "role", "Role must be one of owner, admin, basic")

	err = s.UpdateOrganizationRole(ctx, asOwner, "not-an-id", &validation.RoleChange{Role: model.OrganizationRoleAdmin})
	var idErr *store.InvalidIDError
	require.ErrorAs(t, err, &idErr)
	assert.Equal(t, "User id must be a valid id", idErr.Error())

	_, other := register(t, s, "other@beta.test")
	outsider := addMember(t, s, other.ID, "oscar", model.OrganizationRoleBasic)
	err = s.UpdateOrganizationRole(ctx, asOwner, outsider.ID, &validation.RoleChange{Role: model.OrganizationRoleAdmin})
	require.ErrorAs(t, err, &idErr)

	require.NoError(t, s.UpdateOrganizationRole(ctx, asAdmin, basic.ID,
		&validation.RoleChange{Role: model.OrganizationRoleAdmin}))
	assert.Equal(t, model.OrganizationRoleAdmin, roleOf(t, s, org.ID, basic.ID))
	assert.Equal(t, model.OrganizationRoleOwner, roleOf(t, s, org.ID, owner.ID))
}

func TestOrganizationMembers_PageTwoOfFifty(t *testing.T) {
	s := newStore(t)
	_, org := register(t, s, "owner@acme.test")
	for i := 0; i < 49; i++ {
		addMember(t, s, org.ID, fmt.Sprintf("user%02d", i), model.OrganizationRoleBasic)
	}

	list, err := query.OrganizationMembers(org.ID).Page(context.Background(), s.DB(),
		query.Spec{Page: query.Paging{Limit: 20, Page: 2}})
	require.NoError(t, err)
	assert.Len(t, list.Items, 20)
	assert.Equal(t, int64(50), list.Pagination.TotalDocuments)
	assert.Equal(t, 3, list.Pagination.TotalPages)
	assert.Equal(t, 2, list.Pagination.CurrentPage)

	last, err := query.OrganizationMembers(org.ID).Page(context.Background(), s.DB(),
		query.Spec{Page: query.Paging{Limit: 20, Page: 3}})
	require.NoError(t, err)
	assert.Len(t, last.Items, 10)
}

func TestOrganizationMembers_RoleRankAndFilter(t *testing.T) {
	s := newStore(t)
	owner, org := register(t, s, "owner@acme.test")
	addMember(t, s, org.ID, "cal", model.OrganizationRoleBasic)
	addMember(t, s, org.ID, "abe", model.OrganizationRoleBasic)
	addMember(t, s, org.ID, "dot", model.OrganizationRoleAdmin)
	ctx := context.Background()

	rows, err := query.OrganizationMembers(org.ID).Find(ctx, s.DB(), query.Spec{})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, owner.ID, rows[0].ID)
	assert.Equal(t, []string{"owner", "dot", "abe", "cal"},
		[]string{rows[0].FirstName, rows[1].FirstName, rows[2].FirstName, rows[3].FirstName})

	basics, err := query.OrganizationMembers(org.ID).Page(ctx, s.DB(),
		query.Parse(url.Values{"filterRole": {"BASIC"}}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), basics.Pagination.TotalDocuments)
	require.Len(t, basics.Items, 2)
	for _, r := range basics.Items {
		assert.Equal(t, model.OrganizationRoleBasic, r.Role)
	}
}

func TestRemoveOrganizationUser(t *testing.T) {
	s := newStore(t)
	owner, org := register(t, s, "owner@acme.test")
	bea := addMember(t, s, org.ID, "bea", model.OrganizationRoleBasic)
	caller := authz.Caller{UserID: owner.ID, OrganizationID: org.ID}
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, caller, &validation.GroupForm{
		Name:  "design",
		Users: []validation.GroupMember{{UserID: bea.ID, Role: model.GroupRoleBasic}},
	})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, caller, g.ID, &validation.TaskForm{
		Title: "logo", Status: model.TaskStatusBacklog, Priority: model.TaskPriorityLow, Users: []string{bea.ID},
	})
	require.NoError(t, err)

	_, err = s.RemoveOrganizationUser(ctx, caller, owner.ID)
	assert.ErrorIs(t, err, authz.ErrUnauthorized)

	groups, err := s.RemoveOrganizationUser(ctx, caller, bea.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{g.ID}, groups)
	assert.Zero(t, count(t, s, &model.TaskUser{}, "user_id = ?", bea.ID))
	assert.Zero(t, count(t, s, &model.GroupUser{}, "user_id = ?", bea.ID))
	assert.Zero(t, count(t, s, &model.User{}, "id = ?", bea.ID))
}

func TestCreateGroup_CreatorIsAdmin(t *testing.T) {
	s := newStore(t)
	owner, org := register(t, s, "owner@acme.test")
	bea := addMember(t, s, org.ID, "bea", model.OrganizationRoleBasic)
	caller := authz.Caller{UserID: owner.ID, OrganizationID: org.ID}
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, caller, &validation.GroupForm{
		Name: "design",
		Users: []validation.GroupMember{
			{UserID: bea.ID, Role: model.GroupRoleExternal},
			{UserID: owner.ID, Role: model.GroupRoleBasic},
		},
	})
	require.NoError(t, err)

	role, ok, err := s.GroupRole(ctx, owner.ID, g.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.GroupRoleAdmin, role)
	role, _, _ = s.GroupRole(ctx, bea.ID, g.ID)
	assert.Equal(t, model.GroupRoleExternal, role)

	_, other := register(t, s, "other@beta.test")
	outsider := addMember(t, s, other.ID, "oscar", model.OrganizationRoleBasic)
	_, err = s.CreateGroup(ctx, caller, &validation.GroupForm{
		Name:  "ops",
		Users: []validation.GroupMember{{UserID: outsider.ID}},
	})
	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "users")
	assert.Equal(t, int64(1), count(t, s, &model.Group{}, "1 = 1"))
}

func TestGroupMembership(t *testing.T) {
	s := newStore(t)
	owner, org := register(t, s, "owner@acme.test")
	bea := addMember(t, s, org.ID, "bea", model.OrganizationRoleBasic)
	caller := authz.Caller{UserID: owner.ID, OrganizationID: org.ID}
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, caller, &validation.GroupForm{Name: "design"})
	require.NoError(t, err)

	require.NoError(t, s.AddGroupUser(ctx, g.ID, &validation.GroupMember{UserID: bea.ID}))
	err = s.AddGroupUser(ctx, g.ID, &validation.GroupMember{UserID: bea.ID})
	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)

	require.NoError(t, s.UpdateGroupRole(ctx, g.ID, bea.ID, &validation.GroupRoleChange{Role: model.GroupRoleAdmin}))
	role, _, err := s.GroupRole(ctx, bea.ID, g.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GroupRoleAdmin, role)

	require.NoError(t, s.RemoveGroupUser(ctx, g.ID, bea.ID))
	_, ok, err := s.GroupRole(ctx, bea.ID, g.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	var idErr *store.InvalidIDError
	assert.ErrorAs(t, s.RemoveGroupUser(ctx, g.ID, bea.ID), &idErr)
}

func TestCreateTask_DeduplicatesTags(t *testing.T) {
	s := newStore(t)
	owner, org := register(t, s, "owner@acme.test")
	caller := authz.Caller{UserID: owner.ID, OrganizationID: org.ID}
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, caller, &validation.GroupForm{Name: "design"})
	require.NoError(t, err)

	task, err := s.CreateTask(ctx, caller, g.ID, &validation.TaskForm{
		Title:    "logo",
		Status:   model.TaskStatusToDo,
		Priority: model.TaskPriorityHigh,
		Tags:     []string{"A", "B", "B"},
		Users:    []string{owner.ID, owner.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), count(t, s, &model.Tag{}, "group_id = ?", g.ID))
	assert.Equal(t, int64(2), count(t, s, &model.TaskTag{}, "task_id = ?", task.ID))
	assert.Equal(t, int64(1), count(t, s, &model.TaskUser{}, "task_id = ?", task.ID))

	// A second task reuses the group's existing tags.
	_, err = s.CreateTask(ctx, caller, g.ID, &validation.TaskForm{
		Title: "poster", Status: model.TaskStatusToDo, Priority: model.TaskPriorityLow, Tags: []string{"B", "C"},
	})
	require.NoError(t, err)
	tags, err := s.GroupTags(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, tags)
}

func TestCreateTask_AssigneesMustBeMembers(t *testing.T) {
	s := newStore(t)
	owner, org := register(t, s, "owner@acme.test")
	bea := addMember(t, s, org.ID, "bea", model.OrganizationRoleBasic)
	caller := authz.Caller{UserID: owner.ID, OrganizationID: org.ID}
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, caller, &validation.GroupForm{Name: "design"})
	require.NoError(t, err)

	_, err = s.CreateTask(ctx, caller, g.ID, &validation.TaskForm{
		Title: "logo", Status: model.TaskStatusToDo, Priority: model.TaskPriorityHigh, Users: []string{bea.ID},
	})
	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "users")
	assert.Zero(t, count(t, s, &model.Task{}, "1 = 1"))

	_, err = s.CreateTask(ctx, caller, g.ID, &validation.TaskForm{})
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "title")
	assert.Contains(t, verrs, "status")
	assert.Contains(t, verrs, "priority")
}

func TestUpdateAndDeleteTask(t *testing.T) {
	s := newStore(t)
	owner, org := register(t, s, "owner@acme.test")
	bea := addMember(t, s, org.ID, "bea", model.OrganizationRoleBasic)
	caller := authz.Caller{UserID: owner.ID, OrganizationID: org.ID}
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, caller, &validation.GroupForm{
		Name: "design", Users: []validation.GroupMember{{UserID: bea.ID}},
	})
	require.NoError(t, err)
	task, err := s.CreateTask(ctx, caller, g.ID, &validation.TaskForm{
		Title: "logo", Status: model.TaskStatusToDo, Priority: model.TaskPriorityHigh,
		Tags: []string{"A"}, Users: []string{owner.ID},
	})
	require.NoError(t, err)

	asBea := authz.Caller{UserID: bea.ID, OrganizationID: org.ID}
	require.NoError(t, s.UpdateTask(ctx, asBea, g.ID, task.ID, &validation.TaskForm{
		Title: "new logo", Status: model.TaskStatusInReview, Priority: model.TaskPriorityMedium,
		Tags: []string{"B"}, Users: []string{bea.ID},
	}))

	tasks, err := query.LoadTasks(ctx, s.DB(), g.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "new logo", tasks[0].Title)
	assert.Equal(t, []string{"B"}, tasks[0].Tags)
	require.Len(t, tasks[0].Users, 1)
	assert.Equal(t, bea.ID, tasks[0].Users[0].ID)
	assert.Equal(t, owner.ID, tasks[0].CreatedBy.ID)
	assert.Equal(t, bea.ID, tasks[0].UpdatedBy.ID)

	other, err := s.CreateGroup(ctx, caller, &validation.GroupForm{Name: "other"})
	require.NoError(t, err)
	var idErr *store.InvalidIDError
	require.ErrorAs(t, s.DeleteTask(ctx, other.ID, task.ID), &idErr)
	assert.Equal(t, "Task id must be a valid id", idErr.Error())

	require.NoError(t, s.DeleteTask(ctx, g.ID, task.ID))
	assert.Zero(t, count(t, s, &model.Task{}, "1 = 1"))
	assert.Zero(t, count(t, s, &model.TaskTag{}, "1 = 1"))
	assert.Zero(t, count(t, s, &model.TaskUser{}, "1 = 1"))
	assert.Zero(t, count(t, s, &model.GroupTask{}, "1 = 1"))
}

func TestDeleteGroup_RemovesEverything(t *testing.T) {
	s := newStore(t)
	owner, org := register(t, s, "owner@acme.test")
	caller := authz.Caller{UserID: owner.ID, OrganizationID: org.ID}
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, caller, &validation.GroupForm{Name: "design", Image: "/uploads/x.png"})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, caller, g.ID, &validation.TaskForm{
		Title: "logo", Status: model.TaskStatusToDo, Priority: model.TaskPriorityHigh,
		Tags: []string{"A"}, Users: []string{owner.ID},
	})
	require.NoError(t, err)
	_, err = s.PostMessage(ctx, caller, g.ID, &validation.MessageForm{Message: "hi"})
	require.NoError(t, err)

	image, err := s.DeleteGroup(ctx, caller, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/x.png", image)
	for _, m := range []any{
		&model.Group{}, &model.OrganizationGroup{}, &model.GroupUser{}, &model.Task{},
		&model.GroupTask{}, &model.Tag{}, &model.TaskTag{}, &model.TaskUser{}, &model.Message{},
	} {
		assert.Zero(t, count(t, s, m, "1 = 1"), "%T", m)
	}

	var idErr *store.InvalidIDError
	_, err = s.DeleteGroup(ctx, caller, g.ID)
	assert.ErrorAs(t, err, &idErr)
}

func TestSetGroupWidgets(t *testing.T) {
	s := newStore(t)
	owner, org := register(t, s, "owner@acme.test")
	caller := authz.Caller{UserID: owner.ID, OrganizationID: org.ID}
	ctx := context.Background()

	board := model.Widget{Widget: "task board"}
	chat := model.Widget{Widget: "chat"}
	require.NoError(t, s.DB().Create(&board).Error)
	require.NoError(t, s.DB().Create(&chat).Error)
	g, err := s.CreateGroup(ctx, caller, &validation.GroupForm{Name: "design"})
	require.NoError(t, err)

	require.NoError(t, s.SetGroupWidgets(ctx, g.ID, &validation.WidgetsForm{Widgets: []string{board.ID, chat.ID}}))
	require.NoError(t, s.SetGroupWidgets(ctx, g.ID, &validation.WidgetsForm{Widgets: []string{chat.ID}}))
	got, err := s.GroupWidgets(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "chat", got[0].Widget)

	err = s.SetGroupWidgets(ctx, g.ID, &validation.WidgetsForm{Widgets: []string{owner.ID}})
	var verrs validation.Errors
	assert.ErrorAs(t, err, &verrs)
}

func TestUpdateProfile(t *testing.T) {
	s := newStore(t)
	owner, org := register(t, s, "owner@acme.test")
	addMember(t, s, org.ID, "bea", model.OrganizationRoleBasic)
	ctx := context.Background()

	prev, err := s.UpdateProfile(ctx, owner.ID, &validation.ProfileForm{
		FirstName: "Olga", LastName: "Owner", Email: "owner@acme.test", Image: "/uploads/me.png",
	})
	require.NoError(t, err)
	assert.Empty(t, prev)

	_, err = s.UpdateProfile(ctx, owner.ID, &validation.ProfileForm{
		FirstName: "olga", LastName: "owner", Email: "bea@acme.test",
	})
	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs["email"], "Email address is already in use")

	prev, err = s.UpdateProfile(ctx, owner.ID, &validation.ProfileForm{
		FirstName: "olga", LastName: "owner", Email: "owner@acme.test",
	})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/me.png", prev)
}

func TestReconcileOwners(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	owner, twoOwners := register(t, s, "one@acme.test")
	second := addMember(t, s, twoOwners.ID, "sam", model.OrganizationRoleOwner)
	require.NoError(t, s.DB().Model(&model.OrganizationUser{}).
		Where("user_id = ?", second.ID).
		Update("updated_at", time.Now().Add(time.Hour)).Error)

	lead, noOwner := register(t, s, "two@beta.test")
	admin := addMember(t, s, noOwner.ID, "ada", model.OrganizationRoleAdmin)
	require.NoError(t, s.DB().Model(&model.OrganizationUser{}).
		Where("user_id = ?", lead.ID).
		Update("role", model.OrganizationRoleBasic).Error)

	_, healthy := register(t, s, "three@gamma.test")

	fixed, err := s.ReconcileOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fixed)

	assert.Equal(t, model.OrganizationRoleOwner, roleOf(t, s, twoOwners.ID, second.ID))
	assert.Equal(t, model.OrganizationRoleAdmin, roleOf(t, s, twoOwners.ID, owner.ID))
	assert.Equal(t, model.OrganizationRoleOwner, roleOf(t, s, noOwner.ID, admin.ID))
	for _, org := range []string{twoOwners.ID, noOwner.ID, healthy.ID} {
		assert.Equal(t, int64(1), count(t, s, &model.OrganizationUser{},
			"organization_id = ? AND role = ?", org, model.OrganizationRoleOwner))
	}

	fixed, err = s.ReconcileOwners(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed)
}
