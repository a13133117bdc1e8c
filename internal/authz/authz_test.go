package authz_test

import (
	"context"
	"errors"
	"testing"

	"github.com/danblackadder/slumberhouse-api/internal/authz"
	"github.com/danblackadder/slumberhouse-api/internal/model"
	"github.com/stretchr/testify/assert"
)

type fakeMemberships struct {
	org    map[string]model.OrganizationRole // userID
	group  map[string]model.GroupRole        // userID
	owner  map[string]string                 // groupID -> orgID
	broken bool
}

func (f fakeMemberships) OrganizationRole(_ context.Context, userID, _ string) (model.OrganizationRole, bool, error) {
	if f.broken {
		return "", false, errors.New("db down")
	}
	r, ok := f.org[userID]
	return r, ok, nil
}

func (f fakeMemberships) GroupRole(_ context.Context, userID, _ string) (model.GroupRole, bool, error) {
	r, ok := f.group[userID]
	return r, ok, nil
}

func (f fakeMemberships) GroupOrganization(_ context.Context, groupID string) (string, bool, error) {
	o, ok := f.owner[groupID]
	return o, ok, nil
}

func newGate() *authz.Gate {
	return authz.New(fakeMemberships{
		org: map[string]model.OrganizationRole{
			"owner": model.OrganizationRoleOwner,
			"admin": model.OrganizationRoleAdmin,
			"basic": model.OrganizationRoleBasic,
		},
		group: map[string]model.GroupRole{
			"basic": model.GroupRoleAdmin,
			"admin": model.GroupRoleBasic,
		},
		owner: map[string]string{"g1": "org1", "foreign": "org2"},
	})
}

func caller(id string) authz.Caller {
	return authz.Caller{UserID: id, OrganizationID: "org1"}
}

func TestRequireOrganizationOwner(t *testing.T) {
	gate := newGate()
	ctx := context.Background()

	assert.NoError(t, gate.RequireOrganizationOwner(ctx, caller("owner")))
	assert.ErrorIs(t, gate.RequireOrganizationOwner(ctx, caller("admin")), authz.ErrUnauthorized)
	assert.ErrorIs(t, gate.RequireOrganizationOwner(ctx, caller("stranger")), authz.ErrUnauthorized)
}

func TestRequireOrganizationAdmin(t *testing.T) {
	gate := newGate()
	ctx := context.Background()

	assert.NoError(t, gate.RequireOrganizationAdmin(ctx, caller("owner")))
	assert.NoError(t, gate.RequireOrganizationAdmin(ctx, caller("admin")))
	assert.ErrorIs(t, gate.RequireOrganizationAdmin(ctx, caller("basic")), authz.ErrUnauthorized)
}

func TestRequireGroupAdmin(t *testing.T) {
	gate := newGate()
	ctx := context.Background()

	// Organization admin override applies only to groups of their organization.
	assert.NoError(t, gate.RequireGroupAdmin(ctx, caller("admin"), "g1"))
	assert.ErrorIs(t, gate.RequireGroupAdmin(ctx, caller("owner"), "foreign"), authz.ErrUnauthorized)

	// A basic organization member who administers the group.
	assert.NoError(t, gate.RequireGroupAdmin(ctx, caller("basic"), "g1"))
	assert.ErrorIs(t, gate.RequireGroupAdmin(ctx, caller("stranger"), "g1"), authz.ErrUnauthorized)
}

func TestRequireGroupMember(t *testing.T) {
	gate := newGate()
	ctx := context.Background()

	assert.NoError(t, gate.RequireGroupMember(ctx, caller("admin"), "g1"))
	assert.ErrorIs(t, gate.RequireGroupMember(ctx, caller("owner"), "g1"), authz.ErrUnauthorized)
}

func TestStoreFailureIsNotADenial(t *testing.T) {
	gate := authz.New(fakeMemberships{broken: true})
	err := gate.RequireOrganizationAdmin(context.Background(), caller("owner"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, authz.ErrUnauthorized)
}
