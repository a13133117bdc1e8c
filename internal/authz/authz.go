// Package authz decides whether a caller may act on an organization or group.
// Every denial is the same ErrUnauthorized so responses never reveal why.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/danblackadder/slumberhouse-api/internal/model"
)

// ErrUnauthorized is returned for every denied decision.
var ErrUnauthorized = errors.New("unauthorized request")

// Caller identifies the authenticated user and the organization their
// token was issued for.
type Caller struct {
	UserID         string
	OrganizationID string
}

// Memberships looks up the roles a gate decision depends on. The bool
// result is false when no membership row exists.
type Memberships interface {
	OrganizationRole(ctx context.Context, userID, orgID string) (model.OrganizationRole, bool, error)
	GroupRole(ctx context.Context, userID, groupID string) (model.GroupRole, bool, error)
	GroupOrganization(ctx context.Context, groupID string) (string, bool, error)
}

// Gate evaluates authorization decisions against a Memberships source.
type Gate struct {
	m Memberships
}

// New returns a Gate backed by m.
func New(m Memberships) *Gate {
	return &Gate{m: m}
}

// RequireOrganizationAdmin allows owners and admins of the caller's organization.
func (g *Gate) RequireOrganizationAdmin(ctx context.Context, c Caller) error {
	role, err := g.orgRole(ctx, c)
	if err != nil {
		return err
	}
	if !role.IsAdmin() {
		return ErrUnauthorized
	}
	return nil
}

// RequireOrganizationOwner allows only the owner of the caller's organization.
func (g *Gate) RequireOrganizationOwner(ctx context.Context, c Caller) error {
	role, err := g.orgRole(ctx, c)
	if err != nil {
		return err
	}
	if role != model.OrganizationRoleOwner {
		return ErrUnauthorized
	}
	return nil
}

// RequireGroupAdmin allows organization owners and admins for groups of
// their own organization, and group admins for their group.
func (g *Gate) RequireGroupAdmin(ctx context.Context, c Caller, groupID string) error {
	role, found, err := g.m.OrganizationRole(ctx, c.UserID, c.OrganizationID)
	if err != nil {
		return fmt.Errorf("lookup organization role: %w", err)
	}
	if found && role.IsAdmin() {
		orgID, ok, err := g.m.GroupOrganization(ctx, groupID)
		if err != nil {
			return fmt.Errorf("lookup group organization: %w", err)
		}
		if ok && orgID == c.OrganizationID {
			return nil
		}
	}

	groupRole, found, err := g.m.GroupRole(ctx, c.UserID, groupID)
	if err != nil {
		return fmt.Errorf("lookup group role: %w", err)
	}
	if !found || groupRole != model.GroupRoleAdmin {
		return ErrUnauthorized
	}
	return nil
}

// RequireGroupMember allows any member of the group, whatever their role.
func (g *Gate) RequireGroupMember(ctx context.Context, c Caller, groupID string) error {
	_, found, err := g.m.GroupRole(ctx, c.UserID, groupID)
	if err != nil {
		return fmt.Errorf("lookup group role: %w", err)
	}
	if !found {
		return ErrUnauthorized
	}
	return nil
}

func (g *Gate) orgRole(ctx context.Context, c Caller) (model.OrganizationRole, error) {
	role, found, err := g.m.OrganizationRole(ctx, c.UserID, c.OrganizationID)
	if err != nil {
		return "", fmt.Errorf("lookup organization role: %w", err)
	}
	if !found {
		return "", ErrUnauthorized
	}
	return role, nil
}
