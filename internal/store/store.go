// Package store owns every write to the collaboration schema. Multi-step
// writes run inside one gorm transaction so a failure leaves no orphans.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/danblackadder/slumberhouse-api/internal/model"
	"github.com/danblackadder/slumberhouse-api/internal/validation"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrBadCredentials is returned when login email or password is wrong.
	ErrBadCredentials = errors.New("username or password does not match")
)

// InvalidIDError reports a malformed id, or one that names nothing the
// caller can reach.
type InvalidIDError struct {
	Entity string
}

func (e *InvalidIDError) Error() string {
	return e.Entity + " id must be a valid id"
}

func invalidID(entity string) error {
	return &InvalidIDError{Entity: entity}
}

// Store is the gorm-backed data store.
type Store struct {
	db *gorm.DB
}

// New returns a Store over db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for read-only list views.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// OrganizationRole returns userID's role in orgID.
func (s *Store) OrganizationRole(ctx context.Context, userID, orgID string) (model.OrganizationRole, bool, error) {
	ou, err := orgMember(s.db.WithContext(ctx), orgID, userID)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return ou.Role, true, nil
}

// GroupRole returns userID's role in groupID.
func (s *Store) GroupRole(ctx context.Context, userID, groupID string) (model.GroupRole, bool, error) {
	gu, err := groupMember(s.db.WithContext(ctx), groupID, userID)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return gu.Role, true, nil
}

// GroupOrganization returns the id of the organization owning groupID.
func (s *Store) GroupOrganization(ctx context.Context, groupID string) (string, bool, error) {
	var og model.OrganizationGroup
	err := s.db.WithContext(ctx).Where("group_id = ?", groupID).First(&og).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find organization group: %w", err)
	}
	return og.OrganizationID, true, nil
}

// UserExists reports whether a user row with id exists.
func (s *Store) UserExists(ctx context.Context, id string) (bool, error) {
	if !validation.ValidID(id) {
		return false, nil
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count user: %w", err)
	}
	return n > 0, nil
}

func orgMember(tx *gorm.DB, orgID, userID string) (model.OrganizationUser, error) {
	var ou model.OrganizationUser
	err := tx.Where("organization_id = ? AND user_id = ?", orgID, userID).First(&ou).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ou, ErrNotFound
	}
	if err != nil {
		return ou, fmt.Errorf("find organization user: %w", err)
	}
	return ou, nil
}

func groupMember(tx *gorm.DB, groupID, userID string) (model.GroupUser, error) {
	var gu model.GroupUser
	err := tx.Where("group_id = ? AND user_id = ?", groupID, userID).First(&gu).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return gu, ErrNotFound
	}
	if err != nil {
		return gu, fmt.Errorf("find group user: %w", err)
	}
	return gu, nil
}

// groupInOrganization loads groupID if it belongs to orgID.
func groupInOrganization(tx *gorm.DB, orgID, groupID string) (model.Group, error) {
	var g model.Group
	if !validation.ValidID(groupID) {
		return g, invalidID("Group")
	}
	err := tx.Table(`"groups" AS g`).
		Select("g.*").
		Joins("JOIN organization_groups AS og ON og.group_id = g.id").
		Where("g.id = ? AND og.organization_id = ?", groupID, orgID).
		Take(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return g, invalidID("Group")
	}
	if err != nil {
		return g, fmt.Errorf("find group: %w", err)
	}
	return g, nil
}

// countMembers returns how many of userIDs belong to groupID.
func countMembers(tx *gorm.DB, groupID string, userIDs []string) (int64, error) {
	var n int64
	err := tx.Model(&model.GroupUser{}).
		Where("group_id = ? AND user_id IN ?", groupID, userIDs).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count group users: %w", err)
	}
	return n, nil
}

func distinct(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
