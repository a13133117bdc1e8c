// Package model contains GORM model definitions shared across packages.
// All models are driver-agnostic: they work with both PostgreSQL and SQLite.
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the text UUID primary key and timestamps every table has.
type Base struct {
	ID        string    `gorm:"type:text;primaryKey" json:"_id"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// BeforeCreate generates a UUID primary key if not set.
func (b *Base) BeforeCreate(_ *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

// Organization is the root tenant boundary.
type Organization struct {
	Base
	Name string `gorm:"type:text;not null" json:"name"`
}

// User is a person who can belong to many organizations.
type User struct {
	Base
	FirstName    string `gorm:"type:text;not null;default:''" json:"firstName"`
	LastName     string `gorm:"type:text;not null;default:''" json:"lastName"`
	Email        string `gorm:"type:text;not null;uniqueIndex" json:"email"`
	PasswordHash string `gorm:"type:text;not null;default:''" json:"-"`
	Image        string `gorm:"type:text;not null;default:''" json:"image"`
}

// OrganizationUser grants a user a role inside an organization.
type OrganizationUser struct {
	Base
	UserID         string           `gorm:"type:text;not null;uniqueIndex:idx_org_user" json:"userId"`
	OrganizationID string           `gorm:"type:text;not null;uniqueIndex:idx_org_user;index" json:"organizationId"`
	Role           OrganizationRole `gorm:"type:text;not null;default:'basic'" json:"role"`
	Status         UserStatus       `gorm:"type:text;not null;default:'invited'" json:"status"`
}

// Group is a collaboration space owned by one organization.
type Group struct {
	Base
	Name        string `gorm:"type:text;not null" json:"name"`
	Description string `gorm:"type:text;not null;default:''" json:"description"`
	Image       string `gorm:"type:text;not null;default:''" json:"image"`
}

// OrganizationGroup links a group to its organization.
type OrganizationGroup struct {
	Base
	OrganizationID string `gorm:"type:text;not null;index" json:"organizationId"`
	GroupID        string `gorm:"type:text;not null;uniqueIndex" json:"groupId"`
}

// GroupUser grants a user a role inside a group.
type GroupUser struct {
	Base
	UserID  string    `gorm:"type:text;not null;uniqueIndex:idx_group_user" json:"userId"`
	GroupID string    `gorm:"type:text;not null;uniqueIndex:idx_group_user;index" json:"groupId"`
	Role    GroupRole `gorm:"type:text;not null;default:'basic'" json:"role"`
}

// Task is a unit of work tracked inside a group.
type Task struct {
	Base
	Title                   string       `gorm:"type:text;not null" json:"title"`
	Status                  TaskStatus   `gorm:"type:text;not null" json:"status"`
	Description             string       `gorm:"type:text;not null;default:''" json:"description"`
	Priority                TaskPriority `gorm:"type:text;not null;default:''" json:"priority"`
	Due                     *time.Time   `json:"due,omitempty"`
	TitleLockedUserID       *string      `gorm:"type:text" json:"titleLockedUserId,omitempty"`
	DescriptionLockedUserID *string      `gorm:"type:text" json:"descriptionLockedUserId,omitempty"`
	CreatedByUserID         string       `gorm:"type:text;not null" json:"createdByUserId"`
	UpdatedByUserID         string       `gorm:"type:text;not null" json:"updatedByUserId"`
}

// GroupTask links a task to the group that owns it.
type GroupTask struct {
	Base
	GroupID string `gorm:"type:text;not null;index" json:"groupId"`
	TaskID  string `gorm:"type:text;not null;uniqueIndex" json:"taskId"`
}

// Tag is a label whose text is unique within a group.
type Tag struct {
	Base
	Tag     string `gorm:"type:text;not null;uniqueIndex:idx_group_tag" json:"tag"`
	GroupID string `gorm:"type:text;not null;uniqueIndex:idx_group_tag" json:"groupId"`
}

// TaskTag links a task to a tag.
type TaskTag struct {
	Base
	TaskID string `gorm:"type:text;not null;index" json:"taskId"`
	TagID  string `gorm:"type:text;not null;index" json:"tagId"`
}

// TaskUser assigns a user to a task.
type TaskUser struct {
	Base
	TaskID string `gorm:"type:text;not null;index" json:"taskId"`
	UserID string `gorm:"type:text;not null;index" json:"userId"`
}

// Message is an append-only chat line posted to a group.
type Message struct {
	Base
	Message string `gorm:"type:text;not null" json:"message"`
	UserID  string `gorm:"type:text;not null;index" json:"userId"`
	GroupID string `gorm:"type:text;not null;index" json:"groupId"`
}

// Widget is an entry in the widget catalogue.
type Widget struct {
	Base
	Widget string `gorm:"type:text;not null;uniqueIndex" json:"widget"`
}

// GroupWidget enables a widget for a group.
type GroupWidget struct {
	Base
	GroupID  string `gorm:"type:text;not null;index" json:"groupId"`
	WidgetID string `gorm:"type:text;not null" json:"widgetId"`
}

// RefreshToken is the GORM model for the refresh_tokens table.
type RefreshToken struct {
	ID        string    `gorm:"type:text;primaryKey"`
	UserID    string    `gorm:"type:text;not null;index"`
	TokenHash string    `gorm:"type:text;not null;uniqueIndex"`
	ExpiresAt time.Time `gorm:"not null"`
	RevokedAt *time.Time
	CreatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (rt *RefreshToken) BeforeCreate(_ *gorm.DB) error {
	if rt.ID == "" {
		rt.ID = uuid.New().String()
	}
	return nil
}

// All lists every model in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&Organization{},
		&User{},
		&OrganizationUser{},
		&Group{},
		&OrganizationGroup{},
		&GroupUser{},
		&Task{},
		&GroupTask{},
		&Tag{},
		&TaskTag{},
		&TaskUser{},
		&Message{},
		&Widget{},
		&GroupWidget{},
		&RefreshToken{},
	}
}
