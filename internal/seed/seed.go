// Package seed fills reference data on boot: the widget catalogue, and a
// bootstrap organization with its owner when the users table is empty.
package seed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/danblackadder/slumberhouse-api/internal/auth"
	"github.com/danblackadder/slumberhouse-api/internal/model"
	"github.com/danblackadder/slumberhouse-api/internal/validation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Widgets is the catalogue every deployment starts with.
var Widgets = []string{"task board", "chat"}

// EnsureWidgets inserts any missing catalogue entries. It is safe to call on
// every startup.
func EnsureWidgets(ctx context.Context, db *gorm.DB, log *slog.Logger) error {
	for _, name := range Widgets {
		res := db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "widget"}}, DoNothing: true}).
			Create(&model.Widget{Widget: name})
		if res.Error != nil {
			return fmt.Errorf("insert widget %q: %w", name, res.Error)
		}
		if res.RowsAffected > 0 {
			log.Info("seed widget created", "widget", name)
		}
	}
	return nil
}

// OwnerOptions configures the bootstrap owner.
type OwnerOptions struct {
	Email        string
	Password     string // if empty, a random password is generated
	Organization string
}

// EnsureOwner creates an organization and its owner if no users exist and
// an email is configured. A generated password is printed to stdout once.
func EnsureOwner(ctx context.Context, db *gorm.DB, opts OwnerOptions, log *slog.Logger) error {
	if opts.Email == "" {
		return nil
	}
	var count int64
	if err := db.WithContext(ctx).Model(&model.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		log.Info("seed owner skipped; users already exist")
		return nil
	}

	password := opts.Password
	if password == "" {
		var err error
		password, err = generatePassword()
		if err != nil {
			return fmt.Errorf("generate seed password: %w", err)
		}
		fmt.Printf("[slumberhouse] seed owner password: %s\n", password)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	user := model.User{
		FirstName:    "seed",
		LastName:     "owner",
		Email:        validation.NormalizeEmail(opts.Email),
		PasswordHash: hash,
	}
	org := model.Organization{Name: opts.Organization}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("insert seed owner: %w", err)
		}
		if err := tx.Create(&org).Error; err != nil {
			return fmt.Errorf("insert seed organization: %w", err)
		}
		return tx.Create(&model.OrganizationUser{
			UserID:         user.ID,
			OrganizationID: org.ID,
			Role:           model.OrganizationRoleOwner,
			Status:         model.UserStatusActive,
		}).Error
	})
	if err != nil {
		return err
	}

	log.Info("seed owner created", "email", user.Email, "organization", org.Name)
	return nil
}

func generatePassword() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
