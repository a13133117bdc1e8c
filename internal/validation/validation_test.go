package validation_test

import (
	"testing"

	"github.com/danblackadder/slumberhouse-api/internal/model"
	"github.com/danblackadder/slumberhouse-api/internal/validation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistration_Valid(t *testing.T) {
	r := validation.Registration{
		FirstName:            " Ada ",
		LastName:             "Lovelace",
		Email:                " Ada@Example.COM ",
		Password:             "Sup3r$ecret",
		PasswordConfirmation: "Sup3r$ecret",
		Organization:         "Analytical",
	}
	errs := r.Validate()
	assert.False(t, errs.Any())
	assert.NoError(t, errs.Err())
	assert.Equal(t, "Ada", r.FirstName)
	assert.Equal(t, "ada@example.com", r.Email)
}

func TestRegistration_ReportsEveryField(t *testing.T) {
	r := validation.Registration{FirstName: "A", Email: "not-an-email", Password: "short"}
	errs := r.Validate()

	assert.Equal(t, []string{"First name must be longer than 2 characters"}, errs["firstName"])
	assert.Equal(t, []string{"Last name must be supplied"}, errs["lastName"])
	assert.Equal(t, []string{"Email must be a valid email address"}, errs["email"])
	assert.Equal(t, []string{"Organization must be supplied"}, errs["organization"])
	assert.Equal(t, []string{
		"Password must be longer than 8 characters",
		"Password must contain upper and lower case characters",
		"Password must contain at least 1 number",
		"Password must contain at least 1 special character",
	}, errs["password"])
	assert.Equal(t, []string{"Password confirmation must be supplied"}, errs["passwordConfirmation"])
	require.Error(t, errs.Err())
	assert.Contains(t, errs.Error(), "email: Email must be a valid email address.")
}

func TestRegistration_ConfirmationMismatch(t *testing.T) {
	r := validation.Registration{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Organization: "Org",
		Password: "Sup3r$ecret", PasswordConfirmation: "Sup3r$ecreT",
	}
	errs := r.Validate()
	assert.Equal(t, []string{"Password confirmation must match password"}, errs["passwordConfirmation"])
	assert.Len(t, errs, 1)
}

func TestRoleChange(t *testing.T) {
	empty := validation.RoleChange{}
	assert.Equal(t, []string{"Role must be supplied"}, empty.Validate()["role"])

	bad := validation.RoleChange{Role: "superuser"}
	assert.Equal(t, []string{"Role must be one of owner, admin, basic"}, bad.Validate()["role"])

	ok := validation.RoleChange{Role: model.OrganizationRoleAdmin}
	assert.False(t, ok.Validate().Any())
}

func TestGroupForm(t *testing.T) {
	f := validation.GroupForm{
		Name: "  ",
		Users: []validation.GroupMember{
			{UserID: uuid.NewString()},
			{UserID: "nope", Role: "boss"},
		},
	}
	errs := f.Validate()
	assert.Equal(t, []string{"Name must be supplied"}, errs["name"])
	assert.Equal(t, []string{
		"User id must be a valid id",
		"Role must be one of admin, basic, external",
	}, errs["users"])
	assert.Equal(t, model.GroupRoleBasic, f.Users[0].Role)
}

func TestTaskForm(t *testing.T) {
	f := validation.TaskForm{Tags: []string{" a ", "", "b"}}
	errs := f.Validate()
	assert.Equal(t, []string{"Title must be provided"}, errs["title"])
	assert.Equal(t, []string{"Status must be provided"}, errs["status"])
	assert.Equal(t, []string{"Priority must be provided"}, errs["priority"])
	assert.Equal(t, []string{"a", "b"}, f.Tags)

	f = validation.TaskForm{Title: "Ship", Status: "doing", Priority: model.TaskPriorityLow, Users: []string{"x"}}
	errs = f.Validate()
	assert.Equal(t, []string{"Status must be one of backlog, to do, in progress, in review, completed"}, errs["status"])
	assert.Equal(t, []string{"User id must be a valid id"}, errs["users"])
	assert.NotContains(t, errs, "priority")
}

func TestMessageForm(t *testing.T) {
	f := validation.MessageForm{Message: "   "}
	assert.Equal(t, []string{"Message must be provided"}, f.Validate()["message"])
}

func TestProfileForm_LowerCases(t *testing.T) {
	f := validation.ProfileForm{FirstName: "ADA", LastName: "Lovelace", Email: "ADA@example.com"}
	require.False(t, f.Validate().Any())
	assert.Equal(t, "ada", f.FirstName)
	assert.Equal(t, "lovelace", f.LastName)
	assert.Equal(t, "ada@example.com", f.Email)
}

func TestValidID(t *testing.T) {
	assert.True(t, validation.ValidID(uuid.NewString()))
	assert.False(t, validation.ValidID(""))
	assert.False(t, validation.ValidID("12345"))
}
