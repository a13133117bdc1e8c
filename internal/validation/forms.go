package validation

import (
	"strings"
	"time"

	"github.com/danblackadder/slumberhouse-api/internal/model"
)

// Registration is the sign-up form: a new user and the organization they own.
type Registration struct {
	FirstName            string `json:"firstName"`
	LastName             string `json:"lastName"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"passwordConfirmation"`
	Organization         string `json:"organization"`
}

// Validate normalises r in place and returns every failed rule.
func (r *Registration) Validate() Errors {
	errs := Errors{}
	r.FirstName = name(errs, "firstName", "First name", r.FirstName)
	r.LastName = name(errs, "lastName", "Last name", r.LastName)
	r.Email = email(errs, r.Email)
	r.Organization = name(errs, "organization", "Organization", r.Organization)
	password(errs, r.Password)
	if r.PasswordConfirmation == "" {
		errs.Add("passwordConfirmation", "Password confirmation must be supplied")
	}
	if r.Password != "" && r.PasswordConfirmation != "" && r.Password != r.PasswordConfirmation {
		errs.Add("passwordConfirmation", "Password confirmation must match password")
	}
	return errs
}

func password(errs Errors, p string) {
	if p == "" {
		errs.Add("password", "Password must be supplied")
		return
	}
	if len(p) < 8 {
		errs.Add("password", "Password must be longer than 8 characters")
	}
	if !hasUpperAndLower(p) {
		errs.Add("password", "Password must contain upper and lower case characters")
	}
	if !hasDigit(p) {
		errs.Add("password", "Password must contain at least 1 number")
	}
	if !hasSymbol(p) {
		errs.Add("password", "Password must contain at least 1 special character")
	}
}

// Invite adds an email address to the caller's organization.
type Invite struct {
	Email string `json:"email"`
}

// Validate normalises the address and checks its shape.
func (i *Invite) Validate() Errors {
	errs := Errors{}
	i.Email = email(errs, i.Email)
	return errs
}

// RoleChange sets a member's organization role.
type RoleChange struct {
	Role model.OrganizationRole `json:"role"`
}

// Validate checks the requested role exists.
func (c *RoleChange) Validate() Errors {
	errs := Errors{}
	switch {
	case c.Role == "":
		errs.Add("role", "Role must be supplied")
	case !c.Role.Valid():
		errs.Add("role", "Role must be one of "+strings.Join(model.Strings(model.OrganizationRoles), ", "))
	}
	return errs
}

// GroupMember names a user and the role they get in a group.
type GroupMember struct {
	UserID string          `json:"userId"`
	Role   model.GroupRole `json:"role"`
}

// validate checks the id and role, reporting under field. An empty role
// defaults to basic.
func (m *GroupMember) validate(errs Errors, field string) {
	if !ValidID(m.UserID) {
		errs.Add(field, "User id must be a valid id")
	}
	if m.Role == "" {
		m.Role = model.GroupRoleBasic
	}
	if !m.Role.Valid() {
		errs.Add(field, "Role must be one of "+strings.Join(model.Strings(model.GroupRoles), ", "))
	}
}

// Validate checks a single member form.
func (m *GroupMember) Validate() Errors {
	errs := Errors{}
	m.validate(errs, "userId")
	return errs
}

// GroupRoleChange sets a member's group role.
type GroupRoleChange struct {
	Role model.GroupRole `json:"role"`
}

// Validate checks the requested role exists.
func (c *GroupRoleChange) Validate() Errors {
	errs := Errors{}
	if !c.Role.Valid() {
		errs.Add("role", "Role must be one of "+strings.Join(model.Strings(model.GroupRoles), ", "))
	}
	return errs
}

// GroupForm creates or updates a group.
type GroupForm struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Image       string        `json:"-"`
	Users       []GroupMember `json:"users"`
}

// Validate normalises f in place and returns every failed rule.
func (f *GroupForm) Validate() Errors {
	errs := Errors{}
	f.Name = strings.TrimSpace(f.Name)
	switch {
	case f.Name == "":
		errs.Add("name", "Name must be supplied")
	case !minLen(f.Name, 2):
		errs.Add("name", "Name must be longer than 2 characters")
	}
	f.Description = strings.TrimSpace(f.Description)
	for i := range f.Users {
		f.Users[i].validate(errs, "users")
	}
	return errs
}

// TaskForm creates or replaces a task.
type TaskForm struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Priority    model.TaskPriority `json:"priority"`
	Due         *time.Time         `json:"due"`
	Status      model.TaskStatus   `json:"status"`
	Users       []string           `json:"users"`
	Tags        []string           `json:"tags"`
}

// Validate normalises f in place and returns every failed rule.
func (f *TaskForm) Validate() Errors {
	errs := Errors{}
	f.Title = strings.TrimSpace(f.Title)
	if f.Title == "" {
		errs.Add("title", "Title must be provided")
	}
	switch {
	case f.Status == "":
		errs.Add("status", "Status must be provided")
	case !f.Status.Valid():
		errs.Add("status", "Status must be one of "+strings.Join(model.Strings(model.TaskStatuses), ", "))
	}
	switch {
	case f.Priority == "":
		errs.Add("priority", "Priority must be provided")
	case !f.Priority.Valid():
		errs.Add("priority", "Priority must be one of "+strings.Join(model.Strings(model.TaskPriorities), ", "))
	}
	for _, id := range f.Users {
		if !ValidID(id) {
			errs.Add("users", "User id must be a valid id")
			break
		}
	}
	tags := f.Tags[:0:0]
	for _, t := range f.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	f.Tags = tags
	return errs
}

// MessageForm posts a chat message.
type MessageForm struct {
	Message string `json:"message"`
}

// Validate rejects blank messages.
func (f *MessageForm) Validate() Errors {
	errs := Errors{}
	if strings.TrimSpace(f.Message) == "" {
		errs.Add("message", "Message must be provided")
	}
	return errs
}

// ProfileForm updates the caller's own user record.
type ProfileForm struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Image     string `json:"-"`
}

// Validate normalises f in place and returns every failed rule.
func (f *ProfileForm) Validate() Errors {
	errs := Errors{}
	f.FirstName = strings.ToLower(name(errs, "firstName", "First name", f.FirstName))
	f.LastName = strings.ToLower(name(errs, "lastName", "Last name", f.LastName))
	f.Email = email(errs, f.Email)
	return errs
}

// WidgetsForm replaces the widgets enabled for a group.
type WidgetsForm struct {
	Widgets []string `json:"widgets"`
}

// Validate checks every widget id is well formed.
func (f *WidgetsForm) Validate() Errors {
	errs := Errors{}
	for _, id := range f.Widgets {
		if !ValidID(id) {
			errs.Add("widgets", "Widget id must be a valid id")
			break
		}
	}
	return errs
}
