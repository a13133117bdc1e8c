package model

// OrganizationRole is a member's role inside an organization.
type OrganizationRole string

const (
	OrganizationRoleOwner OrganizationRole = "owner"
	OrganizationRoleAdmin OrganizationRole = "admin"
	OrganizationRoleBasic OrganizationRole = "basic"
)

// OrganizationRoles is ordered by business priority; the index is the rank.
var OrganizationRoles = []OrganizationRole{OrganizationRoleOwner, OrganizationRoleAdmin, OrganizationRoleBasic}

// Valid reports whether r is a known organization role.
func (r OrganizationRole) Valid() bool { return rankOf(OrganizationRoles, r) < len(OrganizationRoles) }

// Rank returns the sort rank of r; unknown roles rank last.
func (r OrganizationRole) Rank() int { return rankOf(OrganizationRoles, r) }

// IsAdmin reports whether r can manage the organization.
func (r OrganizationRole) IsAdmin() bool {
	return r == OrganizationRoleOwner || r == OrganizationRoleAdmin
}

// GroupRole is a member's role inside a group.
type GroupRole string

const (
	GroupRoleAdmin    GroupRole = "admin"
	GroupRoleBasic    GroupRole = "basic"
	GroupRoleExternal GroupRole = "external"
)

// GroupRoles is ordered by business priority; the index is the rank.
var GroupRoles = []GroupRole{GroupRoleAdmin, GroupRoleBasic, GroupRoleExternal}

// Valid reports whether r is a known group role.
func (r GroupRole) Valid() bool { return rankOf(GroupRoles, r) < len(GroupRoles) }

// Rank returns the sort rank of r; unknown roles rank last.
func (r GroupRole) Rank() int { return rankOf(GroupRoles, r) }

// UserStatus is the lifecycle state of an organization membership.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInvited  UserStatus = "invited"
	UserStatusInactive UserStatus = "inactive"
)

// UserStatuses is ordered by business priority; the index is the rank.
var UserStatuses = []UserStatus{UserStatusActive, UserStatusInvited, UserStatusInactive}

// Valid reports whether s is a known status.
func (s UserStatus) Valid() bool { return rankOf(UserStatuses, s) < len(UserStatuses) }

// Rank returns the sort rank of s; unknown statuses rank last.
func (s UserStatus) Rank() int { return rankOf(UserStatuses, s) }

// TaskStatus is the workflow column a task sits in.
type TaskStatus string

const (
	TaskStatusBacklog    TaskStatus = "backlog"
	TaskStatusToDo       TaskStatus = "to do"
	TaskStatusInProgress TaskStatus = "in progress"
	TaskStatusInReview   TaskStatus = "in review"
	TaskStatusCompleted  TaskStatus = "completed"
)

// TaskStatuses lists the workflow in board order.
var TaskStatuses = []TaskStatus{
	TaskStatusBacklog, TaskStatusToDo, TaskStatusInProgress, TaskStatusInReview, TaskStatusCompleted,
}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool { return rankOf(TaskStatuses, s) < len(TaskStatuses) }

// TaskPriority is how urgent a task is.
type TaskPriority string

const (
	TaskPriorityCritical TaskPriority = "critical"
	TaskPriorityHigh     TaskPriority = "high"
	TaskPriorityMedium   TaskPriority = "medium"
	TaskPriorityLow      TaskPriority = "low"
)

// TaskPriorities lists priorities from most to least urgent.
var TaskPriorities = []TaskPriority{TaskPriorityCritical, TaskPriorityHigh, TaskPriorityMedium, TaskPriorityLow}

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool { return rankOf(TaskPriorities, p) < len(TaskPriorities) }

func rankOf[T comparable](order []T, v T) int {
	for i, o := range order {
		if o == v {
			return i
		}
	}
	return len(order)
}

// Strings converts a typed enum list to plain strings.
func Strings[T ~string](vs []T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}
