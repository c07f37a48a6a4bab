package models

// UserRole is the operator role carried in the access token.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RolePlanner    UserRole = "PLANNER"
	RoleSupervisor UserRole = "SUPERVISOR"
	RoleViewer     UserRole = "VIEWER"
)

// AccessLevel is the clearance a route requires. Each level includes the ones below it.
type AccessLevel int

const (
	AccessRead     AccessLevel = iota + 1 // schedules, ledger, free slots
	AccessValidate                        // complete, reschedule and cancel transitions
	AccessPlan                            // moves, manual entry and bulk import
	AccessAdmin                           // daily tick trigger and cache maintenance
)

func (l AccessLevel) String() string {
	switch l {
	case AccessRead:
		return "read"
	case AccessValidate:
		return "validate"
	case AccessPlan:
		return "plan"
	case AccessAdmin:
		return "admin"
	}
	return "none"
}

// Level maps a role onto its clearance. Unknown roles get none.
func (r UserRole) Level() AccessLevel {
	switch r {
	case RoleAdmin:
		return AccessAdmin
	case RolePlanner:
		return AccessPlan
	case RoleSupervisor:
		return AccessValidate
	case RoleViewer:
		return AccessRead
	}
	return 0
}

// Grants reports whether the role clears level.
func (r UserRole) Grants(level AccessLevel) bool {
	return level > 0 && r.Level() >= level
}

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r.Level() > 0
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
