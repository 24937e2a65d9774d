package user

import "github.com/trezcool/edusys/core"

// Capability is something a user may be allowed to do, independently of which role grants it.
type Capability string

const (
	CapManageUsers    Capability = "users:manage"
	CapManageSubjects Capability = "subjects:manage"
	CapCreateCourse   Capability = "courses:create"
	CapCreateTask     Capability = "tasks:create"
	CapGrade          Capability = "tasks:grade"
	CapSubmitTask     Capability = "tasks:submit"
	CapViewOwnGrades  Capability = "grades:view-own"
)

// role prefixes granting each capability
var capabilityRoles = map[Capability][]string{
	CapManageUsers:    {RoleAdmin},
	CapManageSubjects: {RoleTeacher, RoleAdmin},
	CapCreateCourse:   {RoleTeacher},
	CapCreateTask:     {RoleTeacher},
	CapGrade:          {RoleTeacher},
	CapSubmitTask:     {RoleStudent},
	CapViewOwnGrades:  {RoleStudent},
}

// RolesCan reports whether any of roles grants c.
func RolesCan(roles []string, c Capability) bool {
	return User{Roles: roles}.Can(c)
}

func (u User) Can(c Capability) bool {
	for _, prefix := range capabilityRoles[c] {
		if u.RoleStartsWith(prefix) {
			return true
		}
	}
	return false
}

// Authorize returns core.ErrPermissionDenied unless caller holds at least one of caps.
func Authorize(caller User, caps ...Capability) error {
	for _, c := range caps {
		if caller.Can(c) {
			return nil
		}
	}
	return core.ErrPermissionDenied
}
