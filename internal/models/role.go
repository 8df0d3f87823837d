package models

import (
	"fmt"
	"strings"
)

// Role is the portal role an applicant registers for.
type Role string

const (
	RoleLearner         Role = "learner"
	RoleTeacher         Role = "teacher"
	RoleGradeHead       Role = "grade_head"
	RolePrincipal       Role = "principal"
	RoleDeputyPrincipal Role = "deputy_principal"
	RoleHOD             Role = "hod"
	RoleLLC             Role = "llc"
	RoleAdmin           Role = "admin"
	RoleFinance         Role = "finance"
	RoleLibrarian       Role = "librarian"
)

// AllRoles lists every role in display order.
func AllRoles() []Role {
	return []Role{
		RoleLearner, RoleTeacher, RoleGradeHead, RolePrincipal, RoleDeputyPrincipal,
		RoleHOD, RoleLLC, RoleAdmin, RoleFinance, RoleLibrarian,
	}
}

// ParseRole converts user input into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if role.Shape() == ShapeNone {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}

// Shape groups roles that share a wizard step list.
type Shape int

const (
	// ShapeNone is the shape of an empty or unknown role.
	ShapeNone Shape = iota
	ShapeLearner
	ShapeSupportStaff
	ShapeTeachingStaff
)

func (s Shape) String() string {
	switch s {
	case ShapeLearner:
		return "learner"
	case ShapeSupportStaff:
		return "support_staff"
	case ShapeTeachingStaff:
		return "teaching_staff"
	default:
		return "none"
	}
}

// Shape returns the role's wizard shape.
func (r Role) Shape() Shape {
	switch r {
	case RoleLearner:
		return ShapeLearner
	case RoleAdmin, RoleFinance, RoleLibrarian:
		return ShapeSupportStaff
	case RoleTeacher, RoleGradeHead, RolePrincipal, RoleDeputyPrincipal, RoleHOD, RoleLLC:
		return ShapeTeachingStaff
	default:
		return ShapeNone
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.Shape() != ShapeNone
}

// IsStaff reports whether r is any non-learner role.
func (r Role) IsStaff() bool {
	s := r.Shape()
	return s == ShapeSupportStaff || s == ShapeTeachingStaff
}

// SelfApproving reports whether a registration for r is approved on submit.
func (r Role) SelfApproving() bool {
	return r == RoleAdmin
}

// Label is the human name of the role.
func (r Role) Label() string {
	switch r {
	case RoleLearner:
		return "Learner"
	case RoleTeacher:
		return "Teacher"
	case RoleGradeHead:
		return "Grade Head"
	case RolePrincipal:
		return "Principal"
	case RoleDeputyPrincipal:
		return "Deputy Principal"
	case RoleHOD:
		return "Head of Department"
	case RoleLLC:
		return "Learner Liaison Coordinator"
	case RoleAdmin:
		return "Administrator"
	case RoleFinance:
		return "Finance"
	case RoleLibrarian:
		return "Librarian"
	default:
		return string(r)
	}
}

// Role groups used by route guards.
var (
	ReviewerRoles     = []Role{RoleAdmin, RolePrincipal, RoleDeputyPrincipal}
	AnnouncerRoles    = []Role{RolePrincipal, RoleDeputyPrincipal, RoleAdmin, RoleHOD, RoleGradeHead, RoleLLC}
	ComplaintResponse = []Role{RoleLLC, RolePrincipal, RoleDeputyPrincipal}
	MaterialUploaders = []Role{RoleTeacher, RoleHOD, RoleGradeHead, RoleLibrarian}
	MarkRecorders     = []Role{RoleTeacher, RoleGradeHead, RoleHOD}
)

// HasRole reports whether role is in the set.
func HasRole(set []Role, role Role) bool {
	for _, r := range set {
		if r == role {
			return true
		}
	}
	return false
}
