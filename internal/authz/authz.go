// Package authz decides whether a resolved session may use a surface.
package authz

import (
	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
)

// RoleSet is the set of non-admin roles granted a surface. ADMIN is always granted.
type RoleSet map[domainauth.Role]struct{}

// NewRoleSet builds a RoleSet from roles.
func NewRoleSet(roles ...domainauth.Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Has reports whether r is in the set.
func (s RoleSet) Has(r domainauth.Role) bool {
	_, ok := s[r]
	return ok
}

// Named policies.
var (
	// AdminSurface covers reading, creating and updating content on admin pages.
	AdminSurface = NewRoleSet(domainauth.RoleContentManager)
	// AdminDelete covers destructive admin operations. Only ADMIN passes.
	AdminDelete = NewRoleSet()
	// Student covers learner-facing surfaces such as enrollment and progress.
	Student = NewRoleSet(domainauth.RoleStudent, domainauth.RoleContentManager)
)

// Authorize reports whether sess may use a surface guarded by allowed.
// A nil session is never authorized; ADMIN always is.
func Authorize(sess *domainauth.Session, allowed RoleSet) bool {
	if sess == nil {
		return false
	}
	role := sess.User.Role
	if !role.Valid() {
		return false
	}
	if role == domainauth.RoleAdmin {
		return true
	}
	return allowed.Has(role)
}

// Access summarizes what the caller may do on admin surfaces.
type Access struct {
	Role      domainauth.Role `json:"role"`
	CanManage bool            `json:"canManage"`
	CanDelete bool            `json:"canDelete"`
}

// AccessFor evaluates the admin policies for sess.
func AccessFor(sess *domainauth.Session) Access {
	a := Access{Role: domainauth.RoleGuest}
	if sess != nil {
		a.Role = sess.User.Role
	}
	a.CanManage = Authorize(sess, AdminSurface)
	a.CanDelete = Authorize(sess, AdminDelete)
	return a
}
