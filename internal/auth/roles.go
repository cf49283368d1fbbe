package auth

import "slices"

// CheckRole admits u when its role is one of allowed.
// There is no hierarchy: admin does not imply user.
func CheckRole(u *User, allowed ...Role) error {
	if u == nil {
		return Forbidden(MsgNotAuthenticated)
	}
	if !slices.Contains(allowed, u.Role) {
		return Forbidden(MsgInsufficientRole)
	}
	return nil
}

// CanModify reports whether actor may edit or view the account target.
// Users manage themselves; admins manage everyone.
func CanModify(actor *User, targetID string) bool {
	if actor == nil {
		return false
	}
	return actor.Role == RoleAdmin || actor.ID == targetID
}
