package domain

// Principal is the authenticated caller: who they are and which role they are acting as.
type Principal struct {
	UserID UserID
	Email  string
	Role   Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CanAccessUser reports whether the caller may read or change the given user's data.
func (p Principal) CanAccessUser(id UserID) bool {
	return p.IsAdmin() || p.UserID == id
}
