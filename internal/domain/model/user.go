package model

// Role names as stored by the (out-of-scope) user subsystem.
const (
	RoleFree    = "free"
	RoleGmgard  = "gmgard"
	RolePaid    = "paid"
	RolePremium = "premium"
)

// User is the minimal projection of an account the job core needs: identity
// and role membership. Account storage and auth live outside this module.
type User struct {
	ID    string
	Roles []string
}

// HasPaidCapability reports whether the user may use paid-gated render
// features (8-step iteration, 720p output).
func (u *User) HasPaidCapability() bool {
	for _, r := range u.Roles {
		if r == RolePaid || r == RolePremium {
			return true
		}
	}
	return false
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
