package entity

// RoleAdmin unlocks the operator endpoints (channel management).
const RoleAdmin = "admin"

// Identity is an authenticated caller resolved from a bearer token by the
// identity provider. The service never handles passwords or sessions itself.
type Identity struct {
	Id    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (i *Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
