package models

import "time"

// Role is the capability set granted to a principal. A principal may have
// no role at all (public browsing only), e.g. right after signup before the
// role row is written.
type Role string

const (
	RoleClient     Role = "client"
	RoleRestaurant Role = "restaurant"
	RoleDriver     Role = "driver"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is one of the four marketplace roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleRestaurant, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

// Profile is a registered principal.
type Profile struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuthSourceKind tags which channel authenticated the request.
type AuthSourceKind string

const (
	// AuthStandard is the ordinary session channel.
	AuthStandard AuthSourceKind = "standard"
	// AuthElevated is an explicitly granted admin override. When it asserts
	// admin it takes precedence over whatever the standard session says.
	AuthElevated AuthSourceKind = "elevated"
)

// AuthSource is the tagged union of authentication channels. Zero value
// means "no credentials presented".
type AuthSource struct {
	Kind  AuthSourceKind
	Token string
}

// Resolution is the resolver's answer for one request: who the principal is
// and what they may do. Role is empty (not an error) when no role row
// exists for an authenticated principal.
type Resolution struct {
	Authenticated bool           `json:"authenticated"`
	PrincipalID   string         `json:"principal_id,omitempty"`
	Role          Role           `json:"role,omitempty"`
	Source        AuthSourceKind `json:"source,omitempty"`
}

// HasRole reports whether the resolution grants one of the given roles.
func (r Resolution) HasRole(roles ...Role) bool {
	for _, want := range roles {
		if r.Role == want {
			return true
		}
	}
	return false
}

// SignupRequest registers a new principal. Role is optional: the profile
// can exist before the role row is written.
type SignupRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Role     Role   `json:"role,omitempty" validate:"omitempty,oneof=client restaurant driver"`
}

// LoginRequest authenticates over the standard channel.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SessionResponse carries the signed session token back to the client.
type SessionResponse struct {
	Token      string     `json:"token"`
	Resolution Resolution `json:"resolution"`
}
