package models

import "time"

// Role tags what an account may do
type Role string

// Account roles. RoleSystem is never stored; it identifies internal callers
// such as the vehicle telemetry feed.
const (
	RoleDispatcher Role = "dispatcher"
	RoleParamedic  Role = "paramedic"
	RoleAdmin      Role = "admin"
	RoleSystem     Role = "system"
)

// Valid reports whether r can be stored on an account
func (r Role) Valid() bool {
	return r == RoleDispatcher || r == RoleParamedic || r == RoleAdmin
}

// User holds the structure for the user collection in mongo
type User struct {
	ID      string      `json:"_id" bson:"_id"`
	Details UserDetails `json:"user" bson:"user"`
	Version int32       `json:"__v" bson:"__v"`
}

// UserDetails holds the structure for the inner user structure as defined in the user collection in mongo
type UserDetails struct {
	Email       string    `json:"email" bson:"email"`
	Username    string    `json:"username" bson:"username"`
	Name        string    `json:"name" bson:"name"`
	Password    string    `json:"-" bson:"password"`
	PhoneNumber string    `json:"phoneNumber" bson:"phoneNumber"`
	Role        Role      `json:"role" bson:"role"`
	IsAvailable *bool     `json:"isAvailable" bson:"isAvailable"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Available reports paramedic availability; an unset flag counts as available
func (d UserDetails) Available() bool {
	return d.IsAvailable == nil || *d.IsAvailable
}

// Identity is the resolved caller of an operation
type Identity struct {
	UserID        string
	Username      string
	Role          Role
	Authenticated bool
}

// SystemIdentity is used by internal feeds that act on behalf of the service
var SystemIdentity = Identity{UserID: "system", Username: "system", Role: RoleSystem, Authenticated: true}

// HasRole reports whether the identity is authenticated with one of roles
func (i Identity) HasRole(roles ...Role) bool {
	if !i.Authenticated {
		return false
	}
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// UserInput is the body of an account creation
type UserInput struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber"`
	Role        Role   `json:"role"`
}

// UserUpdate is a partial account edit. The role of an account is fixed at
// creation.
type UserUpdate struct {
	Name        *string `json:"name"`
	Username    *string `json:"username"`
	PhoneNumber *string `json:"phoneNumber"`
	Password    *string `json:"password"`
	IsAvailable *bool   `json:"isAvailable"`
}
