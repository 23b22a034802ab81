package models

import "time"

// Role is a user's authorization level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a customer or operator of the platform.
type User struct {
	ID            string     `json:"id" firestore:"id" bson:"_id"` // Identity provider UID, also the document ID
	Email         string     `json:"email" firestore:"email" bson:"email,omitempty"`
	DisplayName   string     `json:"displayName,omitempty" firestore:"displayName,omitempty" bson:"displayName,omitempty"`
	PhotoURL      string     `json:"photoURL,omitempty" firestore:"photoURL,omitempty" bson:"photoURL,omitempty"`
	EmailVerified bool       `json:"emailVerified" firestore:"emailVerified" bson:"emailVerified"`
	Role          Role       `json:"role" firestore:"role" bson:"role"`
	IsActive      bool       `json:"isActive" firestore:"isActive" bson:"isActive"`
	LastLogin     *time.Time `json:"lastLogin,omitempty" firestore:"lastLogin,omitempty" bson:"lastLogin,omitempty"`
	CreatedAt     time.Time  `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt" firestore:"updatedAt" bson:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
