package model

import "time"

// Roles carried in the users.role column and in the access token.
const (
	RoleUser  = "USER"
	RoleStaff = "STAFF"
)

// User represents an application user record as stored in the
// `users` table.  Staff users may change buses, trips and facilities;
// everybody else only reads them and manages their own orders.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique, lower-cased email address.
//	PasswordHash – bcrypt hashed password.
//	Role         – USER or STAFF.
//	IsActive     – whether the account may log in.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// IsStaff reports whether the user holds the staff role.
func (u User) IsStaff() bool { return u.Role == RoleStaff }
