package entity

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleStaff UserRole = "staff"
	RoleAdmin UserRole = "admin"
)

// IsStaff reports whether the role may inspect cars and resolve disputes.
func (r UserRole) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin
}

type User struct {
	Base
	Username      string   `db:"username"`
	Email         string   `db:"email"`
	Phone         *string  `db:"phone"` // encoded
	Role          UserRole `db:"role"`
	Balance       int64    `db:"balance"`
	LockedBalance int64    `db:"locked_balance"`
	IsActive      bool     `db:"is_active"`
}
